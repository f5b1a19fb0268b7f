// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package unitapi

import (
	"net/http"

	"github.com/pioreactor/pioreactorui-leader/internal/httpkit"
)

func (s *Service) versionApp(rw http.ResponseWriter, r *http.Request) {
	httpkit.WriteJSON(rw, http.StatusOK, map[string]string{"version": s.AppVersion})
}

func (s *Service) versionUI(rw http.ResponseWriter, r *http.Request) {
	httpkit.WriteJSON(rw, http.StatusOK, map[string]string{"version": s.UIVersion})
}
