// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package leaderapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pioreactor/pioreactorui-leader/internal/httpkit"
)

// fanoutListCalibrations aggregates each targeted node's calibration
// listing, grouped by node in the response.
func (s *Service) fanoutListCalibrations(rw http.ResponseWriter, r *http.Request) {
	unit := mux.Vars(r)["unit"]
	targets, err := s.resolveTarget(unit, "")
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	result := s.fanoutGet("/unit_api/calibrations", targets)
	httpkit.WriteJSON(rw, http.StatusAccepted, result)
}

func (s *Service) fanoutSetActiveCalibration(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	targets, err := s.resolveTarget(vars["unit"], "")
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	endpoint := "/unit_api/calibrations/" + vars["device"] + "/" + vars["name"] + "/active"
	result := s.fanoutPatch(endpoint, targets, nil)
	httpkit.WriteJSON(rw, http.StatusAccepted, result)
}

func (s *Service) fanoutClearActiveCalibration(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	targets, err := s.resolveTarget(vars["unit"], "")
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	endpoint := "/unit_api/calibrations/" + vars["device"] + "/active"
	result := s.fanoutDelete(endpoint, targets, nil)
	httpkit.WriteJSON(rw, http.StatusAccepted, result)
}

func (s *Service) fanoutDeleteCalibration(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	targets, err := s.resolveTarget(vars["unit"], "")
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	endpoint := "/unit_api/calibrations/" + vars["device"] + "/" + vars["name"]
	result := s.fanoutDelete(endpoint, targets, nil)
	httpkit.WriteJSON(rw, http.StatusAccepted, result)
}
