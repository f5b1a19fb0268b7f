// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package unitapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pioreactor/pioreactorui-leader/internal/domain"
	"github.com/pioreactor/pioreactorui-leader/internal/httpkit"
)

// taskResult polls the local TaskEngine for id: 202 while pending or
// running, 200 + result on completion, 500 + error on failure.
func (s *Service) taskResult(rw http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	task, err := s.Tasks.Get(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httpkit.WriteError(rw, http.StatusNotFound, fmt.Errorf("task %q not found", id))
			return
		}
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}

	switch task.State {
	case domain.TaskComplete:
		httpkit.WriteJSON(rw, http.StatusOK, struct {
			domain.TaskRecord
			Result json.RawMessage `json:"result"`
		}{task, json.RawMessage(task.Result)})
	case domain.TaskFailed:
		httpkit.WriteError(rw, http.StatusInternalServerError, fmt.Errorf("%s", task.Error))
	default:
		httpkit.WriteJSON(rw, http.StatusAccepted, task)
	}
}
