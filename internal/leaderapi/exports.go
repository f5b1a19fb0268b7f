// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package leaderapi

import (
	"fmt"
	"net/http"

	"github.com/pioreactor/pioreactorui-leader/internal/domain"
	"github.com/pioreactor/pioreactorui-leader/internal/httpkit"
)

// exportDatasets enqueues a single export task held by the
// export-data-lock, so a second concurrent call is serialized behind
// the first rather than racing it for the same output file.
func (s *Service) exportDatasets(rw http.ResponseWriter, r *http.Request) {
	var req domain.ExportDatasetsRequest
	if err := httpkit.Decode(r.Body, &req); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("parsing request body failed: %w", err))
		return
	}
	if len(req.SelectedDatasets) == 0 {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("selectedDatasets cannot be empty"))
		return
	}

	taskID, err := s.Tasks.Enqueue("pio_run_export_experiment_data", req, "export-data-lock", 0)
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}

	task, err := s.Tasks.Wait(r.Context(), taskID, exportWaitTimeout)
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, fmt.Errorf("timed out waiting for export to finish"))
		return
	}
	if task.State == domain.TaskFailed {
		httpkit.WriteError(rw, http.StatusInternalServerError, fmt.Errorf("%s", task.Error))
		return
	}

	var result struct {
		Filename string `json:"filename"`
	}
	if err := decodeResult(task.Result, &result); err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, result)
}
