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

const updateLockName = "update-lock"

// updateNextVersion runs a self-update of the leader's own app/ui/both,
// serialized behind update-lock so two update requests never overlap.
func (s *Service) updateNextVersion(rw http.ResponseWriter, r *http.Request) {
	var req struct {
		Component string `json:"component"` // "app", "ui", or "everything"
	}
	if err := httpkit.Decode(r.Body, &req); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("parsing request body failed: %w", err))
		return
	}

	var kind string
	switch req.Component {
	case "app":
		kind = "pio_update_app"
	case "ui":
		kind = "pio_update_ui"
	case "everything", "":
		kind = "pio_update_everything"
	default:
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("unknown component %q", req.Component))
		return
	}

	taskID, err := s.Tasks.Enqueue(kind, req, updateLockName, 0)
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusAccepted, map[string]string{"task_id": taskID})
}

// updateFromArchive installs an uploaded release archive on the leader
// and, when units are named, on each of those units; with no units
// named, no worker is contacted.
func (s *Service) updateFromArchive(rw http.ResponseWriter, r *http.Request) {
	var req struct {
		ArchiveFilename string   `json:"archive_filename"`
		Units           []string `json:"units,omitempty"`
	}
	if err := httpkit.Decode(r.Body, &req); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("parsing request body failed: %w", err))
		return
	}
	if req.ArchiveFilename == "" {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("archive_filename cannot be empty"))
		return
	}

	kind := "pio_update_from_archive_broadcast"
	if len(req.Units) > 0 {
		kind = "pio_update_from_archive_units"
	}

	taskID, err := s.Tasks.Enqueue(kind, req, updateLockName, 0)
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusAccepted, map[string]string{"task_id": taskID})
}

// setupWorker enrols a new Pioreactor worker by running `pio workers add
// -v <v> -m <m>` on the leader, waiting synchronously for the result.
func (s *Service) setupWorker(rw http.ResponseWriter, r *http.Request) {
	var req struct {
		PioreactorUnit string `json:"pioreactor_unit"`
		Version        string `json:"version"`
		Model          string `json:"model"`
	}
	if err := httpkit.Decode(r.Body, &req); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("parsing request body failed: %w", err))
		return
	}
	if req.PioreactorUnit == "" {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("pioreactor_unit cannot be empty"))
		return
	}

	taskID, err := s.Tasks.Enqueue("add_new_pioreactor", req, "", 0)
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}

	task, err := s.Tasks.Wait(r.Context(), taskID, addPioreactorWaitTimeout)
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, fmt.Errorf("timed out waiting for worker setup to finish"))
		return
	}
	if task.State == domain.TaskFailed {
		httpkit.WriteError(rw, http.StatusInternalServerError, fmt.Errorf("%s", task.Error))
		return
	}
	httpkit.WriteJSON(rw, http.StatusCreated, map[string]string{"msg": "added", "pioreactor_unit": req.PioreactorUnit})
}
