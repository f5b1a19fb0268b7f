// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package leaderapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/pioreactor/pioreactorui-leader/internal/domain"
	"github.com/pioreactor/pioreactorui-leader/internal/httpkit"
	"github.com/pioreactor/pioreactorui-leader/internal/store"
)

const blinkWaitTimeout = 2 * time.Second

func (s *Service) listWorkers(rw http.ResponseWriter, r *http.Request) {
	workers, err := s.Store.ListWorkers()
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, workers)
}

func (s *Service) createWorker(rw http.ResponseWriter, r *http.Request) {
	var req struct {
		PioreactorUnit string `json:"pioreactor_unit"`
	}
	if err := httpkit.Decode(r.Body, &req); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("parsing request body failed: %w", err))
		return
	}
	if req.PioreactorUnit == "" {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("pioreactor_unit cannot be empty"))
		return
	}

	w := domain.Worker{PioreactorUnit: req.PioreactorUnit, AddedAt: store.CurrentUTCTimestamp(), IsActive: true}
	if err := s.Store.UpsertWorker(w); err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	// Idempotent per the PUT /workers invariant: always 201, never 200 on
	// the already-exists path.
	httpkit.WriteJSON(rw, http.StatusCreated, w)
}

func (s *Service) deleteWorker(rw http.ResponseWriter, r *http.Request) {
	unit := mux.Vars(r)["unit"]
	if err := s.Store.DeleteWorker(unit); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpkit.WriteError(rw, http.StatusNotFound, fmt.Errorf("worker %q not found", unit))
			return
		}
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, map[string]string{"msg": "deleted"})
}

// setWorkerActive flips is_active; transitioning to inactive fans out a
// stop-all-jobs request to the worker first, so nothing keeps running
// on a worker the cluster no longer considers active.
func (s *Service) setWorkerActive(rw http.ResponseWriter, r *http.Request) {
	unit := mux.Vars(r)["unit"]
	var req struct {
		IsActive bool `json:"is_active"`
	}
	if err := httpkit.Decode(r.Body, &req); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("parsing request body failed: %w", err))
		return
	}

	if !req.IsActive {
		go s.fanoutPost("/unit_api/jobs/stop/all", []string{unit}, nil)
	}

	if err := s.Store.SetWorkerActive(unit, req.IsActive); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpkit.WriteError(rw, http.StatusNotFound, fmt.Errorf("worker %q not found", unit))
			return
		}
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, map[string]string{"msg": "updated"})
}

func (s *Service) getWorkerExperiment(rw http.ResponseWriter, r *http.Request) {
	unit := mux.Vars(r)["unit"]
	a, err := s.Store.GetWorkerExperiment(unit)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpkit.WriteError(rw, http.StatusNotFound, fmt.Errorf("worker %q is not assigned to an experiment", unit))
			return
		}
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, a)
}

// blinkWorker asks a unit to flicker its status LED, so an operator
// staring at a rack of identical devices can tell which one a UI row
// refers to.
func (s *Service) blinkWorker(rw http.ResponseWriter, r *http.Request) {
	unit := mux.Vars(r)["unit"]
	s.Bus.PublishBlink(unit, blinkWaitTimeout)
	httpkit.WriteJSON(rw, http.StatusAccepted, map[string]string{"msg": "blink requested"})
}

// unassignWorker deletes the live assignment, then fans out a
// stop-experiment request to that worker only.
func (s *Service) unassignWorker(rw http.ResponseWriter, r *http.Request) {
	unit := mux.Vars(r)["unit"]

	a, err := s.Store.GetWorkerExperiment(unit)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	experiment := a.Experiment

	if err := s.Store.UnassignWorker(unit, store.CurrentUTCTimestamp()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpkit.WriteError(rw, http.StatusNotFound, fmt.Errorf("worker %q is not assigned to an experiment", unit))
			return
		}
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}

	if experiment != "" {
		go s.fanoutPost(fmt.Sprintf("/unit_api/jobs/stop/experiment/%s", experiment), []string{unit}, nil)
	}

	httpkit.WriteJSON(rw, http.StatusOK, map[string]string{"msg": "unassigned"})
}
