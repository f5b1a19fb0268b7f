// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package leaderapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/pioreactor/pioreactorui-leader/internal/cache"
	"github.com/pioreactor/pioreactorui-leader/internal/domain"
	"github.com/pioreactor/pioreactorui-leader/internal/httpkit"
	"github.com/pioreactor/pioreactorui-leader/internal/store"
)

type createExperimentRequest struct {
	Experiment  string  `json:"experiment"`
	Description *string `json:"description,omitempty"`
	MediaUsed   *string `json:"mediaUsed,omitempty"`
	OrganismUsed *string `json:"organismUsed,omitempty"`
}

func (s *Service) createExperiment(rw http.ResponseWriter, r *http.Request) {
	var req createExperimentRequest
	if err := httpkit.Decode(r.Body, &req); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("parsing request body failed: %w", err))
		return
	}
	if err := validateExperimentName(req.Experiment); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, err)
		return
	}

	exp := domain.Experiment{
		Experiment:   req.Experiment,
		CreatedAt:    store.CurrentUTCTimestamp(),
		Description:  req.Description,
		MediaUsed:    req.MediaUsed,
		OrganismUsed: req.OrganismUsed,
	}
	if err := s.Store.CreateExperiment(exp); err != nil {
		if errors.Is(err, store.ErrConflict) {
			httpkit.WriteError(rw, http.StatusConflict, fmt.Errorf("experiment %q already exists", req.Experiment))
			return
		}
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}

	s.Log.Info("", "", "create_experiment", fmt.Sprintf("Created experiment %s", req.Experiment))
	s.Cache.EvictTag(cache.TagExperiments)
	s.Cache.EvictTag(cache.TagUnitLabels)

	httpkit.WriteJSON(rw, http.StatusCreated, exp)
}

func (s *Service) listExperiments(rw http.ResponseWriter, r *http.Request) {
	key := cache.MemoKey("experiments:list")
	result, err := s.Cache.Memoize(key, 5*time.Second, cache.TagExperiments, func() (any, error) {
		return s.Store.ListExperiments()
	})
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, result)
}

func (s *Service) latestExperiment(rw http.ResponseWriter, r *http.Request) {
	exp, err := s.Store.LatestExperiment()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpkit.WriteError(rw, http.StatusNotFound, fmt.Errorf("no experiments exist"))
			return
		}
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, exp)
}

func (s *Service) getExperiment(rw http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["experiment"]
	exp, err := s.Store.GetExperiment(name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpkit.WriteError(rw, http.StatusNotFound, fmt.Errorf("experiment %q not found", name))
			return
		}
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, exp)
}

func (s *Service) updateExperiment(rw http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["experiment"]
	var req struct {
		Description string `json:"description"`
	}
	if err := httpkit.Decode(r.Body, &req); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("parsing request body failed: %w", err))
		return
	}
	if err := s.Store.UpdateExperimentDescription(name, req.Description); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpkit.WriteError(rw, http.StatusNotFound, fmt.Errorf("experiment %q not found", name))
			return
		}
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	s.Cache.EvictTag(cache.TagExperiments)
	httpkit.WriteJSON(rw, http.StatusOK, map[string]string{"msg": "updated"})
}

// deleteExperiment cascades at the Store layer (FK CASCADE on
// assignments and labels; the experiment's log rows are kept) and then
// fans out a stop-experiment request to every worker that was assigned,
// so jobs keyed to the deleted experiment don't keep running
// cluster-wide.
func (s *Service) deleteExperiment(rw http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["experiment"]

	workers, err := s.Store.ListWorkersInExperiment(name)
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}

	if err := s.Store.DeleteExperiment(name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpkit.WriteError(rw, http.StatusNotFound, fmt.Errorf("experiment %q not found", name))
			return
		}
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}

	s.Cache.EvictTag(cache.TagExperiments)
	s.Cache.EvictTag(cache.TagUnitLabels)

	if len(workers) > 0 {
		go s.fanoutPost(fmt.Sprintf("/unit_api/jobs/stop/experiment/%s", name), workers, nil)
	}

	httpkit.WriteJSON(rw, http.StatusOK, map[string]string{"msg": "deleted"})
}

func (s *Service) assignWorker(rw http.ResponseWriter, r *http.Request) {
	experiment := mux.Vars(r)["experiment"]
	var req struct {
		PioreactorUnit string `json:"pioreactor_unit"`
	}
	if err := httpkit.Decode(r.Body, &req); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("parsing request body failed: %w", err))
		return
	}
	if err := s.Store.AssignWorker(req.PioreactorUnit, experiment, store.CurrentUTCTimestamp()); err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, map[string]string{"msg": "assigned"})
}

func (s *Service) experimentLogs(rw http.ResponseWriter, r *http.Request) {
	experiment := mux.Vars(r)["experiment"]
	limit := 1000
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	logs, err := s.Store.ListLogs(experiment, limit)
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, logs)
}

func (s *Service) listUnitLabels(rw http.ResponseWriter, r *http.Request) {
	experiment := mux.Vars(r)["experiment"]
	labels, err := s.Store.ListUnitLabels(experiment)
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, labels)
}

func (s *Service) setUnitLabel(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req struct {
		Label string `json:"label"`
	}
	if err := httpkit.Decode(r.Body, &req); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("parsing request body failed: %w", err))
		return
	}
	if err := s.Store.SetUnitLabel(vars["experiment"], vars["unit"], req.Label, store.CurrentUTCTimestamp()); err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	s.Cache.EvictTag(cache.TagUnitLabels)
	httpkit.WriteJSON(rw, http.StatusOK, map[string]string{"msg": "ok"})
}

func (s *Service) timeSeries(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	lookback := 4 * time.Hour
	if v := r.URL.Query().Get("lookback"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			lookback = d
		}
	}
	points, err := s.Store.ReadTimeSeries(vars["table"], vars["experiment"], lookback)
	if err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, points)
}
