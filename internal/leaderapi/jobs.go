// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package leaderapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/pioreactor/pioreactorui-leader/internal/config"
	"github.com/pioreactor/pioreactorui-leader/internal/domain"
	"github.com/pioreactor/pioreactorui-leader/internal/httpkit"
)

// runJob forwards {options, args, env} to a worker (or, for $broadcast,
// every active worker in the experiment), after intersecting env with
// the allow-list and injecting EXPERIMENT/ACTIVE. A single-worker target
// additionally requires that the worker currently be assigned to the
// named experiment.
func (s *Service) runJob(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	unit, job, experiment := vars["unit"], vars["job"], vars["experiment"]

	if s.Cache.Debounce(fmt.Sprintf("run:%s:%s", unit, job), time.Second) {
		httpkit.WriteError(rw, http.StatusTooManyRequests, fmt.Errorf("job %q was just requested for %q, try again shortly", job, unit))
		return
	}

	var req domain.ArgsOptionsEnvs
	if err := httpkit.Decode(r.Body, &req); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("parsing request body failed: %w", err))
		return
	}

	if unit != domain.UniversalIdentifier {
		if !s.Store.IsWorkerAssignedTo(unit, experiment) {
			httpkit.WriteError(rw, http.StatusNotFound, fmt.Errorf("worker %q is not assigned to experiment %q", unit, experiment))
			return
		}
	}

	targets, err := s.resolveTarget(unit, experiment)
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}

	env := config.FilterEnv(req.Env)
	if env == nil {
		env = make(map[string]string)
	}
	env["EXPERIMENT"] = experiment
	env["ACTIVE"] = "1"

	body := domain.ArgsOptionsEnvs{Options: req.Options, Args: req.Args, Env: env}
	taskID, err := s.Tasks.Enqueue("multicast_post_across_cluster", map[string]any{
		"endpoint": fmt.Sprintf("/unit_api/jobs/run/job_name/%s", job),
		"workers":  targets,
		"body":     body,
	}, "", 5)
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}

	httpkit.WriteJSON(rw, http.StatusAccepted, map[string]string{"task_id": taskID})
}

// stopAllJobsInExperiment kills every job on every worker assigned to
// experiment, and also runs a local pio_kill on the leader itself: a
// profile job tied to the experiment can be running on the leader even
// when the leader isn't one of the assigned workers.
func (s *Service) stopAllJobsInExperiment(rw http.ResponseWriter, r *http.Request) {
	experiment := mux.Vars(r)["experiment"]

	workers, err := s.Store.ListWorkersInExperiment(experiment)
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	if len(workers) > 0 {
		go s.fanoutPost(fmt.Sprintf("/unit_api/jobs/stop/experiment/%s", experiment), workers, nil)
	}

	if _, err := s.Tasks.Enqueue("pio_kill", map[string]string{"experiment": experiment}, "", 100); err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}

	httpkit.WriteJSON(rw, http.StatusAccepted, map[string]string{"msg": "stop requested"})
}

// stopAllJobsOnWorkerForExperiment is the single-worker counterpart of
// stopAllJobsInExperiment, also reachable via the $broadcast sentinel.
func (s *Service) stopAllJobsOnWorkerForExperiment(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	unit, experiment := vars["unit"], vars["experiment"]

	targets, err := s.resolveTarget(unit, experiment)
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	go s.fanoutPost(fmt.Sprintf("/unit_api/jobs/stop/experiment/%s", experiment), targets, nil)
	httpkit.WriteJSON(rw, http.StatusAccepted, map[string]string{"msg": "stop requested"})
}

// stopJob attempts a QoS-1 disconnect publish with a 2s budget; on
// publish timeout it falls back to an HTTP stop call against the same
// worker's unit-API.
func (s *Service) stopJob(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	unit, job, experiment := vars["unit"], vars["job"], vars["experiment"]

	ok := s.Bus.PublishStateDisconnected(unit, experiment, job, 2*time.Second)
	if !ok {
		go s.fanoutPost(fmt.Sprintf("/unit_api/jobs/stop/job_name/%s", job), []string{unit}, nil)
	}
	httpkit.WriteJSON(rw, http.StatusAccepted, map[string]string{"msg": "stop requested"})
}

// updateJobSetting publishes each setting value at QoS 2 so duplicate
// delivery never double-applies a setting change.
func (s *Service) updateJobSetting(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	unit, job, experiment, setting := vars["unit"], vars["job"], vars["experiment"], vars["setting"]

	var req struct {
		Value string `json:"value"`
	}
	if err := httpkit.Decode(r.Body, &req); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("parsing request body failed: %w", err))
		return
	}

	ok := s.Bus.PublishSetting(unit, experiment, job, setting, []byte(req.Value), 2*time.Second)
	if !ok {
		httpkit.WriteError(rw, http.StatusInternalServerError, fmt.Errorf("could not publish setting update for %s/%s/%s", unit, job, setting))
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, map[string]string{"msg": "setting updated"})
}
