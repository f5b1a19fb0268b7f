// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package unitapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/google/uuid"

	"github.com/pioreactor/pioreactorui-leader/internal/domain"
	"github.com/pioreactor/pioreactorui-leader/internal/httpkit"
)

// runJob enqueues a detached pio_run task and records the job as
// running in the local metadata table immediately, so a concurrent
// GET /jobs/running reflects it even before the shell process starts.
func (s *Service) runJob(rw http.ResponseWriter, r *http.Request) {
	job := mux.Vars(r)["job"]

	var req domain.ArgsOptionsEnvs
	if err := httpkit.Decode(r.Body, &req); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("parsing request body failed: %w", err))
		return
	}

	jobID := uuid.NewString()
	experiment := req.Env["EXPERIMENT"]
	jobSource := req.Env["JOB_SOURCE"]

	if err := s.Jobs.RecordStart(jobID, job, jobSource, experiment, time.Now().UTC()); err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}

	taskID, err := s.Tasks.Enqueue("pio_run", map[string]any{
		"job_id":  jobID,
		"job":     job,
		"options": req.Options,
		"args":    req.Args,
		"env":     req.Env,
	}, "", 10)
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}

	httpkit.WriteJSON(rw, http.StatusAccepted, map[string]string{"job_id": jobID, "task_id": taskID})
}

func (s *Service) stopWithFilter(rw http.ResponseWriter, jobName, experiment, jobSource, jobID string) {
	taskID, err := s.Tasks.Enqueue("pio_kill", map[string]string{
		"job_name":   jobName,
		"experiment": experiment,
		"job_source": jobSource,
		"job_id":     jobID,
	}, "", 100)
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	if _, err := s.Jobs.RecordStop(jobName, experiment, jobSource, jobID); err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusAccepted, map[string]string{"task_id": taskID})
}

// stopJob is the general filtered-stop endpoint: body carries whichever
// of {job_name, experiment, job_source, job_id} the caller wants to
// match on; empty fields are not filtered on.
func (s *Service) stopJob(rw http.ResponseWriter, r *http.Request) {
	var req struct {
		JobName    string `json:"job_name"`
		Experiment string `json:"experiment"`
		JobSource  string `json:"job_source"`
		JobID      string `json:"job_id"`
	}
	if err := httpkit.Decode(r.Body, &req); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("parsing request body failed: %w", err))
		return
	}
	s.stopWithFilter(rw, req.JobName, req.Experiment, req.JobSource, req.JobID)
}

// stopAll and the two path-scoped variants below are deprecated
// shorthands for stopJob kept for the browser's existing call sites.
func (s *Service) stopAll(rw http.ResponseWriter, r *http.Request) {
	s.stopWithFilter(rw, "", "", "", "")
}

func (s *Service) stopExperiment(rw http.ResponseWriter, r *http.Request) {
	s.stopWithFilter(rw, "", mux.Vars(r)["experiment"], "", "")
}

func (s *Service) stopJobByName(rw http.ResponseWriter, r *http.Request) {
	s.stopWithFilter(rw, mux.Vars(r)["job"], "", "", "")
}

func (s *Service) runningJobs(rw http.ResponseWriter, r *http.Request) {
	jobs, err := s.Jobs.Running()
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, jobs)
}

func (s *Service) getJobSettings(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	settings, err := s.Jobs.Settings(vars["job"], vars["setting"])
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, settings)
}

// patchJobSettings is not implemented: published settings are changed by
// publishing to the pub/sub setting topic (internal/bus), which this
// node's pio process subscribes to; there is no direct-write path here.
func (s *Service) patchJobSettings(rw http.ResponseWriter, r *http.Request) {
	httpkit.WriteError(rw, http.StatusServiceUnavailable, fmt.Errorf("updating settings directly via PATCH is not implemented; publish to the setting topic instead"))
}
