// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package leaderapi is the cluster-facing HTTP façade, mounted under
// /api. It composes Store, Bus, Fanout (via WorkerRPC), TaskEngine,
// Cache, and the Calibration store -- none of those packages import
// leaderapi, so dependencies point one way only.
package leaderapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/pioreactor/pioreactorui-leader/internal/applog"
	"github.com/pioreactor/pioreactorui-leader/internal/bus"
	"github.com/pioreactor/pioreactorui-leader/internal/cache"
	"github.com/pioreactor/pioreactorui-leader/internal/calibration"
	"github.com/pioreactor/pioreactorui-leader/internal/store"
	"github.com/pioreactor/pioreactorui-leader/internal/taskengine"
	"github.com/pioreactor/pioreactorui-leader/internal/workerrpc"
)

// Service holds every collaborator a LeaderAPI handler may need.
type Service struct {
	Store       *store.Store
	Bus         *bus.Bus
	Cache       *cache.Cache
	RPC         *workerrpc.Client
	Tasks       *taskengine.Engine
	Calibration *calibration.Store
	Log         *applog.Logger

	ExportsDir      string
	FeatureFlagDir  string
	ConfigRoot      string
	LeaderUnit      string
	UploadMaxBytes  int64
}

// MountRoutes registers every /api endpoint on r.
func (s *Service) MountRoutes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.StrictSlash(true)

	api.HandleFunc("/experiments", s.listExperiments).Methods(http.MethodGet)
	api.HandleFunc("/experiments", s.createExperiment).Methods(http.MethodPost)
	api.HandleFunc("/experiments/latest", s.latestExperiment).Methods(http.MethodGet)
	api.HandleFunc("/experiments/{experiment}", s.getExperiment).Methods(http.MethodGet)
	api.HandleFunc("/experiments/{experiment}", s.updateExperiment).Methods(http.MethodPatch)
	api.HandleFunc("/experiments/{experiment}", s.deleteExperiment).Methods(http.MethodDelete)
	api.HandleFunc("/experiments/{experiment}/workers", s.assignWorker).Methods(http.MethodPut)
	api.HandleFunc("/experiments/{experiment}/logs", s.experimentLogs).Methods(http.MethodGet)
	api.HandleFunc("/experiments/{experiment}/unit_labels", s.listUnitLabels).Methods(http.MethodGet)
	api.HandleFunc("/experiments/{experiment}/unit_labels/{unit}", s.setUnitLabel).Methods(http.MethodPut, http.MethodPatch)
	api.HandleFunc("/experiments/{experiment}/time_series/{table}", s.timeSeries).Methods(http.MethodGet)

	api.HandleFunc("/workers", s.listWorkers).Methods(http.MethodGet)
	api.HandleFunc("/workers", s.createWorker).Methods(http.MethodPut)
	api.HandleFunc("/workers/setup", s.setupWorker).Methods(http.MethodPost)
	api.HandleFunc("/workers/{unit}", s.deleteWorker).Methods(http.MethodDelete)
	api.HandleFunc("/workers/{unit}/is_active", s.setWorkerActive).Methods(http.MethodPatch)
	api.HandleFunc("/workers/{unit}/experiment", s.getWorkerExperiment).Methods(http.MethodGet)
	api.HandleFunc("/workers/{unit}/experiment", s.unassignWorker).Methods(http.MethodDelete)

	api.HandleFunc("/workers/{unit}/jobs/run/job_name/{job}/experiments/{experiment}", s.runJob).Methods(http.MethodPost)
	api.HandleFunc("/workers/{unit}/jobs/stop/job_name/{job}/experiments/{experiment}", s.stopJob).Methods(http.MethodPatch, http.MethodPost)
	api.HandleFunc("/workers/{unit}/jobs/update/job_name/{job}/experiments/{experiment}/setting/{setting}", s.updateJobSetting).Methods(http.MethodPatch)
	api.HandleFunc("/workers/jobs/stop/experiments/{experiment}", s.stopAllJobsInExperiment).Methods(http.MethodPost, http.MethodPatch)
	api.HandleFunc("/workers/{unit}/jobs/stop/experiments/{experiment}", s.stopAllJobsOnWorkerForExperiment).Methods(http.MethodPost, http.MethodPatch)
	api.HandleFunc("/workers/{unit}/blink", s.blinkWorker).Methods(http.MethodPost)

	api.HandleFunc("/configs", s.listConfigs).Methods(http.MethodGet)
	api.HandleFunc("/configs/{filename}", s.getConfig).Methods(http.MethodGet)
	api.HandleFunc("/configs/{filename}", s.writeConfig).Methods(http.MethodPatch)

	api.HandleFunc("/contrib/{kind}", s.listContrib).Methods(http.MethodGet)
	api.HandleFunc("/contrib/{kind}/{name}", s.getContrib).Methods(http.MethodGet)
	api.HandleFunc("/contrib/{kind}/{name}", s.writeContrib).Methods(http.MethodPost, http.MethodPut, http.MethodPatch)
	api.HandleFunc("/contrib/{kind}/{name}", s.deleteContrib).Methods(http.MethodDelete)

	api.HandleFunc("/workers/{unit}/calibrations", s.fanoutListCalibrations).Methods(http.MethodGet)
	api.HandleFunc("/workers/{unit}/calibrations/{device}/{name}/active", s.fanoutSetActiveCalibration).Methods(http.MethodPatch)
	api.HandleFunc("/workers/{unit}/calibrations/{device}/active", s.fanoutClearActiveCalibration).Methods(http.MethodDelete)
	api.HandleFunc("/workers/{unit}/calibrations/{device}/{name}", s.fanoutDeleteCalibration).Methods(http.MethodDelete)

	api.HandleFunc("/export_datasets", s.exportDatasets).Methods(http.MethodPost)

	api.HandleFunc("/system/upload", s.uploadFile).Methods(http.MethodPost)
	api.HandleFunc("/system/path/{path:.*}", s.browsePath).Methods(http.MethodGet)
	api.HandleFunc("/system/update_next_version", s.updateNextVersion).Methods(http.MethodPost)
	api.HandleFunc("/system/update_from_archive", s.updateFromArchive).Methods(http.MethodPost)
}

const (
	exportWaitTimeout       = 5 * time.Minute
	writeConfigWaitTimeout  = 75 * time.Second
	addPioreactorWaitTimeout = 250 * time.Second
	pluginsListWaitTimeout  = 120 * time.Second
)
