// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package unitapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pioreactor/pioreactorui-leader/internal/calibration"
	"github.com/pioreactor/pioreactorui-leader/internal/taskengine"
)

// Service holds every collaborator a node-local UnitAPI handler needs.
// It is mounted on the leader's own process (the leader is itself a
// Pioreactor unit) as well as, conceptually, on every worker node.
type Service struct {
	Jobs        *JobStore
	Tasks       *taskengine.Engine
	Calibration *calibration.Store

	Unit       string
	IsLeader   bool
	AppVersion string
	UIVersion  string
	PluginsDir string
}

// MountRoutes registers every /unit_api endpoint on r.
func (s *Service) MountRoutes(r *mux.Router) {
	api := r.PathPrefix("/unit_api").Subrouter()
	api.StrictSlash(true)

	api.HandleFunc("/system/reboot", s.reboot).Methods(http.MethodPost)
	api.HandleFunc("/system/shutdown", s.shutdown).Methods(http.MethodPost)
	api.HandleFunc("/system/remove_file", s.removeFile).Methods(http.MethodPost)
	api.HandleFunc("/system/utc_clock", s.getUTCClock).Methods(http.MethodGet)
	api.HandleFunc("/system/utc_clock", s.setUTCClock).Methods(http.MethodPatch, http.MethodPost)

	api.HandleFunc("/jobs/run/job_name/{job}", s.runJob).Methods(http.MethodPost)
	api.HandleFunc("/jobs/stop", s.stopJob).Methods(http.MethodPost)
	api.HandleFunc("/jobs/stop/all", s.stopAll).Methods(http.MethodPost)
	api.HandleFunc("/jobs/stop/experiment/{experiment}", s.stopExperiment).Methods(http.MethodPost)
	api.HandleFunc("/jobs/stop/job_name/{job}", s.stopJobByName).Methods(http.MethodPost)
	api.HandleFunc("/jobs/running", s.runningJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs/settings/job_name/{job}", s.getJobSettings).Methods(http.MethodGet)
	api.HandleFunc("/jobs/settings/job_name/{job}/setting/{setting}", s.getJobSettings).Methods(http.MethodGet)
	api.HandleFunc("/jobs/settings/job_name/{job}", s.patchJobSettings).Methods(http.MethodPatch)
	api.HandleFunc("/jobs/settings/job_name/{job}/setting/{setting}", s.patchJobSettings).Methods(http.MethodPatch)

	api.HandleFunc("/plugins/installed", s.listInstalledPlugins).Methods(http.MethodGet)
	api.HandleFunc("/plugins/installed/{file}", s.getInstalledPlugin).Methods(http.MethodGet)
	api.HandleFunc("/plugins/install", s.installPlugin).Methods(http.MethodPost)
	api.HandleFunc("/plugins/uninstall", s.uninstallPlugin).Methods(http.MethodPost)

	api.HandleFunc("/versions/app", s.versionApp).Methods(http.MethodGet)
	api.HandleFunc("/versions/ui", s.versionUI).Methods(http.MethodGet)

	api.HandleFunc("/calibrations", s.listCalibrationDevices).Methods(http.MethodGet)
	api.HandleFunc("/calibrations/{device}", s.listCalibrations).Methods(http.MethodGet)
	api.HandleFunc("/calibrations/{device}/active", s.clearActiveCalibration).Methods(http.MethodDelete)
	api.HandleFunc("/calibrations/{device}/{name}", s.getCalibration).Methods(http.MethodGet)
	api.HandleFunc("/calibrations/{device}/{name}", s.saveCalibration).Methods(http.MethodPost, http.MethodPut)
	api.HandleFunc("/calibrations/{device}/{name}", s.deleteCalibration).Methods(http.MethodDelete)
	api.HandleFunc("/calibrations/{device}/{name}/active", s.setActiveCalibration).Methods(http.MethodPatch)

	api.HandleFunc("/task_results/{id}", s.taskResult).Methods(http.MethodGet)
}
