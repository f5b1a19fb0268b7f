// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config holds the leader process's own settings (not to be
// confused with the cluster config.ini files the leader serves and
// writes via /api/configs — those are handled in internal/leaderapi
// with gopkg.in/ini.v1).
package config

import (
	"encoding/json"
	"os"

	"github.com/pioreactor/pioreactorui-leader/pkg/log"
)

// ProgramConfig is the leader process's own configuration, loaded once
// at startup from a JSON file and never mutated afterwards.
type ProgramConfig struct {
	Addr string `json:"addr"`

	StorageRoot string `json:"storage_root"` // root for experiment_profiles, plugins, storage/calibrations, exportable_datasets
	ExportsDir  string `json:"exports_dir"`
	DBPath      string `json:"db_path"`       // <storage>/pioreactor.sqlite
	TaskDBPath  string `json:"task_db_path"`  // task queue DB under a cache directory
	CacheDir    string `json:"cache_dir"`

	NatsAddress  string `json:"nats_address"`
	NatsUsername string `json:"nats_username"`
	NatsPassword string `json:"nats_password"`

	WorkerRPCScheme string `json:"worker_rpc_scheme"` // "http" unless testing
	WorkerRPCPort   int    `json:"worker_rpc_port"`

	FanoutTimeoutSeconds int `json:"fanout_timeout_seconds"` // default 30
	BusPublishTimeoutMS  int `json:"bus_publish_timeout_ms"` // default 2000

	FeatureFlagDir string `json:"feature_flag_dir"` // directory containing DISALLOW_* marker files
}

var Keys = ProgramConfig{
	Addr:                 ":4999",
	StorageRoot:          "/home/pioreactor/.pioreactor",
	ExportsDir:           "/home/pioreactor/.pioreactor/storage/exports",
	DBPath:               "/home/pioreactor/.pioreactor/storage/pioreactor.sqlite",
	TaskDBPath:           "/home/pioreactor/.pioreactor/.cache/tasks.sqlite",
	CacheDir:             "/home/pioreactor/.pioreactor/.cache",
	NatsAddress:          "nats://localhost:4222",
	WorkerRPCScheme:      "http",
	WorkerRPCPort:        4999,
	FanoutTimeoutSeconds: 30,
	BusPublishTimeoutMS:  2000,
	FeatureFlagDir:       "/home/pioreactor/.pioreactor",
}

// Init loads overrides from a JSON file at flagConfigFile. A missing file
// is not an error -- the defaults above are used as-is, matching the
// teacher's internal/config.Init behavior for an absent config file.
func Init(flagConfigFile string) {
	if flagConfigFile == "" {
		return
	}

	raw, err := os.ReadFile(flagConfigFile)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatal(err)
		}
		return
	}

	if err := json.Unmarshal(raw, &Keys); err != nil {
		log.Fatal(err)
	}
}

// Feature-gate marker files. Presence = disabled.
const (
	FeatureDisallowInstalls    = "DISALLOW_UI_INSTALLS"
	FeatureDisallowUploads     = "DISALLOW_UI_UPLOADS"
	FeatureDisallowFileSystem  = "DISALLOW_UI_FILE_SYSTEM"
)

// FeatureDisabled reports whether the named feature-gate marker file is
// present in the configured feature-flag directory.
func FeatureDisabled(name string) bool {
	_, err := os.Stat(Keys.FeatureFlagDir + "/" + name)
	return err == nil
}

// AllowedEnv is the set of environment keys that may cross from a
// browser-originated "run job" request into the shell environment of a
// spawned pio process. It is a set, not an ordered list: the original
// Python source lists "ACTIVE" twice in its ALLOWED_ENV tuple, which is
// harmless there (membership via `in`) and is preserved here as a single
// map entry.
var AllowedEnv = map[string]struct{}{
	"EXPERIMENT":    {},
	"JOB_SOURCE":    {},
	"TESTING":       {},
	"HOSTNAME":      {},
	"HARDWARE":      {},
	"ACTIVE":        {},
	"FIRMWARE":      {},
	"DEBUG":         {},
	"MODEL_NAME":    {},
	"MODEL_VERSION": {},
	"SKIP_PLUGINS":  {},
}

// FilterEnv returns the subset of env whose keys are in AllowedEnv.
func FilterEnv(env map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		if _, ok := AllowedEnv[k]; ok {
			out[k] = v
		}
	}
	return out
}
