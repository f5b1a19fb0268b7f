// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package leaderapi

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"gopkg.in/ini.v1"

	"github.com/pioreactor/pioreactorui-leader/internal/cache"
	"github.com/pioreactor/pioreactorui-leader/internal/domain"
	"github.com/pioreactor/pioreactorui-leader/internal/httpkit"
	"github.com/pioreactor/pioreactorui-leader/internal/store"
)

// safeConfigPath validates filename ends in .ini, has no path
// separators (so it cannot escape ConfigRoot), and returns the joined
// path.
func (s *Service) safeConfigPath(filename string) (string, error) {
	if !strings.HasSuffix(filename, ".ini") {
		return "", fmt.Errorf("config filename must end in .ini")
	}
	if strings.ContainsAny(filename, "/\\") || strings.Contains(filename, "..") {
		return "", fmt.Errorf("invalid config filename %q", filename)
	}
	return filepath.Join(s.ConfigRoot, filename), nil
}

func (s *Service) listConfigs(rw http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.ConfigRoot)
	if err != nil && !os.IsNotExist(err) {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".ini") {
			names = append(names, e.Name())
		}
	}
	httpkit.WriteJSON(rw, http.StatusOK, names)
}

func (s *Service) getConfig(rw http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]
	path, err := s.safeConfigPath(filename)
	if err != nil {
		httpkit.WriteError(rw, http.StatusNotFound, err)
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		httpkit.WriteError(rw, http.StatusNotFound, fmt.Errorf("config %q not found", filename))
		return
	}
	rw.Header().Set("Content-Type", "text/plain")
	rw.WriteHeader(http.StatusOK)
	_, _ = rw.Write(data)
}

// normalizeDashes replaces Unicode en/em dashes with an ASCII hyphen, a
// quirk of the INI files historically hand-edited in text editors that
// auto-correct "--" into an em-dash.
func normalizeDashes(data []byte) []byte {
	s := string(data)
	s = strings.ReplaceAll(s, "–", "-")
	s = strings.ReplaceAll(s, "—", "-")
	return []byte(s)
}

func validateClusterConfig(cfg *ini.File) error {
	var missing []string
	topology := cfg.Section("cluster.topology")
	if !topology.HasKey("leader_hostname") {
		missing = append(missing, "[cluster.topology] leader_hostname")
	}
	leaderAddress := topology.Key("leader_address").String()
	if leaderAddress == "" {
		missing = append(missing, "[cluster.topology] leader_address")
	}
	if !cfg.HasSection("mqtt") {
		missing = append(missing, "[mqtt]")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required field(s): %s", strings.Join(missing, ", "))
	}

	if strings.HasPrefix(leaderAddress, "http://") || strings.HasPrefix(leaderAddress, "https://") {
		return fmt.Errorf("leader_address must not include a scheme (http:// or https://)")
	}
	brokerAddress := cfg.Section("mqtt").Key("broker_address").String()
	if strings.HasPrefix(brokerAddress, "http://") || strings.HasPrefix(brokerAddress, "https://") {
		return fmt.Errorf("broker_address must not include a scheme (http:// or https://)")
	}
	return nil
}

func (s *Service) writeConfig(rw http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]
	path, err := s.safeConfigPath(filename)
	if err != nil {
		httpkit.WriteError(rw, http.StatusNotFound, err)
		return
	}

	var req struct {
		Data string `json:"data"`
	}
	if err := httpkit.Decode(r.Body, &req); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("parsing request body failed: %w", err))
		return
	}

	data := normalizeDashes([]byte(req.Data))

	loadOpts := ini.LoadOptions{AllowNonUniqueSections: false, AllowShadows: true, AllowDuplicateShadowValues: true}
	cfg, err := ini.LoadSources(loadOpts, data)
	if err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("could not parse INI: %w", err))
		return
	}
	for _, section := range cfg.Sections() {
		for _, key := range section.Keys() {
			if len(key.ValueWithShadows()) > 1 {
				httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("duplicate option %q in section [%s]", key.Name(), section.Name()))
				return
			}
		}
	}

	if filename == "config.ini" {
		if err := validateClusterConfig(cfg); err != nil {
			httpkit.WriteError(rw, http.StatusBadRequest, err)
			return
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	if err := s.Store.RecordConfigHistory(filename, data, store.CurrentUTCTimestamp()); err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	s.Cache.EvictTag(cache.TagConfig)

	target := domain.UniversalIdentifier
	syncFlag := "--shared"
	if strings.HasPrefix(filename, "config_") {
		target = strings.TrimSuffix(strings.TrimPrefix(filename, "config_"), ".ini")
		syncFlag = "--specific"
	}

	taskID, err := s.Tasks.Enqueue("write_config_and_sync", map[string]any{
		"filename": filename,
		"target":   target,
		"flag":     syncFlag,
	}, "", 0)
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}

	task, err := s.Tasks.Wait(r.Context(), taskID, writeConfigWaitTimeout)
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, fmt.Errorf("timed out waiting for config sync"))
		return
	}
	if task.State == domain.TaskFailed {
		httpkit.WriteError(rw, http.StatusInternalServerError, fmt.Errorf("%s", task.Error))
		return
	}

	httpkit.WriteJSON(rw, http.StatusOK, map[string]string{"msg": "written"})
}
