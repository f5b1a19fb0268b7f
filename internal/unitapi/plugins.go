// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package unitapi

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/pioreactor/pioreactorui-leader/internal/config"
	"github.com/pioreactor/pioreactorui-leader/internal/httpkit"
)

func (s *Service) listInstalledPlugins(rw http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.PluginsDir)
	if err != nil {
		if os.IsNotExist(err) {
			httpkit.WriteJSON(rw, http.StatusOK, []string{})
			return
		}
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	httpkit.WriteJSON(rw, http.StatusOK, names)
}

func (s *Service) getInstalledPlugin(rw http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	if file != filepath.Base(file) || strings.Contains(file, "..") {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("invalid plugin file name %q", file))
		return
	}
	http.ServeFile(rw, r, filepath.Join(s.PluginsDir, file))
}

func (s *Service) installPlugin(rw http.ResponseWriter, r *http.Request) {
	if config.FeatureDisabled(config.FeatureDisallowInstalls) {
		httpkit.WriteError(rw, http.StatusForbidden, fmt.Errorf("plugin installs are disabled on this node"))
		return
	}
	var req struct {
		PluginName string `json:"plugin_name"`
		Version    string `json:"version"`
	}
	if err := httpkit.Decode(r.Body, &req); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("parsing request body failed: %w", err))
		return
	}
	if req.PluginName == "" {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("plugin_name cannot be empty"))
		return
	}

	taskID, err := s.Tasks.Enqueue("pio_plugins_install", req, "plugins-lock", 0)
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (s *Service) uninstallPlugin(rw http.ResponseWriter, r *http.Request) {
	if config.FeatureDisabled(config.FeatureDisallowInstalls) {
		httpkit.WriteError(rw, http.StatusForbidden, fmt.Errorf("plugin installs are disabled on this node"))
		return
	}
	var req struct {
		PluginName string `json:"plugin_name"`
	}
	if err := httpkit.Decode(r.Body, &req); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("parsing request body failed: %w", err))
		return
	}
	if req.PluginName == "" {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("plugin_name cannot be empty"))
		return
	}

	taskID, err := s.Tasks.Enqueue("pio_plugins_uninstall", req, "plugins-lock", 0)
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusAccepted, map[string]string{"task_id": taskID})
}
