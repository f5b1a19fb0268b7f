// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package leaderapi

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/pioreactor/pioreactorui-leader/internal/config"
	"github.com/pioreactor/pioreactorui-leader/internal/httpkit"
)

const defaultUploadMaxBytes = 30 * 1024 * 1024

// sanitizeUploadFilename rejects directory traversal and control bytes,
// keeping only the base name.
func sanitizeUploadFilename(name string) (string, error) {
	base := filepath.Base(name)
	if base == "." || base == "/" || base == "" {
		return "", fmt.Errorf("invalid filename")
	}
	for _, r := range base {
		if r < 0x20 || r == 0x7f {
			return "", fmt.Errorf("filename contains control characters")
		}
	}
	return base, nil
}

func (s *Service) uploadFile(rw http.ResponseWriter, r *http.Request) {
	if config.FeatureDisabled(config.FeatureDisallowUploads) {
		httpkit.WriteError(rw, http.StatusForbidden, fmt.Errorf("uploads are disabled on this leader"))
		return
	}

	maxBytes := s.UploadMaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultUploadMaxBytes
	}
	r.Body = http.MaxBytesReader(rw, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("could not parse upload: %w", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("missing upload field \"file\": %w", err))
		return
	}
	defer file.Close()

	filename, err := sanitizeUploadFilename(header.Filename)
	if err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, err)
		return
	}

	dest, err := os.Create(filepath.Join(s.ConfigRoot, "uploads", filename))
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	defer dest.Close()

	if _, err := io.Copy(dest, file); err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}

	httpkit.WriteJSON(rw, http.StatusOK, map[string]string{"filename": filename})
}

// browsePath resolves path relative to a single fixed root with
// safe-join semantics: any attempt to escape the root is rejected, and
// sqlite database files can never be downloaded through this endpoint.
func (s *Service) browsePath(rw http.ResponseWriter, r *http.Request) {
	if config.FeatureDisabled(config.FeatureDisallowFileSystem) {
		httpkit.WriteError(rw, http.StatusForbidden, fmt.Errorf("filesystem browsing is disabled on this leader"))
		return
	}

	requested := mux.Vars(r)["path"]
	root := config.Keys.StorageRoot
	joined := filepath.Join(root, requested)

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	joinedAbs, err := filepath.Abs(joined)
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	if joinedAbs != rootAbs && !strings.HasPrefix(joinedAbs, rootAbs+string(filepath.Separator)) {
		httpkit.WriteError(rw, http.StatusForbidden, fmt.Errorf("path escapes the allowed root"))
		return
	}
	if strings.Contains(filepath.Base(joinedAbs), ".sqlite") {
		httpkit.WriteError(rw, http.StatusForbidden, fmt.Errorf("database files cannot be downloaded"))
		return
	}

	info, err := os.Stat(joinedAbs)
	if err != nil {
		httpkit.WriteError(rw, http.StatusNotFound, fmt.Errorf("path %q not found", requested))
		return
	}
	if info.IsDir() {
		entries, err := os.ReadDir(joinedAbs)
		if err != nil {
			httpkit.WriteError(rw, http.StatusInternalServerError, err)
			return
		}
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		httpkit.WriteJSON(rw, http.StatusOK, names)
		return
	}
	http.ServeFile(rw, r, joinedAbs)
}
