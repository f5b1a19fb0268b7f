// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package unitapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/pioreactor/pioreactorui-leader/internal/calibration"
	"github.com/pioreactor/pioreactorui-leader/internal/taskengine"
)

func newTestService(t *testing.T) (*Service, *mux.Router) {
	t.Helper()
	jobs := newTestJobStore(t)

	engine, err := taskengine.Open(filepath.Join(t.TempDir(), "tasks.sqlite"), 2)
	require.NoError(t, err)
	require.NoError(t, engine.Start(0))
	t.Cleanup(func() { engine.Shutdown(); _ = engine.Close() })

	s := &Service{
		Jobs:        jobs,
		Tasks:       engine,
		Calibration: calibration.New(t.TempDir()),
		Unit:        "pio01",
		AppVersion: "1.0.0",
		UIVersion:  "1.0.0",
		PluginsDir: t.TempDir(),
	}
	r := mux.NewRouter()
	s.MountRoutes(r)
	return s, r
}

func doJSON(t *testing.T, r *mux.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	return rw
}

func TestSaveAndGetCalibration(t *testing.T) {
	_, r := newTestService(t)

	rw := doJSON(t, r, http.MethodPost, "/unit_api/calibrations/od/od-2026-01", map[string]any{"slope": 1.2})
	require.Equal(t, http.StatusOK, rw.Code)

	rw = doJSON(t, r, http.MethodGet, "/unit_api/calibrations/od/od-2026-01", nil)
	require.Equal(t, http.StatusOK, rw.Code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &doc))
	require.Equal(t, 1.2, doc["slope"])
}

func TestSetActiveCalibrationRequiresExistingFile(t *testing.T) {
	_, r := newTestService(t)

	rw := doJSON(t, r, http.MethodPatch, "/unit_api/calibrations/od/missing/active", nil)
	require.Equal(t, http.StatusNotFound, rw.Code)
}

func TestRunningJobsEmptyByDefault(t *testing.T) {
	_, r := newTestService(t)

	rw := doJSON(t, r, http.MethodGet, "/unit_api/jobs/running", nil)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "null\n", rw.Body.String())
}

func TestPatchJobSettingsNotImplemented(t *testing.T) {
	_, r := newTestService(t)

	rw := doJSON(t, r, http.MethodPatch, "/unit_api/jobs/settings/job_name/stirring", map[string]string{"target_rpm": "400"})
	require.Equal(t, http.StatusServiceUnavailable, rw.Code)
}

func TestTaskResultNotFound(t *testing.T) {
	_, r := newTestService(t)

	rw := doJSON(t, r, http.MethodGet, "/unit_api/task_results/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, rw.Code)
}
