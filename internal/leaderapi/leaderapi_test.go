// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package leaderapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/pioreactor/pioreactorui-leader/internal/applog"
	"github.com/pioreactor/pioreactorui-leader/internal/cache"
	"github.com/pioreactor/pioreactorui-leader/internal/domain"
	"github.com/pioreactor/pioreactorui-leader/internal/store"
	"github.com/pioreactor/pioreactorui-leader/internal/workerrpc"
)

// newTestService wires a Service against an in-memory Store and a
// workerrpc.Client pointed at a fake unit-API server, mirroring how
// cmd/pioreactorui-leader composes Service at startup.
func newTestService(t *testing.T, unitAPI *httptest.Server) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	var resolver workerrpc.StaticResolver
	port := 0
	if unitAPI != nil {
		u, err := url.Parse(unitAPI.URL)
		require.NoError(t, err)
		host := u.Hostname()
		port, err = strconv.Atoi(u.Port())
		require.NoError(t, err)
		resolver = workerrpc.StaticResolver{"pio01": host}
	}

	return &Service{
		Store: st,
		Cache: cache.New(),
		RPC:   workerrpc.New(resolver, "http", port),
		Log:   applog.New(st, nil, "leader"),
	}, st
}

func newTestRouter(s *Service) *mux.Router {
	r := mux.NewRouter()
	s.MountRoutes(r)
	return r
}

func doJSON(t *testing.T, r *mux.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	return rw
}

func TestExperimentCreateListGet(t *testing.T) {
	s, _ := newTestService(t, nil)
	r := newTestRouter(s)

	rw := doJSON(t, r, http.MethodPost, "/api/experiments", map[string]string{"experiment": "exp-A"})
	require.Equal(t, http.StatusCreated, rw.Code)

	rw = doJSON(t, r, http.MethodGet, "/api/experiments", nil)
	require.Equal(t, http.StatusOK, rw.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rw = doJSON(t, r, http.MethodGet, "/api/experiments/exp-A", nil)
	require.Equal(t, http.StatusOK, rw.Code)
}

func TestExperimentCreateRejectsReservedName(t *testing.T) {
	s, _ := newTestService(t, nil)
	r := newTestRouter(s)

	rw := doJSON(t, r, http.MethodPost, "/api/experiments", map[string]string{"experiment": "current"})
	require.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestExperimentCreateDuplicateConflicts(t *testing.T) {
	s, _ := newTestService(t, nil)
	r := newTestRouter(s)

	rw := doJSON(t, r, http.MethodPost, "/api/experiments", map[string]string{"experiment": "exp-A"})
	require.Equal(t, http.StatusCreated, rw.Code)

	rw = doJSON(t, r, http.MethodPost, "/api/experiments", map[string]string{"experiment": "exp-A"})
	require.Equal(t, http.StatusConflict, rw.Code)
}

func TestWorkerSetActiveFalseFansOutStopAll(t *testing.T) {
	stopped := make(chan string, 1)
	unitAPI := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/unit_api/jobs/stop/all" {
			stopped <- req.URL.Path
		}
		rw.WriteHeader(http.StatusOK)
	}))
	defer unitAPI.Close()

	s, st := newTestService(t, unitAPI)
	r := newTestRouter(s)

	require.NoError(t, st.UpsertWorker(domain.Worker{PioreactorUnit: "pio01", AddedAt: store.CurrentUTCTimestamp(), IsActive: true}))

	rw := doJSON(t, r, http.MethodPatch, "/api/workers/pio01/is_active", map[string]bool{"is_active": false})
	require.Equal(t, http.StatusOK, rw.Code)

	select {
	case path := <-stopped:
		require.Equal(t, "/unit_api/jobs/stop/all", path)
	case <-time.After(2 * time.Second):
		t.Fatal("expected stop-all fanout to reach the fake unit-API")
	}
}
