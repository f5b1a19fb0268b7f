// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package unitapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pioreactor/pioreactorui-leader/internal/calibration"
	"github.com/pioreactor/pioreactorui-leader/internal/httpkit"
)

// listCalibrationDevices backs the LeaderAPI's "list" fanout: every
// node groups its own calibrations by device.
func (s *Service) listCalibrationDevices(rw http.ResponseWriter, r *http.Request) {
	devices, err := s.Calibration.ListDevices()
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	out := make(map[string][]string, len(devices))
	for _, device := range devices {
		names, err := s.Calibration.List(device)
		if err != nil {
			httpkit.WriteError(rw, http.StatusInternalServerError, err)
			return
		}
		out[device] = names
	}
	httpkit.WriteJSON(rw, http.StatusOK, out)
}

func (s *Service) listCalibrations(rw http.ResponseWriter, r *http.Request) {
	device := mux.Vars(r)["device"]
	names, err := s.Calibration.List(device)
	if err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, names)
}

func (s *Service) getCalibration(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	doc, err := s.Calibration.Get(vars["device"], vars["name"])
	if err != nil {
		if errors.Is(err, calibration.ErrNotFound) {
			httpkit.WriteError(rw, http.StatusNotFound, err)
			return
		}
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, doc)
}

func (s *Service) saveCalibration(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var doc map[string]any
	if err := httpkit.Decode(r.Body, &doc); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("parsing request body failed: %w", err))
		return
	}
	if err := s.Calibration.Save(vars["device"], vars["name"], doc); err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, map[string]string{"msg": "saved"})
}

func (s *Service) deleteCalibration(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.Calibration.Delete(vars["device"], vars["name"]); err != nil {
		if errors.Is(err, calibration.ErrNotFound) {
			httpkit.WriteError(rw, http.StatusNotFound, err)
			return
		}
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, map[string]string{"msg": "deleted"})
}

func (s *Service) setActiveCalibration(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.Calibration.SetActive(vars["device"], vars["name"]); err != nil {
		if errors.Is(err, calibration.ErrNotFound) {
			httpkit.WriteError(rw, http.StatusNotFound, err)
			return
		}
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, map[string]string{"msg": "active"})
}

func (s *Service) clearActiveCalibration(rw http.ResponseWriter, r *http.Request) {
	device := mux.Vars(r)["device"]
	if err := s.Calibration.ClearActive(device); err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, map[string]string{"msg": "cleared"})
}
