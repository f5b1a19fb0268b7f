// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package calibration is the file-backed calibration store: YAML
// artifacts per device under <root>/storage/calibrations/<device>/<name>.yaml,
// plus a per-node active-calibration pointer (device -> calibration
// name) persisted alongside them. The leader's own node uses this
// package directly; every other node exposes the equivalent operations
// over its unit-API and is reached through Fanout.
package calibration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a named calibration or device has no file.
var ErrNotFound = fmt.Errorf("calibration: not found")

// ErrConflict is returned when a collision would violate the
// at-most-one-active-calibration-per-device invariant or similar.
var ErrConflict = fmt.Errorf("calibration: conflict")

// Store manages calibration YAML files and the active-pointer file
// under one root directory.
type Store struct {
	root string
	mu   sync.Mutex
}

func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) deviceDir(device string) string {
	return filepath.Join(s.root, "storage", "calibrations", device)
}

func (s *Store) activePath() string {
	return filepath.Join(s.root, "storage", "calibrations", "active_calibrations.yaml")
}

func sanitizeComponent(name string) error {
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "..") {
		return fmt.Errorf("calibration: invalid path component %q", name)
	}
	return nil
}

// List returns the calibration names available for device, sorted.
func (s *Store) List(device string) ([]string, error) {
	if err := sanitizeComponent(device); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.deviceDir(device))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names, nil
}

// ListDevices returns every device with at least one calibration file.
func (s *Store) ListDevices() ([]string, error) {
	base := filepath.Join(s.root, "storage", "calibrations")
	entries, err := os.ReadDir(base)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var devices []string
	for _, e := range entries {
		if e.IsDir() {
			devices = append(devices, e.Name())
		}
	}
	sort.Strings(devices)
	return devices, nil
}

// Get reads and parses one calibration file into a generic document.
func (s *Store) Get(device, name string) (map[string]any, error) {
	if err := sanitizeComponent(device); err != nil {
		return nil, err
	}
	if err := sanitizeComponent(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.deviceDir(device), name+".yaml"))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Save writes a calibration document for device/name, creating the
// device directory if needed.
func (s *Store) Save(device, name string, doc map[string]any) error {
	if err := sanitizeComponent(device); err != nil {
		return err
	}
	if err := sanitizeComponent(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.deviceDir(device), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.deviceDir(device), name+".yaml"), data, 0o644)
}

// Delete removes a calibration file, and clears the active pointer for
// device if it pointed at name.
func (s *Store) Delete(device, name string) error {
	if err := sanitizeComponent(device); err != nil {
		return err
	}
	if err := sanitizeComponent(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.deviceDir(device), name+".yaml")
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}

	active, err := s.loadActiveLocked()
	if err != nil {
		return err
	}
	if active[device] == name {
		delete(active, device)
		return s.saveActiveLocked(active)
	}
	return nil
}

func (s *Store) loadActiveLocked() (map[string]string, error) {
	data, err := os.ReadFile(s.activePath())
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, err
	}
	active := make(map[string]string)
	if err := yaml.Unmarshal(data, &active); err != nil {
		return nil, err
	}
	return active, nil
}

func (s *Store) saveActiveLocked(active map[string]string) error {
	data, err := yaml.Marshal(active)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.activePath()), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.activePath(), data, 0o644)
}

// ActiveCalibrations returns the full device -> calibration_name map.
func (s *Store) ActiveCalibrations() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadActiveLocked()
}

// SetActive marks name as the active calibration for device, enforcing
// the at-most-one-active-per-device invariant (a plain overwrite) and
// that the named file exists.
func (s *Store) SetActive(device, name string) error {
	if err := sanitizeComponent(device); err != nil {
		return err
	}
	if err := sanitizeComponent(name); err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(s.deviceDir(device), name+".yaml")); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	active, err := s.loadActiveLocked()
	if err != nil {
		return err
	}
	active[device] = name
	return s.saveActiveLocked(active)
}

// ClearActive removes the active pointer for device, if one exists.
func (s *Store) ClearActive(device string) error {
	if err := sanitizeComponent(device); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	active, err := s.loadActiveLocked()
	if err != nil {
		return err
	}
	delete(active, device)
	return s.saveActiveLocked(active)
}
