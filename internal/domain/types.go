// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package domain holds the wire/row types shared across store, fanout,
// taskengine and the two HTTP facades. Keeping them in one leaf package
// avoids import cycles between internal/store and internal/leaderapi.
package domain

import "time"

// LogLevel mirrors the five levels the cluster log stream understands.
type LogLevel string

const (
	LevelDebug   LogLevel = "DEBUG"
	LevelInfo    LogLevel = "INFO"
	LevelNotice  LogLevel = "NOTICE"
	LevelWarning LogLevel = "WARNING"
	LevelError   LogLevel = "ERROR"
)

// UniversalIdentifier is the $broadcast sentinel: "every active worker".
const UniversalIdentifier = "$broadcast"

// UniversalExperiment is the $experiment sentinel: "applies to all experiments".
const UniversalExperiment = "$experiment"

type Experiment struct {
	Experiment   string    `db:"experiment" json:"experiment"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	Description  *string   `db:"description" json:"description,omitempty"`
	MediaUsed    *string   `db:"media_used" json:"media_used,omitempty"`
	OrganismUsed *string   `db:"organism_used" json:"organism_used,omitempty"`
}

type Worker struct {
	PioreactorUnit string    `db:"pioreactor_unit" json:"pioreactor_unit"`
	AddedAt        time.Time `db:"added_at" json:"added_at"`
	IsActive       bool      `db:"is_active" json:"is_active"`
}

type Assignment struct {
	PioreactorUnit string    `db:"pioreactor_unit" json:"pioreactor_unit"`
	Experiment     string    `db:"experiment" json:"experiment"`
	AssignedAt     time.Time `db:"assigned_at" json:"assigned_at"`
}

type AssignmentHistory struct {
	PioreactorUnit string     `db:"pioreactor_unit" json:"pioreactor_unit"`
	Experiment     string     `db:"experiment" json:"experiment"`
	AssignedAt     time.Time  `db:"assigned_at" json:"assigned_at"`
	UnassignedAt   *time.Time `db:"unassigned_at" json:"unassigned_at,omitempty"`
}

type UnitLabel struct {
	Experiment     string    `db:"experiment" json:"experiment"`
	PioreactorUnit string    `db:"pioreactor_unit" json:"pioreactor_unit"`
	Label          string    `db:"label" json:"label"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

type LogEntry struct {
	Timestamp      time.Time `db:"timestamp" json:"timestamp"`
	Level          LogLevel  `db:"level" json:"level"`
	PioreactorUnit string    `db:"pioreactor_unit" json:"pioreactor_unit"`
	Message        string    `db:"message" json:"message"`
	Task           string    `db:"task" json:"task"`
	Experiment     string    `db:"experiment" json:"experiment"`
}

type ConfigFileHistory struct {
	Filename  string    `db:"filename" json:"filename"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	Data      []byte    `db:"data" json:"-"`
}

// TaskState is the lifecycle of a TaskRecord.
type TaskState string

const (
	TaskPending  TaskState = "pending"
	TaskRunning  TaskState = "running"
	TaskComplete TaskState = "complete"
	TaskFailed   TaskState = "failed"
	TaskLocked   TaskState = "locked"
)

// TaskRecord is the durably-stored row for one TaskEngine job.
type TaskRecord struct {
	ID        string    `db:"id" json:"id"`
	Kind      string    `db:"kind" json:"kind"`
	Args      []byte    `db:"args" json:"-"`
	LockName  string    `db:"lock_name" json:"lock_name,omitempty"`
	Priority  int       `db:"priority" json:"priority"`
	State     TaskState `db:"state" json:"state"`
	Result    []byte    `db:"result" json:"-"`
	Error     string    `db:"error" json:"error,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ArgsOptionsEnvs is the fixed-schema body accepted by the job-control
// endpoints: POST /workers/<u>/jobs/run/job_name/<job>.
type ArgsOptionsEnvs struct {
	Options map[string]any   `json:"options"`
	Args    []string         `json:"args"`
	Env     map[string]string `json:"env"`
}

// ExportDatasetsRequest is the body for POST /export_datasets.
type ExportDatasetsRequest struct {
	SelectedDatasets                []string `json:"selectedDatasets"`
	ExperimentSelection              []string `json:"experimentSelection"`
	PartitionByUnitSelection          bool     `json:"partitionByUnitSelection"`
	PartitionByExperimentSelection    bool     `json:"partitionByExperimentSelection"`
}

// FanoutResult is the result of a Fanout call: one entry per targeted
// worker, value nil on any per-worker failure.
type FanoutResult map[string]any
