// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package applog is the dual-sink logger of the leader: an error logged
// through Logger.Error is written to the UI log file (pkg/log) *and*
// published as a structured ERROR envelope to the pub/sub log topic, and
// every entry is inserted into the logs table so the browser's log
// viewer can show it. Handler failures answered through
// httpkit.WriteError do not pass through this package; they are only
// written to pkg/log at WARNING. It depends only on small interfaces
// so internal/store and internal/bus do not need to import it.
package applog

import (
	"encoding/json"
	"time"

	"github.com/pioreactor/pioreactorui-leader/internal/domain"
	"github.com/pioreactor/pioreactorui-leader/pkg/log"
)

// RowWriter is satisfied by internal/store.Store.
type RowWriter interface {
	InsertLog(entry domain.LogEntry) error
}

// Publisher is satisfied by internal/bus.Bus.
type Publisher interface {
	PublishLog(leader, experiment, level string, envelope []byte)
}

// Logger is the composed sink used throughout internal/leaderapi and
// internal/unitapi.
type Logger struct {
	rows      RowWriter
	publisher Publisher
	leader    string
}

func New(rows RowWriter, publisher Publisher, leaderUnit string) *Logger {
	return &Logger{rows: rows, publisher: publisher, leader: leaderUnit}
}

type envelope struct {
	Message   string    `json:"message"`
	Task      string    `json:"task"`
	Source    string    `json:"source"`
	Level     string    `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

// Log records one log line at level for unit in experiment, under task.
// ERROR-level entries are also published to the bus log topic so
// connected workers and other UI clients see them in real time.
func (l *Logger) Log(level domain.LogLevel, unit, experiment, task, message string) {
	switch level {
	case domain.LevelDebug:
		log.Debug(message)
	case domain.LevelNotice:
		log.Note(message)
	case domain.LevelWarning:
		log.Warn(message)
	case domain.LevelError:
		log.Error(message)
	default:
		log.Info(message)
	}

	if l.rows != nil {
		_ = l.rows.InsertLog(domain.LogEntry{
			Timestamp:      time.Now().UTC(),
			Level:          level,
			PioreactorUnit: unit,
			Message:        message,
			Task:           task,
			Experiment:     experiment,
		})
	}

	if level == domain.LevelError && l.publisher != nil {
		env := envelope{Message: message, Task: task, Source: "ui", Level: string(level), Timestamp: time.Now().UTC()}
		if payload, err := json.Marshal(env); err == nil {
			l.publisher.PublishLog(l.leader, experiment, "error", payload)
		}
	}
}

func (l *Logger) Info(unit, experiment, task, message string) {
	l.Log(domain.LevelInfo, unit, experiment, task, message)
}

func (l *Logger) Error(unit, experiment, task, message string) {
	l.Log(domain.LevelError, unit, experiment, task, message)
}
