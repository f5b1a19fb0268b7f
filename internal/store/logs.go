// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package store

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/pioreactor/pioreactorui-leader/internal/domain"
)

// InsertLog appends one log row. This is the RowWriter internal/applog
// depends on.
func (s *Store) InsertLog(entry domain.LogEntry) error {
	q, args, err := psql.Insert("logs").
		Columns("timestamp", "level", "pioreactor_unit", "message", "task", "experiment").
		Values(entry.Timestamp, entry.Level, entry.PioreactorUnit, entry.Message, entry.Task, entry.Experiment).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.Modify(q, args...)
	return err
}

// ListLogs returns the most recent logs for experiment (or its
// UniversalExperiment-tagged entries), newest first, capped at limit.
func (s *Store) ListLogs(experiment string, limit int) ([]domain.LogEntry, error) {
	var logs []domain.LogEntry
	q, args, err := psql.Select("timestamp", "level", "pioreactor_unit", "message", "task", "experiment").
		From("logs").
		Where(sq.Or{
			sq.Eq{"experiment": experiment},
			sq.Eq{"experiment": domain.UniversalExperiment},
		}).
		OrderBy("timestamp DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}
	if err := s.DB.Select(&logs, q, args...); err != nil {
		return nil, err
	}
	return logs, nil
}
