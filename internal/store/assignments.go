// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package store

import (
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/pioreactor/pioreactorui-leader/internal/domain"
)

// AssignWorker upserts the single-row-per-worker assignment (at most one
// row per pioreactor_unit) and appends an entry to the append-only
// assignment_history shadow table.
func (s *Store) AssignWorker(unit, experiment string, at time.Time) error {
	upsert, args, err := psql.Insert("experiment_worker_assignments").
		Columns("pioreactor_unit", "experiment", "assigned_at").
		Values(unit, experiment, at).
		Suffix("ON CONFLICT(pioreactor_unit) DO UPDATE SET experiment = excluded.experiment, assigned_at = excluded.assigned_at").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.Modify(upsert, args...); err != nil {
		return err
	}

	hist, histArgs, err := psql.Insert("experiment_worker_assignment_history").
		Columns("pioreactor_unit", "experiment", "assigned_at").
		Values(unit, experiment, at).ToSql()
	if err != nil {
		return err
	}
	_, err = s.Modify(hist, histArgs...)
	return err
}

// UnassignWorker deletes the live assignment row and stamps
// unassigned_at on the most recent open history entry for this unit.
func (s *Store) UnassignWorker(unit string, at time.Time) error {
	del, args, err := psql.Delete("experiment_worker_assignments").
		Where(sq.Eq{"pioreactor_unit": unit}).ToSql()
	if err != nil {
		return err
	}
	n, err := s.Modify(del, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	// SQLite's default build does not support UPDATE ... ORDER BY ... LIMIT,
	// so the most-recent-open-row selection is done via a correlated
	// subquery against rowid instead.
	upd, updArgs, err := psql.Update("experiment_worker_assignment_history").
		Set("unassigned_at", at).
		Where("rowid = (SELECT rowid FROM experiment_worker_assignment_history "+
			"WHERE pioreactor_unit = ? AND unassigned_at IS NULL "+
			"ORDER BY assigned_at DESC LIMIT 1)", unit).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.Modify(upd, updArgs...)
	return err
}

// GetWorkerExperiment returns the experiment a worker is currently
// assigned to, or ErrNotFound if unassigned.
func (s *Store) GetWorkerExperiment(unit string) (domain.Assignment, error) {
	var a domain.Assignment
	q, args, err := psql.Select("pioreactor_unit", "experiment", "assigned_at").
		From("experiment_worker_assignments").
		Where(sq.Eq{"pioreactor_unit": unit}).ToSql()
	if err != nil {
		return a, err
	}
	if err := s.DB.Get(&a, q, args...); err != nil {
		return a, ErrNotFound
	}
	return a, nil
}

// IsWorkerAssignedTo reports whether unit is currently assigned to
// experiment and active -- used by the single-worker "run job" guard,
// which additionally requires that the targeted worker be assigned to
// the experiment making the request. A worker that was unassigned or
// deactivated must not accept job-run requests until reassigned or
// reactivated.
func (s *Store) IsWorkerAssignedTo(unit, experiment string) bool {
	a, err := s.GetWorkerExperiment(unit)
	if err != nil || a.Experiment != experiment {
		return false
	}
	w, err := s.GetWorker(unit)
	return err == nil && w.IsActive
}
