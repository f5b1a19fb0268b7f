// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package store

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/pioreactor/pioreactorui-leader/internal/domain"
)

// UpsertWorker implements the idempotence invariant: PUT /workers with
// the same pioreactor_unit twice yields a single row.
func (s *Store) UpsertWorker(w domain.Worker) error {
	q, args, err := psql.Insert("workers").
		Columns("pioreactor_unit", "added_at", "is_active").
		Values(w.PioreactorUnit, w.AddedAt, w.IsActive).
		Suffix("ON CONFLICT(pioreactor_unit) DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.Modify(q, args...)
	return err
}

func (s *Store) ListWorkers() ([]domain.Worker, error) {
	var ws []domain.Worker
	q, args, err := psql.Select("pioreactor_unit", "added_at", "is_active").
		From("workers").OrderBy("added_at DESC").ToSql()
	if err != nil {
		return nil, err
	}
	if err := s.DB.Select(&ws, q, args...); err != nil {
		return nil, err
	}
	return ws, nil
}

func (s *Store) GetWorker(unit string) (domain.Worker, error) {
	var w domain.Worker
	q, args, err := psql.Select("pioreactor_unit", "added_at", "is_active").
		From("workers").Where(sq.Eq{"pioreactor_unit": unit}).ToSql()
	if err != nil {
		return w, err
	}
	if err := s.DB.Get(&w, q, args...); err != nil {
		return w, ErrNotFound
	}
	return w, nil
}

func (s *Store) SetWorkerActive(unit string, active bool) error {
	q, args, err := psql.Update("workers").Set("is_active", active).
		Where(sq.Eq{"pioreactor_unit": unit}).ToSql()
	if err != nil {
		return err
	}
	n, err := s.Modify(q, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteWorker removes a worker row; FK cascades remove its assignment.
func (s *Store) DeleteWorker(unit string) error {
	q, args, err := psql.Delete("workers").Where(sq.Eq{"pioreactor_unit": unit}).ToSql()
	if err != nil {
		return err
	}
	n, err := s.Modify(q, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActiveWorkersInExperiment returns workers assigned to experiment
// with is_active=1 -- the target set for broadcast job-run requests.
func (s *Store) ListActiveWorkersInExperiment(experiment string) ([]string, error) {
	var units []string
	q, args, err := psql.Select("w.pioreactor_unit").
		From("workers w").
		Join("experiment_worker_assignments a ON a.pioreactor_unit = w.pioreactor_unit").
		Where(sq.Eq{"a.experiment": experiment, "w.is_active": true}).
		ToSql()
	if err != nil {
		return nil, err
	}
	if err := s.DB.Select(&units, q, args...); err != nil {
		return nil, err
	}
	return units, nil
}

// ListAllWorkerUnits returns every worker's unit name, used to expand
// $broadcast when no experiment is in scope.
func (s *Store) ListAllWorkerUnits() ([]string, error) {
	var units []string
	q, args, err := psql.Select("pioreactor_unit").From("workers").OrderBy("added_at DESC").ToSql()
	if err != nil {
		return nil, err
	}
	if err := s.DB.Select(&units, q, args...); err != nil {
		return nil, err
	}
	return units, nil
}

// ListWorkersInExperiment returns every worker assigned to experiment,
// regardless of active state. UniversalExperiment ($experiment) expands
// to every worker in the cluster.
func (s *Store) ListWorkersInExperiment(experiment string) ([]string, error) {
	if experiment == domain.UniversalExperiment {
		return s.ListAllWorkerUnits()
	}
	var units []string
	q, args, err := psql.Select("pioreactor_unit").
		From("experiment_worker_assignments").
		Where(sq.Eq{"experiment": experiment}).
		ToSql()
	if err != nil {
		return nil, err
	}
	if err := s.DB.Select(&units, q, args...); err != nil {
		return nil, err
	}
	return units, nil
}
