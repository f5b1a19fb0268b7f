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

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// CreateExperiment inserts a new experiment row. Returns ErrConflict if
// the experiment name already exists (unique index on experiment).
func (s *Store) CreateExperiment(e domain.Experiment) error {
	q, args, err := psql.Insert("experiments").
		Columns("experiment", "created_at", "description", "media_used", "organism_used").
		Values(e.Experiment, e.CreatedAt, e.Description, e.MediaUsed, e.OrganismUsed).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.Modify(q, args...)
	return err
}

// GetExperiment returns one experiment by name, or ErrNotFound.
func (s *Store) GetExperiment(name string) (domain.Experiment, error) {
	var e domain.Experiment
	q, args, err := psql.Select("experiment", "created_at", "description", "media_used", "organism_used").
		From("experiments").Where(sq.Eq{"experiment": name}).ToSql()
	if err != nil {
		return e, err
	}
	if err := s.DB.Get(&e, q, args...); err != nil {
		return e, ErrNotFound
	}
	return e, nil
}

// LatestExperiment returns the experiment with the most recent created_at.
func (s *Store) LatestExperiment() (domain.Experiment, error) {
	var e domain.Experiment
	q, args, err := psql.Select("experiment", "created_at", "description", "media_used", "organism_used").
		From("experiments").OrderBy("created_at DESC").Limit(1).ToSql()
	if err != nil {
		return e, err
	}
	if err := s.DB.Get(&e, q, args...); err != nil {
		return e, ErrNotFound
	}
	return e, nil
}

// ListExperiments returns all experiments, newest first.
func (s *Store) ListExperiments() ([]domain.Experiment, error) {
	var es []domain.Experiment
	q, args, err := psql.Select("experiment", "created_at", "description", "media_used", "organism_used").
		From("experiments").OrderBy("created_at DESC").ToSql()
	if err != nil {
		return nil, err
	}
	if err := s.DB.Select(&es, q, args...); err != nil {
		return nil, err
	}
	return es, nil
}

// UpdateExperimentDescription patches the description field.
func (s *Store) UpdateExperimentDescription(name, description string) error {
	q, args, err := psql.Update("experiments").Set("description", description).
		Where(sq.Eq{"experiment": name}).ToSql()
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

// DeleteExperiment removes the experiment row. FK cascades remove
// assignments, labels are scoped by FK too; logs reference by string and
// are not FK-cascaded (they are an append-only audit trail) so the
// caller decides separately whether to prune them.
func (s *Store) DeleteExperiment(name string) error {
	q, args, err := psql.Delete("experiments").Where(sq.Eq{"experiment": name}).ToSql()
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

// CurrentUTCTimestamp mirrors the original's current_utc_timestamp()
// helper: millisecond-precision UTC.
func CurrentUTCTimestamp() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
