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

// SetUnitLabel upserts the (experiment, pioreactor_unit) unique label,
// or deletes the row when label is empty.
func (s *Store) SetUnitLabel(experiment, unit, label string, at time.Time) error {
	if label == "" {
		q, args, err := psql.Delete("pioreactor_unit_labels").
			Where(sq.Eq{"experiment": experiment, "pioreactor_unit": unit}).ToSql()
		if err != nil {
			return err
		}
		_, err = s.Modify(q, args...)
		return err
	}

	q, args, err := psql.Insert("pioreactor_unit_labels").
		Columns("experiment", "pioreactor_unit", "label", "created_at").
		Values(experiment, unit, label, at).
		Suffix("ON CONFLICT(experiment, pioreactor_unit) DO UPDATE SET label = excluded.label, created_at = excluded.created_at").
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.Modify(q, args...)
	return err
}

func (s *Store) ListUnitLabels(experiment string) ([]domain.UnitLabel, error) {
	var labels []domain.UnitLabel
	q, args, err := psql.Select("experiment", "pioreactor_unit", "label", "created_at").
		From("pioreactor_unit_labels").
		Where(sq.Eq{"experiment": experiment}).ToSql()
	if err != nil {
		return nil, err
	}
	if err := s.DB.Select(&labels, q, args...); err != nil {
		return nil, err
	}
	return labels, nil
}
