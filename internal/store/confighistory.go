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

// RecordConfigHistory appends an immutable snapshot of a written config file.
func (s *Store) RecordConfigHistory(filename string, data []byte, at time.Time) error {
	q, args, err := psql.Insert("config_file_history").
		Columns("filename", "timestamp", "data").
		Values(filename, at, data).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.Modify(q, args...)
	return err
}

// ListConfigHistory returns every recorded revision of filename, newest first.
func (s *Store) ListConfigHistory(filename string) ([]domain.ConfigFileHistory, error) {
	var hist []domain.ConfigFileHistory
	q, args, err := psql.Select("filename", "timestamp", "data").
		From("config_file_history").
		Where(sq.Eq{"filename": filename}).
		OrderBy("timestamp DESC").
		ToSql()
	if err != nil {
		return nil, err
	}
	if err := s.DB.Select(&hist, q, args...); err != nil {
		return nil, err
	}
	return hist, nil
}
