// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package store

import (
	"fmt"
	"regexp"
	"time"
)

// timeSeriesTableName guards the one place a table name is string-
// concatenated into a query: measurement tables are opaque and
// per-device, never user-composed SQL, so this allow-list regex is the
// only thing standing between a caller and injection.
var timeSeriesTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// TimeSeriesPoint is one opaque row from a per-measurement table.
type TimeSeriesPoint struct {
	Timestamp      time.Time      `db:"timestamp"`
	PioreactorUnit string         `db:"pioreactor_unit"`
	ColumnName     string         `db:"column_name"`
	Value          float64        `db:"value"`
}

// ReadTimeSeries reads rows from the named measurement table for
// experiment within the lookback window and groups them by
// pioreactor_unit -> column_name -> []point, a nested aggregate suited to
// direct JSON serialization. The table is opaque to the core: we only
// read it by experiment + lookback, never parse it for domain logic.
func (s *Store) ReadTimeSeries(table, experiment string, lookback time.Duration) (map[string]map[string][]TimeSeriesPoint, error) {
	if !timeSeriesTableName.MatchString(table) {
		return nil, fmt.Errorf("store: invalid time series table name %q", table)
	}

	since := time.Now().UTC().Add(-lookback)
	rows, err := s.DB.Queryx(
		fmt.Sprintf(`SELECT timestamp, pioreactor_unit, column_name, value FROM %s WHERE experiment = ? AND timestamp >= ? ORDER BY timestamp ASC`, table),
		experiment, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]map[string][]TimeSeriesPoint)
	for rows.Next() {
		var p TimeSeriesPoint
		if err := rows.StructScan(&p); err != nil {
			return nil, err
		}
		byColumn, ok := out[p.PioreactorUnit]
		if !ok {
			byColumn = make(map[string][]TimeSeriesPoint)
			out[p.PioreactorUnit] = byColumn
		}
		byColumn[p.ColumnName] = append(byColumn[p.ColumnName], p)
	}
	return out, rows.Err()
}
