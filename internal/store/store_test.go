// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pioreactor/pioreactorui-leader/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestExperimentCreateDeleteCascade(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.CreateExperiment(domain.Experiment{Experiment: "exp-A", CreatedAt: CurrentUTCTimestamp()}))
	require.NoError(t, s.UpsertWorker(domain.Worker{PioreactorUnit: "pio01", AddedAt: CurrentUTCTimestamp(), IsActive: true}))
	require.NoError(t, s.AssignWorker("pio01", "exp-A", CurrentUTCTimestamp()))

	_, err := s.GetWorkerExperiment("pio01")
	require.NoError(t, err)

	require.NoError(t, s.DeleteExperiment("exp-A"))

	_, err = s.GetExperiment("exp-A")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetWorkerExperiment("pio01")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateExperimentDuplicateIsConflict(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateExperiment(domain.Experiment{Experiment: "exp-A", CreatedAt: CurrentUTCTimestamp()}))
	err := s.CreateExperiment(domain.Experiment{Experiment: "exp-A", CreatedAt: CurrentUTCTimestamp()})
	require.ErrorIs(t, err, ErrConflict)
}

func TestAssignmentSingleRowPerWorker(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateExperiment(domain.Experiment{Experiment: "exp-A", CreatedAt: CurrentUTCTimestamp()}))
	require.NoError(t, s.CreateExperiment(domain.Experiment{Experiment: "exp-B", CreatedAt: CurrentUTCTimestamp()}))
	require.NoError(t, s.UpsertWorker(domain.Worker{PioreactorUnit: "pio01", AddedAt: CurrentUTCTimestamp(), IsActive: true}))

	require.NoError(t, s.AssignWorker("pio01", "exp-A", CurrentUTCTimestamp()))
	require.NoError(t, s.AssignWorker("pio01", "exp-B", CurrentUTCTimestamp()))

	var count int
	require.NoError(t, s.DB.Get(&count, "SELECT COUNT(*) FROM experiment_worker_assignments WHERE pioreactor_unit = ?", "pio01"))
	require.Equal(t, 1, count)

	a, err := s.GetWorkerExperiment("pio01")
	require.NoError(t, err)
	require.Equal(t, "exp-B", a.Experiment)
}

func TestUpsertWorkerIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertWorker(domain.Worker{PioreactorUnit: "pio01", AddedAt: CurrentUTCTimestamp(), IsActive: true}))
	require.NoError(t, s.UpsertWorker(domain.Worker{PioreactorUnit: "pio01", AddedAt: CurrentUTCTimestamp(), IsActive: true}))

	var count int
	require.NoError(t, s.DB.Get(&count, "SELECT COUNT(*) FROM workers WHERE pioreactor_unit = ?", "pio01"))
	require.Equal(t, 1, count)
}

func TestUnitLabelUniqueAndEmptyDeletes(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateExperiment(domain.Experiment{Experiment: "exp-A", CreatedAt: CurrentUTCTimestamp()}))

	require.NoError(t, s.SetUnitLabel("exp-A", "pio01", "my-label", CurrentUTCTimestamp()))
	labels, err := s.ListUnitLabels("exp-A")
	require.NoError(t, err)
	require.Len(t, labels, 1)
	require.Equal(t, "my-label", labels[0].Label)

	require.NoError(t, s.SetUnitLabel("exp-A", "pio01", "renamed", CurrentUTCTimestamp()))
	labels, err = s.ListUnitLabels("exp-A")
	require.NoError(t, err)
	require.Len(t, labels, 1)
	require.Equal(t, "renamed", labels[0].Label)

	require.NoError(t, s.SetUnitLabel("exp-A", "pio01", "", CurrentUTCTimestamp()))
	labels, err = s.ListUnitLabels("exp-A")
	require.NoError(t, err)
	require.Len(t, labels, 0)
}

func TestUnassignMissingWorkerIsNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.UnassignWorker("ghost", time.Now())
	require.ErrorIs(t, err, ErrNotFound)
}
