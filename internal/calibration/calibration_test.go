// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package calibration

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveGetListRoundTrip(t *testing.T) {
	s := New(t.TempDir())

	require.NoError(t, s.Save("od_sensor", "cal-v1", map[string]any{"slope": 1.5}))
	require.NoError(t, s.Save("od_sensor", "cal-v2", map[string]any{"slope": 1.6}))

	names, err := s.List("od_sensor")
	require.NoError(t, err)
	require.Equal(t, []string{"cal-v1", "cal-v2"}, names)

	doc, err := s.Get("od_sensor", "cal-v1")
	require.NoError(t, err)
	require.EqualValues(t, 1.5, doc["slope"])
}

func TestSetActiveRequiresExistingFile(t *testing.T) {
	s := New(t.TempDir())
	err := s.SetActive("od_sensor", "ghost")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save("od_sensor", "cal-v1", map[string]any{"slope": 1.5}))
	require.NoError(t, s.SetActive("od_sensor", "cal-v1"))

	active, err := s.ActiveCalibrations()
	require.NoError(t, err)
	require.Equal(t, "cal-v1", active["od_sensor"])
}

func TestDeleteActiveCalibrationClearsPointer(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Save("od_sensor", "cal-v1", map[string]any{"slope": 1.5}))
	require.NoError(t, s.SetActive("od_sensor", "cal-v1"))

	require.NoError(t, s.Delete("od_sensor", "cal-v1"))

	active, err := s.ActiveCalibrations()
	require.NoError(t, err)
	_, ok := active["od_sensor"]
	require.False(t, ok)
}

func TestDeleteMissingCalibrationIsNotFound(t *testing.T) {
	s := New(t.TempDir())
	err := s.Delete("od_sensor", "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}
