// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package unitapi

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestJobStore(t *testing.T) *JobStore {
	t.Helper()
	js, err := OpenJobStore(filepath.Join(t.TempDir(), "jobs.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = js.Close() })
	return js
}

func TestRecordStartAndRunning(t *testing.T) {
	js := newTestJobStore(t)

	require.NoError(t, js.RecordStart("job-1", "stirring", "user", "exp-A", time.Now().UTC()))
	require.NoError(t, js.RecordStart("job-2", "od_reading", "user", "exp-A", time.Now().UTC()))

	running, err := js.Running()
	require.NoError(t, err)
	require.Len(t, running, 2)
}

func TestRecordStopFiltersByJobName(t *testing.T) {
	js := newTestJobStore(t)
	require.NoError(t, js.RecordStart("job-1", "stirring", "", "exp-A", time.Now().UTC()))
	require.NoError(t, js.RecordStart("job-2", "od_reading", "", "exp-A", time.Now().UTC()))

	n, err := js.RecordStop("stirring", "", "", "")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	running, err := js.Running()
	require.NoError(t, err)
	require.Len(t, running, 1)
	require.Equal(t, "od_reading", running[0].JobName)
}

func TestPutAndGetSettings(t *testing.T) {
	js := newTestJobStore(t)
	require.NoError(t, js.RecordStart("job-1", "stirring", "", "exp-A", time.Now().UTC()))
	require.NoError(t, js.PutSetting("job-1", "target_rpm", "400", time.Now().UTC()))
	require.NoError(t, js.PutSetting("job-1", "target_rpm", "500", time.Now().UTC()))

	settings, err := js.Settings("stirring", "")
	require.NoError(t, err)
	require.Equal(t, "500", settings["target_rpm"])

	settings, err = js.Settings("stirring", "target_rpm")
	require.NoError(t, err)
	require.Len(t, settings, 1)
}
