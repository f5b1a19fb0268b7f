// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package leaderapi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateExperimentName(t *testing.T) {
	require.NoError(t, validateExperimentName("my-experiment"))

	cases := []string{
		"",
		"current",
		"_testing_foo",
		"has#hash",
		"has+plus",
		"has$dollar",
		"has/slash",
		"has%percent",
		`has\backslash`,
	}
	for _, name := range cases {
		require.Error(t, validateExperimentName(name), "expected %q to be rejected", name)
	}

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	require.Error(t, validateExperimentName(string(long)))
}
