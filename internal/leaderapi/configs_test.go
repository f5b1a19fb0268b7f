// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package leaderapi

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/ini.v1"
)

func TestNormalizeDashes(t *testing.T) {
	in := []byte("leader_address = 10.0.0.1\xe2\x80\x93beta\nnote = em\xe2\x80\x94dash")
	out := string(normalizeDashes(in))
	require.NotContains(t, out, "–")
	require.NotContains(t, out, "—")
	require.Contains(t, out, "10.0.0.1-beta")
	require.Contains(t, out, "em-dash")
}

func TestValidateClusterConfigRequiresFields(t *testing.T) {
	cfg, err := ini.Load([]byte(`
[cluster.topology]
leader_hostname = leader

[mqtt]
broker_address = 10.0.0.1
`))
	require.NoError(t, err)
	require.Error(t, validateClusterConfig(cfg), "missing leader_address should fail")
}

func TestValidateClusterConfigRejectsSchemePrefixedAddress(t *testing.T) {
	cfg, err := ini.Load([]byte(`
[cluster.topology]
leader_hostname = leader
leader_address = http://10.0.0.1

[mqtt]
broker_address = 10.0.0.1
`))
	require.NoError(t, err)
	require.Error(t, validateClusterConfig(cfg))
}

func TestValidateClusterConfigAccepts(t *testing.T) {
	cfg, err := ini.Load([]byte(`
[cluster.topology]
leader_hostname = leader
leader_address = 10.0.0.1

[mqtt]
broker_address = 10.0.0.2
`))
	require.NoError(t, err)
	require.NoError(t, validateClusterConfig(cfg))
}

func TestSafeConfigPathRejectsTraversal(t *testing.T) {
	s := &Service{ConfigRoot: "/tmp/configs"}

	_, err := s.safeConfigPath("../../etc/passwd.ini")
	require.Error(t, err)

	_, err = s.safeConfigPath("config")
	require.Error(t, err, "missing .ini suffix should be rejected")

	path, err := s.safeConfigPath("config.ini")
	require.NoError(t, err)
	require.Equal(t, "/tmp/configs/config.ini", path)
}
