// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package leaderapi

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSanitizeRegistryName(t *testing.T) {
	require.NoError(t, sanitizeRegistryName("my_chart"))
	require.Error(t, sanitizeRegistryName(""))
	require.Error(t, sanitizeRegistryName("../escape"))
	require.Error(t, sanitizeRegistryName("nested/name"))
}

func TestContribDirUnknownKind(t *testing.T) {
	_, err := contribDir("not_a_real_registry")
	require.Error(t, err)
}

func TestChartSchemaRejectsMissingRequiredFields(t *testing.T) {
	var doc any
	require.NoError(t, yaml.Unmarshal([]byte(`
title: Optical Density
data_source: od_readings
`), &doc))

	err := registryKinds["charts"].schema.Validate(jsonSchemaCompatible(doc))
	require.Error(t, err, "chart_key is required")
}

func TestChartSchemaAcceptsValidDocument(t *testing.T) {
	var doc any
	require.NoError(t, yaml.Unmarshal([]byte(`
chart_key: od_readings
title: Optical Density
data_source: od_readings
y_axis_label: OD600
`), &doc))

	require.NoError(t, registryKinds["charts"].schema.Validate(jsonSchemaCompatible(doc)))
}

func TestExperimentProfileSchemaRejectsMissingPioreactors(t *testing.T) {
	var doc any
	require.NoError(t, yaml.Unmarshal([]byte(`
experiment_profile_name: demo
`), &doc))

	require.Error(t, registryKinds["experiment_profiles"].schema.Validate(jsonSchemaCompatible(doc)))
}
