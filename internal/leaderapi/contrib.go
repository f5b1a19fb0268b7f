// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package leaderapi

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/pioreactor/pioreactorui-leader/internal/config"
	"github.com/pioreactor/pioreactorui-leader/internal/httpkit"
)

// registryKinds maps the five contrib registries named in the external
// interface table to the on-disk subdirectory under StorageRoot they
// are stored in and the schema each document must validate against.
var registryKinds = map[string]struct {
	dir    string
	schema *jsonschema.Schema
}{
	"automations":         {dir: "plugins/automations", schema: mustCompileSchema("automation", automationSchemaJSON)},
	"jobs":                {dir: "plugins/jobs", schema: mustCompileSchema("job", jobSchemaJSON)},
	"charts":              {dir: "plugins/charts", schema: mustCompileSchema("chart", chartSchemaJSON)},
	"experiment_profiles": {dir: "experiment_profiles", schema: mustCompileSchema("experiment_profile", experimentProfileSchemaJSON)},
	"exportable_datasets":  {dir: "exportable_datasets", schema: mustCompileSchema("exportable_dataset", exportableDatasetSchemaJSON)},
}

const (
	automationSchemaJSON = `{
		"type": "object",
		"required": ["automation_name", "display_name"],
		"properties": {
			"automation_name": {"type": "string", "minLength": 1},
			"display_name": {"type": "string", "minLength": 1},
			"description": {"type": "string"},
			"fields": {"type": "array"}
		}
	}`
	jobSchemaJSON = `{
		"type": "object",
		"required": ["job_name", "display_name"],
		"properties": {
			"job_name": {"type": "string", "minLength": 1},
			"display_name": {"type": "string", "minLength": 1},
			"published_settings": {"type": "array"}
		}
	}`
	chartSchemaJSON = `{
		"type": "object",
		"required": ["chart_key", "title", "data_source"],
		"properties": {
			"chart_key": {"type": "string", "minLength": 1},
			"title": {"type": "string", "minLength": 1},
			"data_source": {"type": "string", "minLength": 1},
			"y_axis_label": {"type": "string"}
		}
	}`
	experimentProfileSchemaJSON = `{
		"type": "object",
		"required": ["experiment_profile_name", "pioreactors"],
		"properties": {
			"experiment_profile_name": {"type": "string", "minLength": 1},
			"pioreactors": {"type": "array"},
			"common": {"type": "object"}
		}
	}`
	exportableDatasetSchemaJSON = `{
		"type": "object",
		"required": ["dataset_name", "table"],
		"properties": {
			"dataset_name": {"type": "string", "minLength": 1},
			"table": {"type": "string", "minLength": 1},
			"query": {"type": "string"}
		}
	}`
)

func mustCompileSchema(name, schemaJSON string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	url := "mem://" + name + ".json"
	if err := compiler.AddResource(url, strings.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("leaderapi: compiling %s schema: %v", name, err))
	}
	return compiler.MustCompile(url)
}

func contribDir(kind string) (string, error) {
	k, ok := registryKinds[kind]
	if !ok {
		return "", fmt.Errorf("unknown registry %q", kind)
	}
	return filepath.Join(config.Keys.StorageRoot, k.dir), nil
}

func sanitizeRegistryName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid registry entry name %q", name)
	}
	return nil
}

func (s *Service) listContrib(rw http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	dir, err := contribDir(kind)
	if err != nil {
		httpkit.WriteError(rw, http.StatusNotFound, err)
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			httpkit.WriteJSON(rw, http.StatusOK, []string{})
			return
		}
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}

	var docs []map[string]any
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		doc, err := readRegistryDoc(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	httpkit.WriteJSON(rw, http.StatusOK, docs)
}

func (s *Service) getContrib(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, name := vars["kind"], vars["name"]
	if err := sanitizeRegistryName(name); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, err)
		return
	}
	dir, err := contribDir(kind)
	if err != nil {
		httpkit.WriteError(rw, http.StatusNotFound, err)
		return
	}

	doc, err := readRegistryDoc(filepath.Join(dir, name+".yaml"))
	if err != nil {
		httpkit.WriteError(rw, http.StatusNotFound, fmt.Errorf("%s %q not found", kind, name))
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, doc)
}

func readRegistryDoc(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// writeContrib handles both create (POST) and update (PUT/PATCH): the
// document is decoded as YAML, validated against the registry's fixed
// schema, and written to <dir>/<name>.yaml.
func (s *Service) writeContrib(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, name := vars["kind"], vars["name"]
	if err := sanitizeRegistryName(name); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, err)
		return
	}

	k, ok := registryKinds[kind]
	if !ok {
		httpkit.WriteError(rw, http.StatusNotFound, fmt.Errorf("unknown registry %q", kind))
		return
	}

	var req struct {
		Data string `json:"data"`
	}
	if err := httpkit.Decode(r.Body, &req); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("parsing request body failed: %w", err))
		return
	}

	var doc any
	if err := yaml.Unmarshal([]byte(req.Data), &doc); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("invalid yaml: %w", err))
		return
	}
	if err := k.schema.Validate(jsonSchemaCompatible(doc)); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("schema validation failed: %w", err))
		return
	}

	dir := filepath.Join(config.Keys.StorageRoot, k.dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(req.Data), 0o644); err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}

	s.Cache.EvictTag(cacheTagForRegistry(kind))
	httpkit.WriteJSON(rw, http.StatusOK, map[string]string{"msg": "saved"})
}

func (s *Service) deleteContrib(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, name := vars["kind"], vars["name"]
	if err := sanitizeRegistryName(name); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, err)
		return
	}
	dir, err := contribDir(kind)
	if err != nil {
		httpkit.WriteError(rw, http.StatusNotFound, err)
		return
	}

	if err := os.Remove(filepath.Join(dir, name+".yaml")); err != nil {
		if os.IsNotExist(err) {
			httpkit.WriteError(rw, http.StatusNotFound, fmt.Errorf("%s %q not found", kind, name))
			return
		}
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}

	s.Cache.EvictTag(cacheTagForRegistry(kind))
	httpkit.WriteJSON(rw, http.StatusOK, map[string]string{"msg": "deleted"})
}

func cacheTagForRegistry(kind string) string {
	return "contrib_" + kind
}

// jsonSchemaCompatible walks a yaml.v3-decoded value tree and converts
// map[any]any nodes (which yaml.v3 can produce for non-string-keyed
// mappings) into map[string]any, since jsonschema/v5 only accepts the
// same value shapes encoding/json would produce.
func jsonSchemaCompatible(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = jsonSchemaCompatible(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = jsonSchemaCompatible(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = jsonSchemaCompatible(val)
		}
		return out
	default:
		return t
	}
}
