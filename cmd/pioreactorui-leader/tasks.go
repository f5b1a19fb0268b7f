// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pioreactor/pioreactorui-leader/internal/fanout"
	"github.com/pioreactor/pioreactorui-leader/internal/workerrpc"
	"github.com/pioreactor/pioreactorui-leader/pkg/log"
)

// handlePioRun shells out to `pio run <job> <args...>` with the given
// options and environment, then returns once the process has started.
// It is registered at priority 10 so a run request jumps ahead of
// routine maintenance tasks already queued.
func handlePioRun(ctx context.Context, raw json.RawMessage) (any, error) {
	var req struct {
		JobID   string            `json:"job_id"`
		Job     string            `json:"job"`
		Options map[string]string `json:"options"`
		Args    []string          `json:"args"`
		Env     map[string]string `json:"env"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}

	cmdArgs := append([]string{"run", req.Job}, req.Args...)
	for k, v := range req.Options {
		cmdArgs = append(cmdArgs, "--"+k, v)
	}
	cmd := exec.Command("pio", cmdArgs...)
	cmd.Env = os.Environ()
	for k, v := range req.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting pio run %s: %w", req.Job, err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Errorf("pio run %s (job_id=%s) exited: %v", req.Job, req.JobID, err)
		}
	}()
	return map[string]string{"job_id": req.JobID}, nil
}

// handlePioKill runs `pio kill` with whichever filter fields were set,
// at priority 100 so a stop request always jumps the queue ahead of
// anything slower still waiting for its lock.
func handlePioKill(ctx context.Context, raw json.RawMessage) (any, error) {
	var req struct {
		JobName    string `json:"job_name"`
		Experiment string `json:"experiment"`
		JobSource  string `json:"job_source"`
		JobID      string `json:"job_id"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}

	args := []string{"kill"}
	if req.JobName != "" {
		args = append(args, "--job-name", req.JobName)
	}
	if req.Experiment != "" {
		args = append(args, "--experiment", req.Experiment)
	}
	if req.JobSource != "" {
		args = append(args, "--job-source", req.JobSource)
	}
	if req.JobID != "" {
		args = append(args, "--job-id", req.JobID)
	}
	out, err := exec.CommandContext(ctx, "pio", args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pio kill: %w: %s", err, out)
	}
	return map[string]string{"msg": "killed"}, nil
}

// handleAddNewPioreactor runs `pio workers add` on the leader, which SSHes
// into the new unit, installs the matching app/ui version, and registers
// it with the cluster.
func handleAddNewPioreactor(ctx context.Context, raw json.RawMessage) (any, error) {
	var req struct {
		PioreactorUnit string `json:"pioreactor_unit"`
		Version        string `json:"version"`
		Model          string `json:"model"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}

	args := []string{"workers", "add", req.PioreactorUnit}
	if req.Version != "" {
		args = append(args, "-v", req.Version)
	}
	if req.Model != "" {
		args = append(args, "-m", req.Model)
	}
	out, err := exec.CommandContext(ctx, "pio", args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pio workers add %s: %w: %s", req.PioreactorUnit, err, out)
	}
	return map[string]string{"pioreactor_unit": req.PioreactorUnit}, nil
}

// handleWriteConfigAndSync runs `pio sync-configs` after a config file
// write, which pushes the updated file out to the workers it targets.
func handleWriteConfigAndSync(rpc *workerrpc.Client) taskFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req struct {
			Filename string `json:"filename"`
			Target   string `json:"target"`
			Flag     string `json:"flag"`
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, err
		}

		args := []string{"sync-configs", req.Flag}
		if req.Target != "" {
			args = append(args, "--units", req.Target)
		}
		out, err := exec.CommandContext(ctx, "pio", args...).CombinedOutput()
		if err != nil {
			return nil, fmt.Errorf("pio sync-configs: %w: %s", err, out)
		}
		return map[string]string{"filename": req.Filename}, nil
	}
}

// handlePioExport runs `pio run export_experiment_data` and returns the
// resulting archive's filename.
func handlePioExport(ctx context.Context, raw json.RawMessage) (any, error) {
	var req struct {
		Experiments      []string `json:"experimentSelection"`
		SelectedDatasets []string `json:"selectedDatasets"`
		OutputDir        string   `json:"outputDir"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}

	args := []string{"run", "export_experiment_data"}
	for _, e := range req.Experiments {
		args = append(args, "--experiment", e)
	}
	for _, d := range req.SelectedDatasets {
		args = append(args, "--dataset", d)
	}
	out, err := exec.CommandContext(ctx, "pio", args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pio run export_experiment_data: %w: %s", err, out)
	}
	filename := filepath.Base(string(out))
	return map[string]string{"filename": filename}, nil
}

// handlePioPluginsMutate installs or uninstalls one plugin via `pio
// plugins <op>`.
func handlePioPluginsMutate(op string) taskFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req struct {
			PluginName string `json:"plugin_name"`
			Version    string `json:"version"`
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, err
		}

		args := []string{"plugins", op, req.PluginName}
		if op == "install" && req.Version != "" {
			args = append(args, "--version", req.Version)
		}
		out, err := exec.CommandContext(ctx, "pio", args...).CombinedOutput()
		if err != nil {
			return nil, fmt.Errorf("pio plugins %s %s: %w: %s", op, req.PluginName, err, out)
		}
		return map[string]string{"plugin_name": req.PluginName}, nil
	}
}

// handlePioPluginsList returns the output of `pio plugins list --json`,
// used by the leader-side "installed plugins across the cluster" view.
func handlePioPluginsList(ctx context.Context, raw json.RawMessage) (any, error) {
	out, err := exec.CommandContext(ctx, "pio", "plugins", "list", "--json").Output()
	if err != nil {
		return nil, fmt.Errorf("pio plugins list: %w", err)
	}
	var plugins []map[string]any
	if err := json.Unmarshal(out, &plugins); err != nil {
		return nil, err
	}
	return plugins, nil
}

// handlePioUpdate runs `pio update --component <component>` for a
// self-update of the app, the ui, or everything.
func handlePioUpdate(component string) taskFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		out, err := exec.CommandContext(ctx, "pio", "update", "--component", component).CombinedOutput()
		if err != nil {
			return nil, fmt.Errorf("pio update --component %s: %w: %s", component, err, out)
		}
		return map[string]string{"component": component}, nil
	}
}

// handleUpdateFromArchive unpacks an uploaded release archive locally
// via `pio update --archive`. When the request names units, it then
// posts the request to each named unit's
// /unit_api/system/update_from_archive; when it names none, nothing is
// posted to any worker.
func handleUpdateFromArchive(rpc *workerrpc.Client) taskFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req struct {
			ArchiveFilename string   `json:"archive_filename"`
			Units           []string `json:"units,omitempty"`
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, err
		}

		out, err := exec.CommandContext(ctx, "pio", "update", "--archive", req.ArchiveFilename).CombinedOutput()
		if err != nil {
			return nil, fmt.Errorf("pio update --archive %s: %w: %s", req.ArchiveFilename, err, out)
		}

		if len(req.Units) == 0 {
			return map[string]string{"archive_filename": req.ArchiveFilename}, nil
		}
		result := fanout.Post(rpc, "/unit_api/system/update_from_archive", req.Units, req)
		return result, nil
	}
}

// handleMulticastPostAcrossCluster is the generic fan-out task kind
// enqueued by LeaderAPI handlers that need to POST the same body to a
// set of workers asynchronously (job runs, primarily).
func handleMulticastPostAcrossCluster(rpc *workerrpc.Client) taskFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req struct {
			Endpoint string   `json:"endpoint"`
			Workers  []string `json:"workers"`
			Body     any      `json:"body"`
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, err
		}
		result := fanout.Post(rpc, req.Endpoint, req.Workers, req.Body)
		return result, nil
	}
}

// taskFunc matches taskengine.Handler without importing the package
// here just for the type name.
type taskFunc = func(ctx context.Context, args json.RawMessage) (any, error)
