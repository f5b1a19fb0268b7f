// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package unitapi

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pioreactor/pioreactorui-leader/internal/httpkit"
	"github.com/pioreactor/pioreactorui-leader/pkg/log"
)

// reboot schedules a reboot. When this node is the leader it sleeps 5s
// first so in-flight Fanout responses to other nodes have time to drain
// before the leader itself goes down.
func (s *Service) reboot(rw http.ResponseWriter, r *http.Request) {
	delay := time.Duration(0)
	if s.IsLeader {
		delay = 5 * time.Second
	}
	go func() {
		time.Sleep(delay)
		if err := exec.Command("sudo", "reboot").Run(); err != nil {
			log.Errorf("unitapi: reboot failed: %v", err)
		}
	}()
	httpkit.WriteJSON(rw, http.StatusOK, map[string]string{"msg": "rebooting"})
}

func (s *Service) shutdown(rw http.ResponseWriter, r *http.Request) {
	delay := time.Duration(0)
	if s.IsLeader {
		delay = 5 * time.Second
	}
	go func() {
		time.Sleep(delay)
		if err := exec.Command("sudo", "shutdown", "now").Run(); err != nil {
			log.Errorf("unitapi: shutdown failed: %v", err)
		}
	}()
	httpkit.WriteJSON(rw, http.StatusOK, map[string]string{"msg": "shutting down"})
}

// removeFile deletes a file, but only if its path begins with
// /home/pioreactor or /tmp -- a /home/pioreactor-only whitelist also
// rejects legitimate callers removing their own temp files.
func (s *Service) removeFile(rw http.ResponseWriter, r *http.Request) {
	var req struct {
		Filepath string `json:"filepath"`
	}
	if err := httpkit.Decode(r.Body, &req); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("parsing request body failed: %w", err))
		return
	}
	if !strings.HasPrefix(req.Filepath, "/home/pioreactor") && !strings.HasPrefix(req.Filepath, "/tmp") {
		httpkit.WriteError(rw, http.StatusForbidden, fmt.Errorf("path %q is outside the allowed roots", req.Filepath))
		return
	}
	if err := os.Remove(req.Filepath); err != nil {
		if os.IsNotExist(err) {
			httpkit.WriteError(rw, http.StatusNotFound, err)
			return
		}
		httpkit.WriteError(rw, http.StatusInternalServerError, err)
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, map[string]string{"msg": "removed"})
}

func (s *Service) getUTCClock(rw http.ResponseWriter, r *http.Request) {
	httpkit.WriteJSON(rw, http.StatusOK, map[string]string{"utc": time.Now().UTC().Format(time.RFC3339)})
}

// setUTCClock sets the system clock. The leader may `sudo date -s`
// directly; non-leader nodes step their clock via chrony instead, since
// they take their time from the leader's NTP-like broadcast in normal
// operation and a manual date -s there would just be overwritten.
func (s *Service) setUTCClock(rw http.ResponseWriter, r *http.Request) {
	var req struct {
		UTC string `json:"utc"`
	}
	if err := httpkit.Decode(r.Body, &req); err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("parsing request body failed: %w", err))
		return
	}
	parsed, err := time.Parse(time.RFC3339, req.UTC)
	if err != nil {
		httpkit.WriteError(rw, http.StatusBadRequest, fmt.Errorf("utc must be RFC3339: %w", err))
		return
	}

	var cmd *exec.Cmd
	if s.IsLeader {
		cmd = exec.Command("sudo", "date", "-s", parsed.UTC().Format("2006-01-02 15:04:05"))
	} else {
		cmd = exec.Command("sudo", "chronyc", "makestep")
	}
	if err := cmd.Run(); err != nil {
		httpkit.WriteError(rw, http.StatusInternalServerError, fmt.Errorf("could not set clock: %w", err))
		return
	}
	httpkit.WriteJSON(rw, http.StatusOK, map[string]string{"msg": "clock set"})
}
