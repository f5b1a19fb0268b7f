// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package leaderapi

import (
	"time"

	"github.com/pioreactor/pioreactorui-leader/internal/domain"
	"github.com/pioreactor/pioreactorui-leader/internal/fanout"
)

func (s *Service) fanoutGet(endpoint string, workers []string) domain.FanoutResult {
	return fanout.Get(s.RPC, endpoint, workers, 0)
}

func (s *Service) fanoutPost(endpoint string, workers []string, body any) domain.FanoutResult {
	return fanout.Post(s.RPC, endpoint, workers, body)
}

func (s *Service) fanoutPatch(endpoint string, workers []string, body any) domain.FanoutResult {
	return fanout.Patch(s.RPC, endpoint, workers, body)
}

func (s *Service) fanoutDelete(endpoint string, workers []string, body any) domain.FanoutResult {
	return fanout.Delete(s.RPC, endpoint, workers, body)
}

// resolveTarget expands the $broadcast sentinel to every active worker
// in experiment (or, when experiment is empty, every known worker unit),
// otherwise returns the single named unit. The sentinel check itself is
// fanout.ExpandTarget's job; this just fetches the worker set that
// sentinel expands to.
func (s *Service) resolveTarget(unit, experiment string) ([]string, error) {
	if unit != domain.UniversalIdentifier {
		return fanout.ExpandTarget(unit, nil), nil
	}
	var (
		workers []string
		err     error
	)
	if experiment == "" {
		workers, err = s.Store.ListAllWorkerUnits()
	} else {
		workers, err = s.Store.ListActiveWorkersInExperiment(experiment)
	}
	if err != nil {
		return nil, err
	}
	return fanout.ExpandTarget(unit, workers), nil
}

const defaultFanoutWait = 3 * time.Second
