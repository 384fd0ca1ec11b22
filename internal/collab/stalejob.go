// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package collab

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	applog "github.com/agentsync/collab/internal/log"
)

// StaleSweep periodically evicts connections the Registry hasn't heard
// from in longer than Threshold, run on Schedule — the CSR's half of
// spec.md §4.3's "room lifecycle... stale-cleanup" requirement. Mirrors
// the teacher's Scheduler, which drives its own periodic jobs off a
// cron.Cron rather than a bare time.Ticker.
type StaleSweep struct {
	log       *zap.Logger
	registry  *Registry
	threshold time.Duration

	cronEngine *cron.Cron
	entryID    cron.EntryID
}

// NewStaleSweep builds a sweep that runs on the given cron schedule,
// evicting any connection not touched within threshold.
func NewStaleSweep(log *zap.Logger, registry *Registry, threshold time.Duration) *StaleSweep {
	if log == nil {
		log = applog.Logger()
	}
	return &StaleSweep{
		log:        log,
		registry:   registry,
		threshold:  threshold,
		cronEngine: cron.New(),
	}
}

// Start registers the sweep job on schedule and starts the cron engine.
func (s *StaleSweep) Start(schedule string) error {
	id, err := s.cronEngine.AddFunc(schedule, s.runOnce)
	if err != nil {
		return err
	}
	s.entryID = id
	s.cronEngine.Start()
	return nil
}

// Stop removes the sweep job and stops the cron engine, waiting for any
// in-flight run to finish.
func (s *StaleSweep) Stop() {
	s.cronEngine.Remove(s.entryID)
	<-s.cronEngine.Stop().Done()
}

func (s *StaleSweep) runOnce() {
	cutoff := time.Now().Add(-s.threshold)
	stale := s.registry.StaleConnections(cutoff)
	for _, conn := range stale {
		s.log.Info("evicting stale connection", zap.String("connection", string(conn)))
		s.registry.EvictConnection(context.Background(), conn)
	}
}
