// Copyright 2020 Wearless Tech Inc All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	g "github.com/univision/camera-relay/globals"
	"github.com/univision/camera-relay/services"
)

// StartCronJobs schedules the periodic resync and codec probing sweeps. Returned cron must be stopped on shutdown.
func StartCronJobs(conf g.Config, sweeper *services.Sweeper) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC))

	if conf.Sweep.Schedule != "" {
		id, err := c.AddFunc(conf.Sweep.Schedule, func() {
			if _, err := sweeper.InitializeAll(context.Background()); err != nil {
				g.Log.Error("scheduled resync failed", err)
			}
		})
		if err != nil {
			g.Log.Error("failed to schedule resync", conf.Sweep.Schedule, err)
			return nil, err
		}
		g.Log.Info("scheduled resync", conf.Sweep.Schedule, id)
	}

	if conf.Sweep.ProbeSchedule != "" {
		id, err := c.AddFunc(conf.Sweep.ProbeSchedule, func() {
			report, err := sweeper.ProbeAll(context.Background())
			if err != nil {
				g.Log.Error("scheduled codec probe failed", err)
				return
			}
			g.Log.Info("codec probe complete", "probed", report.Synced, "unknown", len(report.Failed))
		})
		if err != nil {
			g.Log.Error("failed to schedule codec probe", conf.Sweep.ProbeSchedule, err)
			return nil, err
		}
		g.Log.Info("scheduled codec probe", conf.Sweep.ProbeSchedule, id)
	}

	c.Start()
	return c, nil
}
