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

package globals

import (
	"time"

	cfg "github.com/chryscloud/go-microkit-plugins/config"
	mclog "github.com/chryscloud/go-microkit-plugins/log"
)

// Conf global config
var Conf Config

// Log global wide logging
var Log mclog.Logger

type Config struct {
	cfg.YamlConfig `yaml:",inline"`
	DataPath       string             `yaml:"data_path"`
	MediaMTX       *MediaMTXSubconfig `yaml:"mediamtx"`
	Relay          *RelaySubconfig    `yaml:"relay"`
	Sweep          *SweepSubconfig    `yaml:"sweep"`
	Redis          *RedisSubconfig    `yaml:"redis"`
	MQTT           *MQTTSubconfig     `yaml:"mqtt"`
}

// MediaMTXSubconfig - streaming server control API connection
type MediaMTXSubconfig struct {
	URL       string `yaml:"url"`        // full control API base url, overrides host and port
	Host      string `yaml:"host"`       // control API host
	Port      int    `yaml:"port"`       // control API port (default 9997)
	User      string `yaml:"user"`       // control API basic auth user
	Password  string `yaml:"password"`   // control API basic auth password
	APIPrefix string `yaml:"api_prefix"` // API version prefix (default /v3)
	TimeoutMs int    `yaml:"timeout_ms"` // timeout for config calls
	HealthMs  int    `yaml:"health_ms"`  // timeout for health checks
}

// RelaySubconfig - how relay commands are assembled
type RelaySubconfig struct {
	FFmpeg          string `yaml:"ffmpeg"`           // ffmpeg binary
	FFprobe         string `yaml:"ffprobe"`          // ffprobe binary
	PublishHost     string `yaml:"publish_host"`     // streaming server rtsp host as seen by the relay process
	PublishPort     int    `yaml:"publish_port"`     // streaming server rtsp port
	PublishUser     string `yaml:"publish_user"`     // optional publish credentials
	PublishPassword string `yaml:"publish_password"` // optional publish credentials
	LogDir          string `yaml:"log_dir"`          // relay process log folder, empty disables redirection
	StartTimeout    string `yaml:"start_timeout"`    // runOnDemandStartTimeout
	CloseAfter      string `yaml:"close_after"`      // runOnDemandCloseAfter
	ProbeTimeoutMs  int    `yaml:"probe_timeout_ms"` // ffprobe deadline
}

// SweepSubconfig - bulk re-initialization of active cameras
type SweepSubconfig struct {
	Concurrency   int    `yaml:"concurrency"`    // maximum reconciliations in flight
	StaggerMs     int    `yaml:"stagger_ms"`     // pause between dispatches
	OnStartup     bool   `yaml:"on_startup"`     // re-initialize all active cameras at boot
	Schedule      string `yaml:"schedule"`       // cron schedule for resync, empty disables
	ProbeSchedule string `yaml:"probe_schedule"` // cron schedule for codec probing, empty disables
}

// RedisSubconfig connnection settings
type RedisSubconfig struct {
	Connection string `yaml:"connection"`
	Database   int    `yaml:"database"`
	Password   string `yaml:"password"`
	Channel    string `yaml:"channel"` // sync events channel
}

// MQTTSubconfig - optional broker for sync events
type MQTTSubconfig struct {
	Broker   string `yaml:"broker"` // e.g. tcp://localhost:1883, empty disables
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

// ApplyDefaults fills in every unset value
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.DataPath == "" {
		c.DataPath = "/data/camrelay"
	}
	if c.MediaMTX == nil {
		c.MediaMTX = &MediaMTXSubconfig{}
	}
	if c.MediaMTX.Host == "" {
		c.MediaMTX.Host = "localhost"
	}
	if c.MediaMTX.Port == 0 {
		c.MediaMTX.Port = 9997
	}
	if c.MediaMTX.APIPrefix == "" {
		c.MediaMTX.APIPrefix = "/v3"
	}
	if c.MediaMTX.TimeoutMs <= 0 {
		c.MediaMTX.TimeoutMs = 10000
	}
	if c.MediaMTX.HealthMs <= 0 {
		c.MediaMTX.HealthMs = 5000
	}

	if c.Relay == nil {
		c.Relay = &RelaySubconfig{}
	}
	if c.Relay.FFmpeg == "" {
		c.Relay.FFmpeg = "/usr/bin/ffmpeg"
	}
	if c.Relay.FFprobe == "" {
		c.Relay.FFprobe = "/usr/bin/ffprobe"
	}
	if c.Relay.PublishHost == "" {
		c.Relay.PublishHost = "127.0.0.1" // avoid ipv6 resolution of localhost
	}
	if c.Relay.PublishPort == 0 {
		c.Relay.PublishPort = 8554
	}
	if c.Relay.StartTimeout == "" {
		c.Relay.StartTimeout = "10s"
	}
	if c.Relay.CloseAfter == "" {
		c.Relay.CloseAfter = "30s"
	}
	if c.Relay.ProbeTimeoutMs <= 0 {
		c.Relay.ProbeTimeoutMs = 15000
	}

	if c.Sweep == nil {
		c.Sweep = &SweepSubconfig{}
	}
	if c.Sweep.Concurrency <= 0 {
		c.Sweep.Concurrency = 4
	}
	if c.Sweep.StaggerMs < 0 {
		c.Sweep.StaggerMs = 0
	}

	if c.Redis == nil {
		c.Redis = &RedisSubconfig{}
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = "camrelay:sync"
	}
	if c.MQTT == nil {
		c.MQTT = &MQTTSubconfig{}
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "camrelay"
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "camrelay/sync"
	}
}

// Timeout of control API configuration calls
func (m *MediaMTXSubconfig) Timeout() time.Duration {
	if m.TimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(m.TimeoutMs) * time.Millisecond
}

// HealthTimeout of the control API health check
func (m *MediaMTXSubconfig) HealthTimeout() time.Duration {
	if m.HealthMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(m.HealthMs) * time.Millisecond
}

// ProbeTimeout of a single codec probe
func (r *RelaySubconfig) ProbeTimeout() time.Duration {
	if r.ProbeTimeoutMs <= 0 {
		return 15 * time.Second
	}
	return time.Duration(r.ProbeTimeoutMs) * time.Millisecond
}

func init() {
	l, err := mclog.NewZapLogger("info")
	if err != nil {
		panic("failed to initalize logging")
	}
	Log = l
}
