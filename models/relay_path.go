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

package models

const (
	// relay source modes
	SourcePublisher = "publisher" // wait for the on-demand process to publish into the path

	// video handling chosen for a relay
	VideoModeCopy      = "copy"
	VideoModeTranscode = "transcode"

	// path state on the streaming server side
	PathStateAbsent   = "absent"
	PathStateWaiting  = "waiting"
	PathStateRelaying = "relaying"
)

// RelayPathSpec - computed on every add/update, never persisted
type RelayPathSpec struct {
	Name              string `json:"name"`                           // path name on the streaming server (cam_<id>)
	Source            string `json:"source"`                         // source mode
	SourceURL         string `json:"-"`                              // pull url (carries credentials, never serialized)
	VideoMode         string `json:"video_mode"`                     // copy or transcode
	Filter            string `json:"filter,omitempty"`               // rotation filter when transcoding a rotated camera
	RunOnDemand       string `json:"run_on_demand"`                  // relay command
	Restart           bool   `json:"run_on_demand_restart"`          // restart relay when it exits
	StartTimeout      string `json:"run_on_demand_start_timeout"`    // how long to wait for the relay to publish
	CloseAfter        string `json:"run_on_demand_close_after"`      // stop relay after last reader leaves
	RunOnReady        string `json:"run_on_ready,omitempty"`         // re-broadcast command
	RunOnReadyRestart bool   `json:"run_on_ready_restart,omitempty"` // restart re-broadcast when it exits
}

// PathConfig is the body of the streaming server "add path" call
type PathConfig struct {
	Source                  string `json:"source"`
	RunOnDemand             string `json:"runOnDemand,omitempty"`
	RunOnDemandRestart      bool   `json:"runOnDemandRestart"`
	RunOnDemandStartTimeout string `json:"runOnDemandStartTimeout,omitempty"`
	RunOnDemandCloseAfter   string `json:"runOnDemandCloseAfter,omitempty"`
	RunOnReady              string `json:"runOnReady,omitempty"`
	RunOnReadyRestart       bool   `json:"runOnReadyRestart,omitempty"`
}

// PathConfig converts the spec to its wire form
func (s *RelayPathSpec) PathConfig() *PathConfig {
	return &PathConfig{
		Source:                  s.Source,
		RunOnDemand:             s.RunOnDemand,
		RunOnDemandRestart:      s.Restart,
		RunOnDemandStartTimeout: s.StartTimeout,
		RunOnDemandCloseAfter:   s.CloseAfter,
		RunOnReady:              s.RunOnReady,
		RunOnReadyRestart:       s.RunOnReadyRestart,
	}
}

// HasRebroadcast reports whether a ready-triggered re-broadcast is attached
func (s *RelayPathSpec) HasRebroadcast() bool {
	return s.RunOnReady != ""
}

// PathItem - runtime view of a path as reported by the streaming server
type PathItem struct {
	Name          string   `json:"name"`
	ConfName      string   `json:"confName,omitempty"`
	Ready         bool     `json:"ready"`
	ReadyTime     string   `json:"readyTime,omitempty"`
	Tracks        []string `json:"tracks,omitempty"`
	BytesReceived uint64   `json:"bytesReceived,omitempty"`
}

// PathList - paginated list returned by the streaming server
type PathList struct {
	PageCount int         `json:"pageCount"`
	ItemCount int         `json:"itemCount"`
	Items     []*PathItem `json:"items"`
}

// RelayStatus - computed spec plus live state for a single camera
type RelayStatus struct {
	CameraID int64          `json:"camera_id"`
	State    string         `json:"state"`
	Spec     *RelayPathSpec `json:"spec,omitempty"`
}
