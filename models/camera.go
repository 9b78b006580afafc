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

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

const (
	PrefixCamera = "/camera/"

	CodecH264 = "h264"
)

// Camera is the registry view of a camera consumed by the relay reconciler
type Camera struct {
	ID                 int64  `json:"id"`                            // registry id
	Name               string `json:"name" binding:"required"`       // display name
	Host               string `json:"ip_address" binding:"required"` // camera network address
	Port               int    `json:"port"`                          // rtsp port (default 554)
	Username           string `json:"username,omitempty"`            // optional rtsp user
	Password           string `json:"password,omitempty"`            // optional rtsp password (only used with username)
	StreamPath         string `json:"stream_path"`                   // path suffix on the camera (default /)
	Rotation           int    `json:"rotation"`                      // 0, 90, 180 or 270
	IsActive           bool   `json:"is_active"`                     // relay eligible
	IsPublic           bool   `json:"is_public"`                     // visible on public stream page
	RebroadcastURL     string `json:"youtube_url,omitempty"`         // external re-broadcast target
	RebroadcastEnabled bool   `json:"is_streaming_to_youtube"`       // re-broadcast switch
	Codec              string `json:"codec,omitempty"`               // detected video codec, empty when unknown
	Created            int64  `json:"created,omitempty"`             // unix timestamp in ms when created
	Modified           int64  `json:"modified,omitempty"`            // last modification date, epoch in ms
}

// SourceURL assembles the rtsp pull url. Credentials are embedded only when a username is set.
func (c *Camera) SourceURL() string {
	auth := ""
	if c.Username != "" {
		ui := url.User(c.Username)
		if c.Password != "" {
			ui = url.UserPassword(c.Username, c.Password)
		}
		auth = ui.String() + "@"
	}
	// path is kept verbatim, some vendors carry query strings in it (e.g. ?channel=1&subtype=0)
	return "rtsp://" + auth + net.JoinHostPort(c.Host, strconv.Itoa(c.port())) + "/" + strings.TrimLeft(c.StreamPath, "/")
}

// RelayEligible is true when the camera should have a relay path
func (c *Camera) RelayEligible() bool {
	return c.IsActive
}

// RebroadcastEligible is true when the relay should also be forwarded to the external target
func (c *Camera) RebroadcastEligible() bool {
	return c.RebroadcastEnabled && strings.TrimSpace(c.RebroadcastURL) != ""
}

// HasCodec reports whether the codec has been detected
func (c *Camera) HasCodec() bool {
	return strings.TrimSpace(c.Codec) != ""
}

// IsH264 reports whether the detected codec can be passed through untouched
func (c *Camera) IsH264() bool {
	return strings.EqualFold(strings.TrimSpace(c.Codec), CodecH264)
}

// CopyEligible is true when video can be relayed without re-encoding
func (c *Camera) CopyEligible() bool {
	return c.Rotation == 0 && c.IsH264()
}

func (c *Camera) port() int {
	if c.Port <= 0 {
		return 554
	}
	return c.Port
}

// ValidateCamera checks the fields the relay depends on
func ValidateCamera(c *Camera) error {
	if c.Name == "" || c.Host == "" {
		return ErrMissingInputParameters
	}
	if c.Port < 0 || c.Port > 65535 {
		return ErrInvalidPort
	}
	switch c.Rotation {
	case 0, 90, 180, 270:
	default:
		return ErrInvalidRotation
	}
	return nil
}
