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

package services

import (
	"net"
	"path/filepath"
	"strconv"
	"strings"

	g "github.com/univision/camera-relay/globals"
	"github.com/univision/camera-relay/models"
)

var (
	// encoder settings whenever video has to be decoded (rotation or non h264 source)
	transcodeArgs = []string{"-c:v", "libx264", "-preset", "veryfast", "-tune", "zerolatency", "-pix_fmt", "yuv420p"}
	copyArgs      = []string{"-c:v", "copy"}
	audioArgs     = []string{"-c:a", "aac"}
)

// CommandBuilder - assembles relay and re-broadcast invocations for a camera
type CommandBuilder struct {
	conf *g.RelaySubconfig
}

func NewCommandBuilder(conf *g.RelaySubconfig) *CommandBuilder {
	return &CommandBuilder{
		conf: conf,
	}
}

// RotationFilter returns the ffmpeg filter for the rotation, empty for 0 or unsupported values
func RotationFilter(rotation int) string {
	switch rotation {
	case 90:
		return "transpose=1"
	case 180:
		return "transpose=1,transpose=1"
	case 270:
		return "transpose=2"
	}
	return ""
}

// VideoMode decides between passthrough and transcoding, and the filter to apply
func (cb *CommandBuilder) VideoMode(camera *models.Camera) (string, string) {
	if camera.Rotation != 0 {
		// filters require decoding
		return models.VideoModeTranscode, RotationFilter(camera.Rotation)
	}
	if !camera.CopyEligible() {
		// unknown or non h264 sources are not playable by browsers and the bridge
		return models.VideoModeTranscode, ""
	}
	return models.VideoModeCopy, ""
}

// Build computes a fresh relay path spec for the camera
func (cb *CommandBuilder) Build(camera *models.Camera) *models.RelayPathSpec {
	mode, filter := cb.VideoMode(camera)
	spec := &models.RelayPathSpec{
		Name:         PathName(camera.ID),
		Source:       models.SourcePublisher,
		SourceURL:    camera.SourceURL(),
		VideoMode:    mode,
		Filter:       filter,
		RunOnDemand:  cb.RelayCommand(camera),
		Restart:      true,
		StartTimeout: cb.conf.StartTimeout,
		CloseAfter:   cb.conf.CloseAfter,
	}
	if camera.RebroadcastEligible() {
		spec.RunOnReady = cb.RebroadcastCommand(camera)
		spec.RunOnReadyRestart = true
	}
	return spec
}

// RelayCommand pulls the camera over tcp and publishes it into the camera path
func (cb *CommandBuilder) RelayCommand(camera *models.Camera) string {
	mode, filter := cb.VideoMode(camera)

	args := []string{cb.conf.FFmpeg, "-hide_banner", "-loglevel", "warning", "-rtsp_transport", "tcp", "-i", camera.SourceURL()}
	if mode == models.VideoModeCopy {
		args = append(args, copyArgs...)
	} else {
		if filter != "" {
			args = append(args, "-vf", filter)
		}
		args = append(args, transcodeArgs...)
	}
	args = append(args, audioArgs...)
	args = append(args, "-f", "rtsp", cb.localURL(PathName(camera.ID)))

	return cb.wrap(joinArgs(args), camera.ID, ">")
}

// RebroadcastCommand forwards the already relayed path to the external target without re-encoding.
// Empty when the camera is not re-broadcast eligible.
func (cb *CommandBuilder) RebroadcastCommand(camera *models.Camera) string {
	if !camera.RebroadcastEligible() {
		return ""
	}
	args := []string{cb.conf.FFmpeg, "-hide_banner", "-loglevel", "warning", "-rtsp_transport", "tcp",
		"-i", cb.localURL(PathName(camera.ID)),
		"-c", "copy", "-f", "flv", strings.TrimSpace(camera.RebroadcastURL)}

	return cb.wrap(joinArgs(args), camera.ID, ">>")
}

// LogFile of the relay processes of a camera, empty when logging to a file is disabled
func (cb *CommandBuilder) LogFile(cameraID int64) string {
	if cb.conf.LogDir == "" {
		return ""
	}
	return filepath.Join(cb.conf.LogDir, "ffmpeg_"+strconv.FormatInt(cameraID, 10)+".log")
}

func (cb *CommandBuilder) localURL(pathName string) string {
	auth := ""
	if cb.conf.PublishUser != "" {
		auth = cb.conf.PublishUser + ":" + cb.conf.PublishPassword + "@"
	}
	return "rtsp://" + auth + net.JoinHostPort(cb.conf.PublishHost, strconv.Itoa(cb.conf.PublishPort)) + "/" + pathName
}

// wrap redirects process output into the camera log file through a shell
func (cb *CommandBuilder) wrap(cmd string, cameraID int64, redirect string) string {
	logFile := cb.LogFile(cameraID)
	if logFile == "" {
		return cmd
	}
	return "sh -c " + singleQuote(cmd+" "+redirect+" "+quoteArg(logFile)+" 2>&1")
}

func joinArgs(args []string) string {
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		quoted = append(quoted, quoteArg(a))
	}
	return strings.Join(quoted, " ")
}

func quoteArg(arg string) string {
	if arg == "" {
		return `""`
	}
	if strings.IndexFunc(arg, isUnsafeRune) < 0 {
		return arg
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")
	return `"` + r.Replace(arg) + `"`
}

func singleQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func isUnsafeRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("-_./:=,@%+", r)
}
