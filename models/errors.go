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
	"errors"
	"fmt"
)

var (
	ErrCameraNotFound         = errors.New("camera not found")
	ErrPathNotFound           = errors.New("path not found")
	ErrPathExists             = errors.New("path already exists")
	ErrControlUnreachable     = errors.New("streaming control server unreachable")
	ErrNoRebroadcastTarget    = errors.New("re-broadcast target url not set")
	ErrInvalidRebroadcast     = errors.New("re-broadcast target must be an rtmp url with a stream key")
	ErrMissingInputParameters = errors.New("missing input parameters")
	ErrInvalidRotation        = errors.New("rotation must be one of 0, 90, 180, 270")
	ErrInvalidPort            = errors.New("invalid port")
)

// ControlError - the streaming control server refused a path change
type ControlError struct {
	CameraID int64
	Status   int    // http status, 0 when the server could not be reached
	Body     string // response body or transport error
	Err      error
}

func (e *ControlError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("camera %d: control server call failed: %s", e.CameraID, e.Body)
	}
	return fmt.Sprintf("camera %d: control server responded %d: %s", e.CameraID, e.Status, e.Body)
}

func (e *ControlError) Unwrap() error {
	return e.Err
}

// StatusError - unexpected status code returned by the control server
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected response code %d: %s", e.Status, e.Body)
}
