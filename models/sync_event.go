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

type SyncOperation string

const (
	SyncOperationAdd     SyncOperation = "add"     // path created
	SyncOperationRemove  SyncOperation = "remove"  // path deleted
	SyncOperationReplace SyncOperation = "replace" // path deleted and created again

	SyncStatusOK     = "ok"
	SyncStatusFailed = "failed"
)

// SyncEvent - published after every reconciliation attempt
type SyncEvent struct {
	ID        string        `json:"id"`                  // event id
	CameraID  int64         `json:"cameraId"`            // camera the path belongs to
	PathName  string        `json:"pathName"`            // streaming server path
	Operation SyncOperation `json:"operation"`           // what was attempted
	Status    string        `json:"status"`              // ok or failed
	VideoMode string        `json:"videoMode,omitempty"` // copy or transcode when a path was created
	Message   string        `json:"message,omitempty"`   // failure detail
	Created   int64         `json:"created"`             // epoch in ms
}
