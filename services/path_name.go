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
	"strconv"
	"strings"
)

const pathPrefix = "cam_"

// PathName - streaming server path for a camera
func PathName(cameraID int64) string {
	return pathPrefix + strconv.FormatInt(cameraID, 10)
}

// ParsePathName returns the camera id of a path created by PathName
func ParsePathName(name string) (int64, bool) {
	if !strings.HasPrefix(name, pathPrefix) {
		return 0, false
	}
	digits := strings.TrimPrefix(name, pathPrefix)
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || id < 0 || strconv.FormatInt(id, 10) != digits {
		return 0, false
	}
	return id, true
}
