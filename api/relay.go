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

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/univision/camera-relay/services"
)

type relayHandler struct {
	cameraManager *services.CameraManager
	reconciler    *services.Reconciler
	control       *services.ControlClient
	sweeper       *services.Sweeper
}

func NewRelayHandler(cameraManager *services.CameraManager, reconciler *services.Reconciler, control *services.ControlClient, sweeper *services.Sweeper) *relayHandler {
	return &relayHandler{
		cameraManager: cameraManager,
		reconciler:    reconciler,
		control:       control,
		sweeper:       sweeper,
	}
}

func (rh *relayHandler) Health(c *gin.Context) {
	healthy := rh.control.IsHealthy(c.Request.Context())
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"healthy": healthy})
}

// Status - computed spec and live path state of a camera
func (rh *relayHandler) Status(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	camera, err := rh.cameraManager.Get(id)
	if err != nil {
		abortWithModelError(c, err)
		return
	}
	status, err := rh.reconciler.Status(c.Request.Context(), camera)
	if err != nil {
		AbortWithError(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusOK, status)
}

// Sync re-initializes paths of all active cameras
func (rh *relayHandler) Sync(c *gin.Context) {
	report, err := rh.sweeper.InitializeAll(c.Request.Context())
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, report)
}
