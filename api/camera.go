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
	"github.com/gin-gonic/gin/binding"
	g "github.com/univision/camera-relay/globals"
	"github.com/univision/camera-relay/models"
	"github.com/univision/camera-relay/services"
)

type cameraResponse struct {
	Camera  *models.Camera `json:"camera"`
	Warning string         `json:"warning,omitempty"` // relay sync failed, the record is saved
}

type rebroadcastTarget struct {
	URL string `json:"youtube_url"`
}

type cameraHandler struct {
	cameraManager *services.CameraManager
	prober        *services.Prober
}

func NewCameraHandler(cameraManager *services.CameraManager, prober *services.Prober) *cameraHandler {
	return &cameraHandler{
		cameraManager: cameraManager,
		prober:        prober,
	}
}

func (ch *cameraHandler) List(c *gin.Context) {
	cameras, err := ch.cameraManager.List()
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, cameras)
}

func (ch *cameraHandler) Get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	camera, err := ch.cameraManager.Get(id)
	if err != nil {
		abortWithModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, camera)
}

func (ch *cameraHandler) Create(c *gin.Context) {
	var camera models.Camera
	if err := c.ShouldBindWith(&camera, binding.JSON); err != nil {
		g.Log.Warn("missing required fields", err)
		AbortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	created, err := ch.cameraManager.Create(c.Request.Context(), &camera)
	respond(c, http.StatusCreated, created, err)
}

func (ch *cameraHandler) Update(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var camera models.Camera
	if err := c.ShouldBindWith(&camera, binding.JSON); err != nil {
		g.Log.Warn("missing required fields", err)
		AbortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := ch.cameraManager.Update(c.Request.Context(), id, &camera)
	respond(c, http.StatusOK, updated, err)
}

func (ch *cameraHandler) Delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := ch.cameraManager.Delete(c.Request.Context(), id); err != nil {
		abortWithModelError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (ch *cameraHandler) ToggleActive(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	camera, err := ch.cameraManager.ToggleActive(c.Request.Context(), id)
	respond(c, http.StatusOK, camera, err)
}

func (ch *cameraHandler) TogglePublic(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	camera, err := ch.cameraManager.TogglePublic(id)
	respond(c, http.StatusOK, camera, err)
}

func (ch *cameraHandler) StartRebroadcast(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	camera, err := ch.cameraManager.StartRebroadcast(c.Request.Context(), id)
	respond(c, http.StatusOK, camera, err)
}

func (ch *cameraHandler) StopRebroadcast(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	camera, err := ch.cameraManager.StopRebroadcast(c.Request.Context(), id)
	respond(c, http.StatusOK, camera, err)
}

func (ch *cameraHandler) SetRebroadcastTarget(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var target rebroadcastTarget
	if err := c.ShouldBindWith(&target, binding.JSON); err != nil {
		AbortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	camera, err := ch.cameraManager.SetRebroadcastTarget(id, target.URL)
	respond(c, http.StatusOK, camera, err)
}

// Probe detects and stores the codec. An active camera that no longer needs re-encoding gets its path rebuilt.
func (ch *cameraHandler) Probe(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	camera, err := ch.cameraManager.Get(id)
	if err != nil {
		abortWithModelError(c, err)
		return
	}
	wasCopy := camera.CopyEligible()
	if _, err := ch.prober.ProbeAndStore(c.Request.Context(), camera); err != nil {
		AbortWithError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if camera.RelayEligible() && camera.CopyEligible() && !wasCopy {
		if err := ch.cameraManager.Resync(c.Request.Context(), id); err != nil {
			respond(c, http.StatusOK, camera, &services.SyncWarning{Err: err})
			return
		}
	}
	respond(c, http.StatusOK, camera, nil)
}

// respond writes the camera, a failed relay sync is reported as a warning next to it
func respond(c *gin.Context, status int, camera *models.Camera, err error) {
	if err != nil && !services.IsSyncWarning(err) {
		abortWithModelError(c, err)
		return
	}
	resp := cameraResponse{Camera: camera}
	if err != nil {
		g.Log.Warn("camera saved without relay sync", camera.ID, err)
		resp.Warning = err.Error()
	}
	c.JSON(status, resp)
}
