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

package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	api "github.com/univision/camera-relay/api"
	"github.com/univision/camera-relay/services"
)

// ConfigAPI registers camera and relay routes
func ConfigAPI(router *gin.Engine, cameraService *services.CameraManager, reconciler *services.Reconciler, control *services.ControlClient, prober *services.Prober, sweeper *services.Sweeper) *gin.Engine {

	router.Use(cors.New(cors.Config{
		AllowCredentials: true,
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"*"},
		AllowHeaders:     []string{"*"},
	}))

	// APIs
	cameraAPI := api.NewCameraHandler(cameraService, prober)
	relayAPI := api.NewRelayHandler(cameraService, reconciler, control, sweeper)

	api := router.Group("/api/v1")
	{
		api.GET("cameras", cameraAPI.List)
		api.POST("cameras", cameraAPI.Create)
		api.GET("cameras/:id", cameraAPI.Get)
		api.PUT("cameras/:id", cameraAPI.Update)
		api.DELETE("cameras/:id", cameraAPI.Delete)
		api.POST("cameras/:id/toggle-active", cameraAPI.ToggleActive)
		api.POST("cameras/:id/toggle-public", cameraAPI.TogglePublic)
		api.PUT("cameras/:id/rebroadcast", cameraAPI.SetRebroadcastTarget)
		api.POST("cameras/:id/rebroadcast/start", cameraAPI.StartRebroadcast)
		api.POST("cameras/:id/rebroadcast/stop", cameraAPI.StopRebroadcast)
		api.POST("cameras/:id/probe", cameraAPI.Probe)
		api.GET("cameras/:id/relay", relayAPI.Status)
		api.GET("relay/health", relayAPI.Health)
		api.POST("relay/sync", relayAPI.Sync)
	}

	return router
}
