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
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v2"
	g "github.com/univision/camera-relay/globals"
	"github.com/univision/camera-relay/models"
	"github.com/univision/camera-relay/utils"
)

// SyncWarning - the camera record was stored but the streaming server could not be synced
type SyncWarning struct {
	Err error
}

func (w *SyncWarning) Error() string {
	return "saved, but sync failed: " + w.Err.Error()
}

func (w *SyncWarning) Unwrap() error {
	return w.Err
}

// RelaySyncer - reconciliation operations the camera registry triggers
type RelaySyncer interface {
	EnsurePresent(ctx context.Context, camera *models.Camera) error
	EnsureAbsent(ctx context.Context, camera *models.Camera) error
	Sync(ctx context.Context, camera *models.Camera) error
}

// CameraManager - camera records and the relay sync triggered by their lifecycle.
// The stored record is authoritative: a failed sync never reverts a write.
//
// Every change of a camera holds the camera lock across the record write and the relay call,
// so relay operations reach the streaming server in the same order as the writes.
type CameraManager struct {
	storage *Storage
	relay   RelaySyncer
	mux     *sync.Mutex
	locks   *keyedMutex
}

func NewCameraManager(storage *Storage, relay RelaySyncer) *CameraManager {
	return &CameraManager{
		storage: storage,
		relay:   relay,
		mux:     &sync.Mutex{},
		locks:   newKeyedMutex(),
	}
}

// Create stores a new camera and adds its path when active
func (cm *CameraManager) Create(ctx context.Context, camera *models.Camera) (*models.Camera, error) {
	if err := models.ValidateCamera(camera); err != nil {
		return nil, err
	}
	id, err := cm.storage.NextID("camera")
	if err != nil {
		g.Log.Error("failed to generate camera id", err)
		return nil, err
	}
	unlock := cm.locks.Lock(id)
	defer unlock()

	camera.ID = id
	camera.Created = time.Now().Unix() * 1000
	normalize(camera)

	if err := cm.put(camera); err != nil {
		return nil, err
	}

	if camera.RelayEligible() {
		if err := cm.relay.EnsurePresent(ctx, camera); err != nil {
			return camera, &SyncWarning{Err: err}
		}
	}
	return camera, nil
}

// Update overwrites the editable fields of a camera and re-syncs its path
func (cm *CameraManager) Update(ctx context.Context, id int64, update *models.Camera) (*models.Camera, error) {
	if err := models.ValidateCamera(update); err != nil {
		return nil, err
	}
	normalize(update)

	unlock := cm.locks.Lock(id)
	defer unlock()

	camera, err := cm.modify(id, func(c *models.Camera) {
		if update.Host != c.Host || update.Port != c.Port || update.StreamPath != c.StreamPath {
			// a different source may carry a different codec
			c.Codec = ""
		}
		c.Name = update.Name
		c.Host = update.Host
		c.Port = update.Port
		c.Username = update.Username
		c.Password = update.Password
		c.StreamPath = update.StreamPath
		c.Rotation = update.Rotation
		c.IsActive = update.IsActive
		c.IsPublic = update.IsPublic
		c.RebroadcastURL = update.RebroadcastURL
		c.RebroadcastEnabled = update.RebroadcastEnabled
	})
	if err != nil {
		return nil, err
	}
	return camera, cm.sync(ctx, camera)
}

// Delete removes the camera path and then the record. A failed path removal never blocks the delete.
func (cm *CameraManager) Delete(ctx context.Context, id int64) error {
	unlock := cm.locks.Lock(id)
	defer unlock()

	camera, err := cm.Get(id)
	if err != nil {
		return err
	}
	if rErr := cm.relay.EnsureAbsent(ctx, camera); rErr != nil {
		g.Log.Warn("failed to remove path of deleted camera", id, rErr)
	}

	cm.mux.Lock()
	defer cm.mux.Unlock()
	if err := cm.storage.Del(models.PrefixCamera, cameraKey(id)); err != nil {
		g.Log.Error("failed to delete camera", id, err)
		return err
	}
	return nil
}

// ToggleActive flips the active flag and adds or removes the path
func (cm *CameraManager) ToggleActive(ctx context.Context, id int64) (*models.Camera, error) {
	unlock := cm.locks.Lock(id)
	defer unlock()

	camera, err := cm.modify(id, func(c *models.Camera) {
		c.IsActive = !c.IsActive
	})
	if err != nil {
		return nil, err
	}
	return camera, cm.sync(ctx, camera)
}

// TogglePublic flips the public flag, the relay is not affected
func (cm *CameraManager) TogglePublic(id int64) (*models.Camera, error) {
	unlock := cm.locks.Lock(id)
	defer unlock()

	return cm.modify(id, func(c *models.Camera) {
		c.IsPublic = !c.IsPublic
	})
}

// StartRebroadcast enables forwarding to the stored target and rebuilds the path
func (cm *CameraManager) StartRebroadcast(ctx context.Context, id int64) (*models.Camera, error) {
	unlock := cm.locks.Lock(id)
	defer unlock()

	camera, err := cm.Get(id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(camera.RebroadcastURL) == "" {
		return nil, models.ErrNoRebroadcastTarget
	}
	camera, err = cm.modify(id, func(c *models.Camera) {
		c.RebroadcastEnabled = true
	})
	if err != nil {
		return nil, err
	}
	g.Log.Info("starting re-broadcast", id, utils.MaskRTMPKey(camera.RebroadcastURL))
	return camera, cm.sync(ctx, camera)
}

// StopRebroadcast disables forwarding and rebuilds the path
func (cm *CameraManager) StopRebroadcast(ctx context.Context, id int64) (*models.Camera, error) {
	unlock := cm.locks.Lock(id)
	defer unlock()

	camera, err := cm.modify(id, func(c *models.Camera) {
		c.RebroadcastEnabled = false
	})
	if err != nil {
		return nil, err
	}
	return camera, cm.sync(ctx, camera)
}

// SetRebroadcastTarget stores the target only, a running re-broadcast picks it up on the next start or update.
// An empty target clears it.
func (cm *CameraManager) SetRebroadcastTarget(id int64, target string) (*models.Camera, error) {
	target = strings.TrimSpace(target)
	if target != "" {
		if _, err := utils.ParseRTMPKey(target); err != nil {
			g.Log.Warn("rejected re-broadcast target", id, utils.MaskRTMPKey(target), err)
			return nil, models.ErrInvalidRebroadcast
		}
	}
	unlock := cm.locks.Lock(id)
	defer unlock()

	return cm.modify(id, func(c *models.Camera) {
		c.RebroadcastURL = target
	})
}

// SetCodec persists a probed codec
func (cm *CameraManager) SetCodec(id int64, codec string) error {
	unlock := cm.locks.Lock(id)
	defer unlock()

	_, err := cm.modify(id, func(c *models.Camera) {
		c.Codec = strings.ToLower(strings.TrimSpace(codec))
	})
	return err
}

// Reinitialize ensures the path of the stored camera exists. Cameras deactivated in the meantime are skipped.
func (cm *CameraManager) Reinitialize(ctx context.Context, id int64) error {
	unlock := cm.locks.Lock(id)
	defer unlock()

	camera, err := cm.Get(id)
	if err != nil {
		return err
	}
	if !camera.RelayEligible() {
		return nil
	}
	return cm.relay.EnsurePresent(ctx, camera)
}

// Resync rebuilds the path from the stored camera
func (cm *CameraManager) Resync(ctx context.Context, id int64) error {
	unlock := cm.locks.Lock(id)
	defer unlock()

	camera, err := cm.Get(id)
	if err != nil {
		return err
	}
	return cm.relay.Sync(ctx, camera)
}

// RemoveOrphan removes the path of a camera that is deleted or inactive. A camera that is active again keeps its path.
func (cm *CameraManager) RemoveOrphan(ctx context.Context, id int64) error {
	unlock := cm.locks.Lock(id)
	defer unlock()

	camera, err := cm.Get(id)
	switch {
	case err == nil && camera.RelayEligible():
		return nil
	case errors.Is(err, models.ErrCameraNotFound):
		camera = &models.Camera{ID: id}
	case err != nil:
		return err
	}
	g.Log.Info("removing orphaned path", PathName(id))
	return cm.relay.EnsureAbsent(ctx, camera)
}

// Get - single camera
func (cm *CameraManager) Get(id int64) (*models.Camera, error) {
	b, err := cm.storage.Get(models.PrefixCamera, cameraKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, models.ErrCameraNotFound
		}
		g.Log.Error("failed to read camera", id, err)
		return nil, err
	}
	var camera models.Camera
	if err := json.Unmarshal(b, &camera); err != nil {
		g.Log.Error("failed to unmarshal camera", id, err)
		return nil, err
	}
	return &camera, nil
}

// List - all cameras ordered by id
func (cm *CameraManager) List() ([]*models.Camera, error) {
	objects, err := cm.storage.List(models.PrefixCamera)
	if err != nil {
		g.Log.Error("failed to list cameras", err)
		return nil, err
	}
	cameras := make([]*models.Camera, 0, len(objects))
	for k, v := range objects {
		var camera models.Camera
		if err := json.Unmarshal(v, &camera); err != nil {
			g.Log.Error("failed to unmarshal camera", k, err)
			return nil, err
		}
		cameras = append(cameras, &camera)
	}
	sort.Slice(cameras, func(i, j int) bool {
		return cameras[i].ID < cameras[j].ID
	})
	return cameras, nil
}

// ListActive - relay eligible cameras ordered by id
func (cm *CameraManager) ListActive() ([]*models.Camera, error) {
	cameras, err := cm.List()
	if err != nil {
		return nil, err
	}
	active := make([]*models.Camera, 0, len(cameras))
	for _, c := range cameras {
		if c.RelayEligible() {
			active = append(active, c)
		}
	}
	return active, nil
}

// sync applies the desired state after an edit, caller holds the camera lock
func (cm *CameraManager) sync(ctx context.Context, camera *models.Camera) error {
	if err := cm.relay.Sync(ctx, camera); err != nil {
		return &SyncWarning{Err: err}
	}
	return nil
}

// modify is a read-modify-write of a single camera
func (cm *CameraManager) modify(id int64, change func(c *models.Camera)) (*models.Camera, error) {
	cm.mux.Lock()
	defer cm.mux.Unlock()

	camera, err := cm.Get(id)
	if err != nil {
		return nil, err
	}
	change(camera)
	normalize(camera)
	camera.Modified = time.Now().Unix() * 1000
	if err := cm.put(camera); err != nil {
		return nil, err
	}
	return camera, nil
}

func (cm *CameraManager) put(camera *models.Camera) error {
	b, err := json.Marshal(camera)
	if err != nil {
		g.Log.Error("failed to marshal camera", err)
		return err
	}
	if err := cm.storage.Put(models.PrefixCamera, cameraKey(camera.ID), b); err != nil {
		g.Log.Error("failed to store camera", camera.ID, err)
		return err
	}
	return nil
}

func normalize(camera *models.Camera) {
	if camera.Port == 0 {
		camera.Port = 554
	}
	if camera.StreamPath == "" {
		camera.StreamPath = "/"
	}
}

func cameraKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// IsSyncWarning reports whether err only carries a failed relay sync
func IsSyncWarning(err error) bool {
	var w *SyncWarning
	return errors.As(err, &w)
}
