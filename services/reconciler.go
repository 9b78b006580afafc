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
	"errors"
	"net/http"

	g "github.com/univision/camera-relay/globals"
	"github.com/univision/camera-relay/models"
)

// PathController - the subset of the streaming control API the reconciler drives
type PathController interface {
	AddPath(ctx context.Context, name string, pathConfig *models.PathConfig) error
	DeletePath(ctx context.Context, name string) error
	GetPath(ctx context.Context, name string) (*models.PathItem, error)
}

// Reconciler keeps streaming server paths consistent with camera records.
//
// A path is either absent or present (waiting for a reader, or relaying). Paths are never
// patched in place: any change to a camera is applied by deleting the path and creating it
// again from a freshly built spec, since partial updates of the triggered process fields
// leave running relays in an inconsistent state.
type Reconciler struct {
	builder  *CommandBuilder
	control  PathController
	notifier Notifier
	locks    *keyedMutex
}

func NewReconciler(builder *CommandBuilder, control PathController, notifier Notifier) *Reconciler {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Reconciler{
		builder:  builder,
		control:  control,
		notifier: notifier,
		locks:    newKeyedMutex(),
	}
}

// EnsurePresent creates the camera path. An existing path is replaced.
// Failures are returned as *models.ControlError.
func (r *Reconciler) EnsurePresent(ctx context.Context, camera *models.Camera) error {
	unlock := r.locks.Lock(camera.ID)
	defer unlock()

	operation := models.SyncOperationAdd
	spec, err := r.create(ctx, camera)
	if errors.Is(err, models.ErrPathExists) {
		g.Log.Info("path already exists, replacing", spec.Name, "camera", camera.ID)
		operation = models.SyncOperationReplace
		spec, err = r.replace(ctx, camera)
	}
	r.notify(camera.ID, operation, spec, err)
	return err
}

// EnsureAbsent deletes the camera path. A missing path is not an error and neither is an
// unreachable control server: a dangling path is corrected on the next add or update.
// Other refusals are returned; callers log them and carry on with their own state change.
func (r *Reconciler) EnsureAbsent(ctx context.Context, camera *models.Camera) error {
	unlock := r.locks.Lock(camera.ID)
	defer unlock()

	err := r.remove(ctx, camera)
	r.notify(camera.ID, models.SyncOperationRemove, nil, err)
	if errors.Is(err, models.ErrControlUnreachable) {
		return nil
	}
	return err
}

// Replace deletes the path and creates it again from the current camera attributes
func (r *Reconciler) Replace(ctx context.Context, camera *models.Camera) error {
	unlock := r.locks.Lock(camera.ID)
	defer unlock()

	spec, err := r.replace(ctx, camera)
	r.notify(camera.ID, models.SyncOperationReplace, spec, err)
	return err
}

// Sync applies the desired state of the camera: active cameras get a fresh path, inactive ones none
func (r *Reconciler) Sync(ctx context.Context, camera *models.Camera) error {
	if camera.RelayEligible() {
		return r.Replace(ctx, camera)
	}
	return r.EnsureAbsent(ctx, camera)
}

// PathState reports what the streaming server currently holds for the camera
func (r *Reconciler) PathState(ctx context.Context, camera *models.Camera) (string, error) {
	item, err := r.control.GetPath(ctx, PathName(camera.ID))
	if err != nil {
		if errors.Is(err, models.ErrPathNotFound) {
			return models.PathStateAbsent, nil
		}
		return "", controlError(camera.ID, err)
	}
	if item.Ready {
		return models.PathStateRelaying, nil
	}
	return models.PathStateWaiting, nil
}

// Status - desired spec (for relay eligible cameras) and the live path state
func (r *Reconciler) Status(ctx context.Context, camera *models.Camera) (*models.RelayStatus, error) {
	status := &models.RelayStatus{
		CameraID: camera.ID,
	}
	if camera.RelayEligible() {
		status.Spec = r.builder.Build(camera)
	}
	state, err := r.PathState(ctx, camera)
	if err != nil {
		return status, err
	}
	status.State = state
	return status, nil
}

// create returns models.ErrPathExists untouched so the caller can decide on a replace
func (r *Reconciler) create(ctx context.Context, camera *models.Camera) (*models.RelayPathSpec, error) {
	spec := r.builder.Build(camera)
	g.Log.Info("adding path", spec.Name, "camera", camera.ID, "video", spec.VideoMode, "rebroadcast", spec.HasRebroadcast())

	err := r.control.AddPath(ctx, spec.Name, spec.PathConfig())
	if err == nil || errors.Is(err, models.ErrPathExists) {
		return spec, err
	}
	cErr := controlError(camera.ID, err)
	g.Log.Error("failed to add path", spec.Name, cErr)
	return spec, cErr
}

func (r *Reconciler) remove(ctx context.Context, camera *models.Camera) error {
	name := PathName(camera.ID)
	g.Log.Info("removing path", name, "camera", camera.ID)

	err := r.control.DeletePath(ctx, name)
	if err == nil || errors.Is(err, models.ErrPathNotFound) {
		return nil
	}
	cErr := controlError(camera.ID, err)
	g.Log.Warn("failed to remove path", name, cErr)
	return cErr
}

// replace is always one delete followed by one create
func (r *Reconciler) replace(ctx context.Context, camera *models.Camera) (*models.RelayPathSpec, error) {
	if err := r.remove(ctx, camera); err != nil {
		g.Log.Warn("continuing replace after failed delete", camera.ID, err)
	}
	spec, err := r.create(ctx, camera)
	if errors.Is(err, models.ErrPathExists) {
		// the delete above did not take effect, do not loop
		err = &models.ControlError{CameraID: camera.ID, Status: http.StatusConflict, Body: err.Error(), Err: err}
		g.Log.Error("path still exists after delete", spec.Name, err)
	}
	return spec, err
}

func (r *Reconciler) notify(cameraID int64, operation models.SyncOperation, spec *models.RelayPathSpec, err error) {
	event := NewSyncEvent(cameraID, operation, err)
	if spec != nil && err == nil {
		event.VideoMode = spec.VideoMode
	}
	r.notifier.Notify(event)
}

func controlError(cameraID int64, err error) *models.ControlError {
	var cErr *models.ControlError
	if errors.As(err, &cErr) {
		return cErr
	}
	var sErr *models.StatusError
	if errors.As(err, &sErr) {
		return &models.ControlError{CameraID: cameraID, Status: sErr.Status, Body: sErr.Body, Err: err}
	}
	return &models.ControlError{CameraID: cameraID, Body: err.Error(), Err: err}
}
