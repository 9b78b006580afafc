package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/univision/camera-relay/models"
)

type fakeRelay struct {
	mu    sync.Mutex
	calls []string
	err   error

	// when set, the first call blocks after being recorded until release is closed
	hold    bool
	entered chan struct{}
	release chan struct{}
}

func (fr *fakeRelay) record(op string, camera *models.Camera) error {
	fr.mu.Lock()
	fr.calls = append(fr.calls, op+" "+PathName(camera.ID))
	block := fr.hold
	fr.hold = false
	err := fr.err
	fr.mu.Unlock()

	if block {
		close(fr.entered)
		<-fr.release
	}
	return err
}

func (fr *fakeRelay) holdNext() {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.hold = true
	fr.entered = make(chan struct{})
	fr.release = make(chan struct{})
}

func (fr *fakeRelay) EnsurePresent(ctx context.Context, camera *models.Camera) error {
	return fr.record("present", camera)
}

func (fr *fakeRelay) EnsureAbsent(ctx context.Context, camera *models.Camera) error {
	return fr.record("absent", camera)
}

// Sync records the operation the reconciler would dispatch to
func (fr *fakeRelay) Sync(ctx context.Context, camera *models.Camera) error {
	if camera.RelayEligible() {
		return fr.record("replace", camera)
	}
	return fr.record("absent", camera)
}

func (fr *fakeRelay) callLog() []string {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return append([]string(nil), fr.calls...)
}

func newTestCameraManager(t *testing.T) (*CameraManager, *fakeRelay) {
	relay := &fakeRelay{}
	return NewCameraManager(newTestStorage(t), relay), relay
}

func TestCreateCamera(t *testing.T) {
	cm, relay := newTestCameraManager(t)

	cam, err := cm.Create(context.Background(), &models.Camera{Name: "lobby", Host: "10.0.0.5", IsActive: true})
	require.NoError(t, err)
	require.Equal(t, int64(1), cam.ID)
	require.Equal(t, 554, cam.Port)
	require.Equal(t, "/", cam.StreamPath)
	require.NotZero(t, cam.Created)
	require.Equal(t, []string{"present cam_1"}, relay.callLog())

	inactive, err := cm.Create(context.Background(), &models.Camera{Name: "garage", Host: "10.0.0.6"})
	require.NoError(t, err)
	require.Equal(t, int64(2), inactive.ID)
	require.Len(t, relay.callLog(), 1)

	stored, err := cm.Get(1)
	require.NoError(t, err)
	require.Equal(t, "lobby", stored.Name)
}

func TestCreateInvalidCamera(t *testing.T) {
	cm, relay := newTestCameraManager(t)

	_, err := cm.Create(context.Background(), &models.Camera{Name: "lobby"})
	require.ErrorIs(t, err, models.ErrMissingInputParameters)
	_, err = cm.Create(context.Background(), &models.Camera{Name: "lobby", Host: "h", Rotation: 45})
	require.ErrorIs(t, err, models.ErrInvalidRotation)
	require.Empty(t, relay.callLog())
}

func TestCreateSyncFailureKeepsRecord(t *testing.T) {
	cm, relay := newTestCameraManager(t)
	relay.err = &models.ControlError{CameraID: 1, Status: 500, Body: "boom"}

	cam, err := cm.Create(context.Background(), &models.Camera{Name: "lobby", Host: "10.0.0.5", IsActive: true})
	require.Error(t, err)
	require.True(t, IsSyncWarning(err))
	require.Contains(t, err.Error(), "saved, but sync failed")
	require.NotNil(t, cam)

	var cErr *models.ControlError
	require.True(t, errors.As(err, &cErr))
	require.Equal(t, 500, cErr.Status)

	_, gErr := cm.Get(cam.ID)
	require.NoError(t, gErr)
}

func TestUpdateCamera(t *testing.T) {
	cm, relay := newTestCameraManager(t)
	cam, err := cm.Create(context.Background(), &models.Camera{Name: "lobby", Host: "10.0.0.5", IsActive: true})
	require.NoError(t, err)
	require.NoError(t, cm.SetCodec(cam.ID, "H264"))

	// same source keeps the probed codec
	updated, err := cm.Update(context.Background(), cam.ID, &models.Camera{Name: "lobby 2", Host: "10.0.0.5", IsActive: true, Rotation: 90})
	require.NoError(t, err)
	require.Equal(t, "lobby 2", updated.Name)
	require.Equal(t, 90, updated.Rotation)
	require.Equal(t, "h264", updated.Codec)
	require.Equal(t, cam.Created, updated.Created)
	require.NotZero(t, updated.Modified)

	// a new source resets it
	updated, err = cm.Update(context.Background(), cam.ID, &models.Camera{Name: "lobby 2", Host: "10.0.0.7", IsActive: true})
	require.NoError(t, err)
	require.Empty(t, updated.Codec)

	updated, err = cm.Update(context.Background(), cam.ID, &models.Camera{Name: "lobby 2", Host: "10.0.0.7"})
	require.NoError(t, err)
	require.False(t, updated.IsActive)

	require.Equal(t, []string{"present cam_1", "replace cam_1", "replace cam_1", "absent cam_1"}, relay.callLog())

	_, err = cm.Update(context.Background(), 99, &models.Camera{Name: "x", Host: "y"})
	require.ErrorIs(t, err, models.ErrCameraNotFound)
}

func TestDeleteCamera(t *testing.T) {
	cm, relay := newTestCameraManager(t)
	cam, err := cm.Create(context.Background(), &models.Camera{Name: "lobby", Host: "10.0.0.5", IsActive: true})
	require.NoError(t, err)

	relay.err = errors.New("unreachable")
	require.NoError(t, cm.Delete(context.Background(), cam.ID))
	require.Equal(t, []string{"present cam_1", "absent cam_1"}, relay.callLog())

	_, err = cm.Get(cam.ID)
	require.ErrorIs(t, err, models.ErrCameraNotFound)
	require.ErrorIs(t, cm.Delete(context.Background(), cam.ID), models.ErrCameraNotFound)
}

func TestToggleActive(t *testing.T) {
	cm, relay := newTestCameraManager(t)
	cam, err := cm.Create(context.Background(), &models.Camera{Name: "lobby", Host: "10.0.0.5"})
	require.NoError(t, err)

	cam, err = cm.ToggleActive(context.Background(), cam.ID)
	require.NoError(t, err)
	require.True(t, cam.IsActive)

	relay.err = errors.New("refused")
	cam, err = cm.ToggleActive(context.Background(), cam.ID)
	require.True(t, IsSyncWarning(err))
	require.False(t, cam.IsActive)

	// not reverted
	stored, err := cm.Get(cam.ID)
	require.NoError(t, err)
	require.False(t, stored.IsActive)
	require.Equal(t, []string{"replace cam_1", "absent cam_1"}, relay.callLog())
}

func TestToggleActiveRelayOrderFollowsWrites(t *testing.T) {
	cm, relay := newTestCameraManager(t)
	cam, err := cm.Create(context.Background(), &models.Camera{Name: "lobby", Host: "10.0.0.5", IsActive: true})
	require.NoError(t, err)

	relay.holdNext()
	first := make(chan error, 1)
	go func() {
		_, err := cm.ToggleActive(context.Background(), cam.ID)
		first <- err
	}()
	<-relay.entered

	second := make(chan error, 1)
	go func() {
		_, err := cm.ToggleActive(context.Background(), cam.ID)
		second <- err
	}()

	// the second toggle waits for the first one's relay call
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, []string{"present cam_1", "absent cam_1"}, relay.callLog())
	stored, err := cm.Get(cam.ID)
	require.NoError(t, err)
	require.False(t, stored.IsActive)

	close(relay.release)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	stored, err = cm.Get(cam.ID)
	require.NoError(t, err)
	require.True(t, stored.IsActive)
	require.Equal(t, []string{"present cam_1", "absent cam_1", "replace cam_1"}, relay.callLog())
}

func TestDeleteBlocksConcurrentToggle(t *testing.T) {
	cm, relay := newTestCameraManager(t)
	cam, err := cm.Create(context.Background(), &models.Camera{Name: "lobby", Host: "10.0.0.5"})
	require.NoError(t, err)

	relay.holdNext()
	deleted := make(chan error, 1)
	go func() {
		deleted <- cm.Delete(context.Background(), cam.ID)
	}()
	<-relay.entered

	toggled := make(chan error, 1)
	go func() {
		_, err := cm.ToggleActive(context.Background(), cam.ID)
		toggled <- err
	}()

	time.Sleep(50 * time.Millisecond)
	close(relay.release)
	require.NoError(t, <-deleted)
	require.ErrorIs(t, <-toggled, models.ErrCameraNotFound)

	// no path is created for the deleted camera
	require.Equal(t, []string{"absent cam_1"}, relay.callLog())
}

func TestTogglePublic(t *testing.T) {
	cm, relay := newTestCameraManager(t)
	cam, err := cm.Create(context.Background(), &models.Camera{Name: "lobby", Host: "10.0.0.5", IsActive: true})
	require.NoError(t, err)

	cam, err = cm.TogglePublic(cam.ID)
	require.NoError(t, err)
	require.True(t, cam.IsPublic)
	require.Len(t, relay.callLog(), 1)
}

func TestRebroadcastLifecycle(t *testing.T) {
	cm, relay := newTestCameraManager(t)
	cam, err := cm.Create(context.Background(), &models.Camera{Name: "lobby", Host: "10.0.0.5", IsActive: true})
	require.NoError(t, err)

	_, err = cm.StartRebroadcast(context.Background(), cam.ID)
	require.ErrorIs(t, err, models.ErrNoRebroadcastTarget)

	_, err = cm.SetRebroadcastTarget(cam.ID, "https://youtube.com/watch")
	require.ErrorIs(t, err, models.ErrInvalidRebroadcast)
	_, err = cm.SetRebroadcastTarget(cam.ID, "rtmp://a.rtmp.youtube.com/live2")
	require.ErrorIs(t, err, models.ErrInvalidRebroadcast)

	cam, err = cm.SetRebroadcastTarget(cam.ID, " rtmp://a.rtmp.youtube.com/live2/key ")
	require.NoError(t, err)
	require.Equal(t, "rtmp://a.rtmp.youtube.com/live2/key", cam.RebroadcastURL)
	require.False(t, cam.RebroadcastEnabled)

	cam, err = cm.StartRebroadcast(context.Background(), cam.ID)
	require.NoError(t, err)
	require.True(t, cam.RebroadcastEligible())

	cam, err = cm.StopRebroadcast(context.Background(), cam.ID)
	require.NoError(t, err)
	require.False(t, cam.RebroadcastEnabled)

	require.Equal(t, []string{"present cam_1", "replace cam_1", "replace cam_1"}, relay.callLog())
}

func TestReinitializeAndResyncReadStoredRecord(t *testing.T) {
	cm, relay := newTestCameraManager(t)
	active, err := cm.Create(context.Background(), &models.Camera{Name: "lobby", Host: "10.0.0.5", IsActive: true})
	require.NoError(t, err)
	inactive, err := cm.Create(context.Background(), &models.Camera{Name: "garage", Host: "10.0.0.6"})
	require.NoError(t, err)

	require.NoError(t, cm.Reinitialize(context.Background(), active.ID))
	require.NoError(t, cm.Reinitialize(context.Background(), inactive.ID))
	require.NoError(t, cm.Resync(context.Background(), active.ID))
	require.NoError(t, cm.Resync(context.Background(), inactive.ID))
	require.ErrorIs(t, cm.Reinitialize(context.Background(), 99), models.ErrCameraNotFound)

	require.Equal(t, []string{"present cam_1", "present cam_1", "replace cam_1", "absent cam_2"}, relay.callLog())
}

func TestRemoveOrphan(t *testing.T) {
	cm, relay := newTestCameraManager(t)
	active, err := cm.Create(context.Background(), &models.Camera{Name: "lobby", Host: "10.0.0.5", IsActive: true})
	require.NoError(t, err)
	inactive, err := cm.Create(context.Background(), &models.Camera{Name: "garage", Host: "10.0.0.6"})
	require.NoError(t, err)

	require.NoError(t, cm.RemoveOrphan(context.Background(), active.ID))
	require.NoError(t, cm.RemoveOrphan(context.Background(), inactive.ID))
	require.NoError(t, cm.RemoveOrphan(context.Background(), 42))

	require.Equal(t, []string{"present cam_1", "absent cam_2", "absent cam_42"}, relay.callLog())
}

func TestListCameras(t *testing.T) {
	cm, _ := newTestCameraManager(t)
	for i := 0; i < 12; i++ {
		_, err := cm.Create(context.Background(), &models.Camera{Name: "cam", Host: "10.0.0.5", IsActive: i%3 == 0})
		require.NoError(t, err)
	}

	all, err := cm.List()
	require.NoError(t, err)
	require.Len(t, all, 12)
	for i, c := range all {
		require.Equal(t, int64(i+1), c.ID)
	}

	active, err := cm.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 4)
	require.Equal(t, int64(10), active[3].ID)
}

func TestSetCodecMissingCamera(t *testing.T) {
	cm, _ := newTestCameraManager(t)
	require.ErrorIs(t, cm.SetCodec(5, "h264"), models.ErrCameraNotFound)
}
