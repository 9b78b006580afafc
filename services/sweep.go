package services

import (
	"context"
	"errors"
	"sync"
	"time"

	g "github.com/univision/camera-relay/globals"
	"github.com/univision/camera-relay/models"
	"golang.org/x/sync/errgroup"
)

var errCodecUnknown = errors.New("codec could not be detected")

// CameraSource - relay eligible cameras and the per-camera operations a sweep dispatches.
// Operations re-read the stored record under the camera lock, the listed copy is only used for its id.
type CameraSource interface {
	ListActive() ([]*models.Camera, error)
	Reinitialize(ctx context.Context, id int64) error
	Resync(ctx context.Context, id int64) error
	RemoveOrphan(ctx context.Context, id int64) error
}

// PathLister - paths currently known to the streaming server
type PathLister interface {
	ListPaths(ctx context.Context) (*models.PathList, error)
}

// SweepReport - outcome of a bulk pass over active cameras
type SweepReport struct {
	Total   int              `json:"total"`
	Synced  int              `json:"synced"`
	Failed  map[int64]string `json:"failed,omitempty"`
	Removed []string         `json:"removed,omitempty"` // orphaned paths removed
}

// Sweeper re-initializes or probes all active cameras with bounded concurrency
type Sweeper struct {
	cameras CameraSource
	paths   PathLister
	prober  *Prober
	conf    *g.SweepSubconfig
}

func NewSweeper(cameras CameraSource, paths PathLister, prober *Prober, conf *g.SweepSubconfig) *Sweeper {
	return &Sweeper{
		cameras: cameras,
		paths:   paths,
		prober:  prober,
		conf:    conf,
	}
}

// InitializeAll ensures a path for every active camera and removes camera paths without an active record.
// Single failures are reported, never abort the sweep.
func (s *Sweeper) InitializeAll(ctx context.Context) (*SweepReport, error) {
	cameras, err := s.cameras.ListActive()
	if err != nil {
		g.Log.Error("failed to list active cameras", err)
		return nil, err
	}
	g.Log.Info("initializing camera streams", len(cameras))

	report := s.each(ctx, cameras, func(ctx context.Context, camera *models.Camera) error {
		return s.cameras.Reinitialize(ctx, camera.ID)
	})
	s.removeOrphans(ctx, cameras, report)
	g.Log.Info("camera initialization complete", "synced", report.Synced, "failed", len(report.Failed), "removed", len(report.Removed))
	return report, nil
}

// ProbeAll detects codecs of active cameras whose codec is still unknown.
// Paths of cameras that can now be relayed without re-encoding are rebuilt.
func (s *Sweeper) ProbeAll(ctx context.Context) (*SweepReport, error) {
	cameras, err := s.cameras.ListActive()
	if err != nil {
		g.Log.Error("failed to list active cameras", err)
		return nil, err
	}
	unknown := make([]*models.Camera, 0, len(cameras))
	for _, c := range cameras {
		if !c.HasCodec() {
			unknown = append(unknown, c)
		}
	}

	report := s.each(ctx, unknown, func(ctx context.Context, camera *models.Camera) error {
		codec, err := s.prober.ProbeAndStore(ctx, camera)
		if err != nil {
			return err
		}
		if codec == "" {
			return errCodecUnknown
		}
		if camera.CopyEligible() {
			// was transcoding while the codec was unknown
			return s.cameras.Resync(ctx, camera.ID)
		}
		return nil
	})
	return report, nil
}

// removeOrphans deletes cam_ paths left behind by cameras that are gone or inactive
func (s *Sweeper) removeOrphans(ctx context.Context, active []*models.Camera, report *SweepReport) {
	if s.paths == nil || ctx.Err() != nil {
		return
	}
	list, err := s.paths.ListPaths(ctx)
	if err != nil {
		g.Log.Warn("failed to list paths, skipping orphan cleanup", err)
		return
	}
	wanted := make(map[int64]bool, len(active))
	for _, c := range active {
		wanted[c.ID] = true
	}
	for _, item := range list.Items {
		id, ok := ParsePathName(item.Name)
		if !ok || wanted[id] {
			continue
		}
		if err := s.cameras.RemoveOrphan(ctx, id); err != nil {
			g.Log.Warn("failed to remove orphaned path", item.Name, err)
			report.Failed[id] = err.Error()
			continue
		}
		report.Removed = append(report.Removed, item.Name)
	}
}

func (s *Sweeper) each(ctx context.Context, cameras []*models.Camera, work func(ctx context.Context, camera *models.Camera) error) *SweepReport {
	report := &SweepReport{
		Total:  len(cameras),
		Failed: make(map[int64]string),
	}
	var mu sync.Mutex

	eg := &errgroup.Group{}
	eg.SetLimit(s.concurrency())
	stagger := time.Duration(0)
	if s.conf != nil {
		stagger = time.Duration(s.conf.StaggerMs) * time.Millisecond
	}

	for i, camera := range cameras {
		if i > 0 && stagger > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(stagger):
			}
		}
		if ctx.Err() != nil {
			mu.Lock()
			report.Failed[camera.ID] = ctx.Err().Error()
			mu.Unlock()
			continue
		}
		camera := camera
		eg.Go(func() error {
			err := work(ctx, camera)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				g.Log.Error("failed to process camera in sweep", camera.ID, err)
				report.Failed[camera.ID] = err.Error()
				return nil
			}
			report.Synced++
			return nil
		})
	}
	_ = eg.Wait()
	return report
}

func (s *Sweeper) concurrency() int {
	if s.conf == nil || s.conf.Concurrency <= 0 {
		return 1
	}
	return s.conf.Concurrency
}
