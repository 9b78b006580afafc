package services

import (
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	g "github.com/univision/camera-relay/globals"
	"github.com/univision/camera-relay/models"
)

// CodecStore persists a detected codec back into the camera registry
type CodecStore interface {
	SetCodec(id int64, codec string) error
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

type probeOutput struct {
	Streams []struct {
		CodecName string `json:"codec_name"`
	} `json:"streams"`
}

// Prober inspects the video codec of camera sources with ffprobe
type Prober struct {
	conf  *g.RelaySubconfig
	store CodecStore
	run   commandRunner
}

func NewProber(conf *g.RelaySubconfig, store CodecStore) *Prober {
	return &Prober{
		conf:  conf,
		store: store,
		run:   execOutput,
	}
}

// ProbeCodec returns the lowercased codec of the first video stream, empty when unknown
func (p *Prober) ProbeCodec(ctx context.Context, camera *models.Camera) string {
	ctx, cancel := context.WithTimeout(ctx, p.conf.ProbeTimeout())
	defer cancel()

	out, err := p.run(ctx, p.conf.FFprobe,
		"-v", "error",
		"-rtsp_transport", "tcp",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name",
		"-of", "json",
		camera.SourceURL())
	if err != nil {
		g.Log.Warn("codec probe failed", camera.ID, err)
		return ""
	}
	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		g.Log.Warn("failed to parse probe output", camera.ID, err)
		return ""
	}
	if len(parsed.Streams) == 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(parsed.Streams[0].CodecName))
}

// ProbeAndStore probes the camera and persists a detected codec
func (p *Prober) ProbeAndStore(ctx context.Context, camera *models.Camera) (string, error) {
	codec := p.ProbeCodec(ctx, camera)
	if codec == "" {
		return "", nil
	}
	if err := p.store.SetCodec(camera.ID, codec); err != nil {
		g.Log.Error("failed to store probed codec", camera.ID, err)
		return codec, err
	}
	camera.Codec = codec
	g.Log.Info("probed codec", camera.ID, codec)
	return codec, nil
}

func execOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}
