package services

import (
	"time"

	qtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-redis/redis/v7"
	"github.com/rs/xid"
	"github.com/univision/camera-relay/models"
	"github.com/univision/camera-relay/utils"
)

// Notifier receives the outcome of every reconciliation
type Notifier interface {
	Notify(event *models.SyncEvent)
}

// NewSyncEvent stamps id and creation time
func NewSyncEvent(cameraID int64, operation models.SyncOperation, err error) *models.SyncEvent {
	event := &models.SyncEvent{
		ID:        xid.New().String(),
		CameraID:  cameraID,
		PathName:  PathName(cameraID),
		Operation: operation,
		Status:    models.SyncStatusOK,
		Created:   time.Now().Unix() * 1000,
	}
	if err != nil {
		event.Status = models.SyncStatusFailed
		event.Message = err.Error()
	}
	return event
}

type noopNotifier struct{}

func (noopNotifier) Notify(*models.SyncEvent) {}

// RedisNotifier - publishes events on a redis pub/sub channel
type RedisNotifier struct {
	rdb     *redis.Client
	channel string
}

func NewRedisNotifier(rdb *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{
		rdb:     rdb,
		channel: channel,
	}
}

func (rn *RedisNotifier) Notify(event *models.SyncEvent) {
	// errors are logged by the publisher, events are informational
	_ = utils.PublishToRedis(rn.rdb, rn.channel, event)
}

// MQTTNotifier - publishes events on a broker topic
type MQTTNotifier struct {
	client qtt.Client
	topic  string
}

func NewMQTTNotifier(client qtt.Client, topic string) *MQTTNotifier {
	return &MQTTNotifier{
		client: client,
		topic:  topic,
	}
}

func (mn *MQTTNotifier) Notify(event *models.SyncEvent) {
	if !mn.client.IsConnectionOpen() {
		return
	}
	_ = utils.PublishToMQTT(mn.client, mn.topic, event)
}

// MultiNotifier fans an event out to every notifier
type MultiNotifier []Notifier

func (mn MultiNotifier) Notify(event *models.SyncEvent) {
	for _, n := range mn {
		n.Notify(event)
	}
}
