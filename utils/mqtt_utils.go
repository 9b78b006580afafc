package utils

import (
	"encoding/json"
	"errors"
	"time"

	qtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-redis/redis/v7"
	g "github.com/univision/camera-relay/globals"
	"github.com/univision/camera-relay/models"
)

var ErrPublishTimeout = errors.New("timed out publishing to mqtt broker")

// PublishToMQTT publishes the sync event to the topic, waiting up to 5 seconds for the broker
func PublishToMQTT(client qtt.Client, topic string, event *models.SyncEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		g.Log.Error("failed to marshal sync event", err)
		return err
	}

	token := client.Publish(topic, 1, false, eventBytes)
	if !token.WaitTimeout(time.Second * 5) {
		g.Log.Warn("mqtt publish timed out", topic)
		return ErrPublishTimeout
	}
	if token.Error() != nil {
		g.Log.Info("failed to publish sync event to mqtt", token.Error())
		return token.Error()
	}
	return nil
}

// PublishToRedis publishes the sync event on the redis channel
func PublishToRedis(rdb *redis.Client, channel string, event *models.SyncEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		g.Log.Error("failed to marshal sync event", err)
		return err
	}
	rCmd := rdb.Publish(channel, string(eventBytes))
	if rCmd.Err() != nil {
		g.Log.Error("failed to publish sync event to redis", rCmd.Err())
		return rCmd.Err()
	}
	return nil
}
