// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/gps_tracker/internal/config"
	"github.com/relabs-tech/gps_tracker/internal/events"
)

const mqttPublishTimeout = 2 * time.Second

// Topics maps event kinds to MQTT topics. Kinds without a topic are not
// published.
type Topics map[events.Kind]string

// TopicsFromConfig builds the topic map from the process configuration.
func TopicsFromConfig(cfg *config.Config) Topics {
	return Topics{
		events.KindFix:        cfg.TopicGPS,
		events.KindPosition:   cfg.TopicGPSPosition,
		events.KindNavigation: cfg.TopicGPSNavigation,
		events.KindCourse:     cfg.TopicGPSCourse,
		events.KindSatellites: cfg.TopicGPSSatellites,
		events.KindConnection: cfg.TopicConnectionStatus,
		events.KindRecording:  cfg.TopicRecordingStatus,
		events.KindLiveStats:  cfg.TopicLiveStats,
		events.KindSession:    cfg.TopicSession,
	}
}

// retainedKinds are published with the retain flag so late subscribers see
// the last value.
var retainedKinds = map[events.Kind]bool{
	events.KindFix:        true,
	events.KindConnection: true,
	events.KindRecording:  true,
}

// publisher is the part of mqtt.Client the publisher needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// ConnectMQTT connects to broker with clientID.
func ConnectMQTT(broker, clientID string, logger *zap.SugaredLogger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warnw("mqtt: connection lost", "error", err)
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	logger.Infow("mqtt: connected to broker", "broker", broker, "client_id", clientID)
	return client, nil
}

// eventMessage renders e as the topic, JSON payload and retain flag it is
// published with. ok is false when the kind has no topic.
func eventMessage(e events.Event, topics Topics) (topic string, payload []byte, retained bool, ok bool, err error) {
	topic = topics[e.Kind]
	if topic == "" {
		return "", nil, false, false, nil
	}
	payload, err = json.Marshal(e.Payload())
	if err != nil {
		return "", nil, false, false, fmt.Errorf("marshal %s: %w", e.Kind, err)
	}
	return topic, payload, retainedKinds[e.Kind], true, nil
}

// RunMQTTPublisher forwards bus events to MQTT until ctx is cancelled or the
// bus is closed.
func RunMQTTPublisher(ctx context.Context, client publisher, bus *events.Bus, topics Topics, logger *zap.SugaredLogger) error {
	sub := bus.Subscribe(256)
	defer bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-sub.C:
			if !ok {
				return nil
			}
			topic, payload, retained, ok, err := eventMessage(e, topics)
			if err != nil {
				logger.Errorw("mqtt: encode error", "error", err)
				continue
			}
			if !ok {
				continue
			}
			token := client.Publish(topic, 0, retained, payload)
			if !token.WaitTimeout(mqttPublishTimeout) {
				logger.Warnw("mqtt: publish timed out", "topic", topic)
				continue
			}
			if token.Error() != nil {
				logger.Warnw("mqtt: publish error", "topic", topic, "error", token.Error())
			}
		}
	}
}
