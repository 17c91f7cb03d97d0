// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/magcal/internal/magcal"
)

// Publisher is the part of mqtt.Client the reporter needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTReporter publishes progress events as JSON and the final record as
// a retained message.
type MQTTReporter struct {
	client        Publisher
	progressTopic string
	resultTopic   string
}

func NewMQTTReporter(client Publisher, progressTopic, resultTopic string) *MQTTReporter {
	return &MQTTReporter{client: client, progressTopic: progressTopic, resultTopic: resultTopic}
}

func (r *MQTTReporter) Report(p magcal.Progress) {
	payload, err := json.Marshal(p)
	if err != nil {
		log.Printf("calibration: progress marshal error: %v", err)
		return
	}
	token := r.client.Publish(r.progressTopic, 0, false, payload)
	token.Wait()
	if token.Error() != nil {
		log.Printf("calibration: progress publish error: %v", token.Error())
	}
}

// PublishResult publishes rec on the result topic, retained so late
// subscribers see the latest calibration.
func (r *MQTTReporter) PublishResult(rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	token := r.client.Publish(r.resultTopic, 0, true, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("publish result on %s: %w", r.resultTopic, token.Error())
	}
	return nil
}
