// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/magcal/internal/mag"
	"github.com/relabs-tech/magcal/internal/magcal"
	"github.com/relabs-tech/magcal/internal/monitoring"
	"github.com/relabs-tech/magcal/internal/timeutil"
)

// MQTTSource follows mag.Sample messages published on <prefix>/<instance>.
type MQTTSource struct {
	*latest
	client mqtt.Client
	prefix string
}

func NewMQTTSource(client mqtt.Client, prefix string, instances int, clock timeutil.Clock, staleAfter time.Duration) *MQTTSource {
	return &MQTTSource{
		latest: newLatest(instances, clock, staleAfter),
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
	}
}

// Subscribe starts following the instance topics.
func (s *MQTTSource) Subscribe() error {
	topic := s.prefix + "/+"
	token := s.client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := s.handle(msg.Topic(), msg.Payload()); err != nil {
			monitoring.Logf("mqtt source: %v", err)
		}
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("mqtt source: subscribe %s: %w", topic, token.Error())
	}
	monitoring.Logf("mqtt source: subscribed to %s", topic)
	return nil
}

// Unsubscribe stops following the instance topics.
func (s *MQTTSource) Unsubscribe() {
	s.client.Unsubscribe(s.prefix + "/+").Wait()
}

func (s *MQTTSource) handle(topic string, payload []byte) error {
	suffix, ok := strings.CutPrefix(topic, s.prefix+"/")
	if !ok {
		return fmt.Errorf("unexpected topic %q", topic)
	}
	instance, err := strconv.Atoi(suffix)
	if err != nil {
		return fmt.Errorf("invalid instance in topic %q: %w", topic, err)
	}

	var sample mag.Sample
	if err := json.Unmarshal(payload, &sample); err != nil {
		return fmt.Errorf("%s: unmarshal error: %w", topic, err)
	}
	if !s.set(instance, magcal.Vector3{X: float64(sample.Mx), Y: float64(sample.My), Z: float64(sample.Mz)}) {
		return fmt.Errorf("%s: instance %d out of range", topic, instance)
	}
	return nil
}
