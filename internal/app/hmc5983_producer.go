// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/magcal/internal/config"
	"github.com/relabs-tech/magcal/internal/mag"
	"github.com/relabs-tech/magcal/internal/sensors"
)

// RunHMC5983Producer polls the configured HMC5983 devices and publishes
// each healthy reading on <TOPIC_MAG_PREFIX>/<instance>.
func RunHMC5983Producer() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("hmc: config not initialized")
	}

	arr, err := sensors.OpenHMCArray(hmcDevices(cfg), hmcOpts(cfg))
	if err != nil {
		return err
	}
	defer arr.Close()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return fmt.Errorf("hmc: %w", err)
	}
	defer client.Disconnect(250)
	log.Printf("hmc: connected to MQTT broker at %s", cfg.MQTTBroker)

	interval := time.Duration(cfg.ProducerSampleInterval) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("hmc: producer started, %d devices every %v", arr.Count(), interval)
	for range ticker.C {
		publishReadings(client, cfg.TopicMagPrefix, arr, time.Now())
	}
	return nil
}

func publishReadings(client mqtt.Client, prefix string, arr *sensors.HMCArray, now time.Time) {
	arr.Read()
	for i := 0; i < arr.Count(); i++ {
		if !arr.Healthy(i) {
			continue
		}
		f := arr.Field(i)
		sample := mag.NewSample(i, int16(f.X), int16(f.Y), int16(f.Z), now)
		payload, err := json.Marshal(sample)
		if err != nil {
			log.Printf("hmc: marshal error: %v", err)
			continue
		}
		token := client.Publish(fmt.Sprintf("%s/%d", prefix, i), 0, false, payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("hmc: publish error: %v", token.Error())
		}
	}
}
