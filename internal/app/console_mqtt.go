// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/magcal/internal/config"
	"github.com/relabs-tech/magcal/internal/magcal"
	"github.com/relabs-tech/magcal/internal/telemetry"
)

// RunConsoleMQTT prints calibration progress and results published by a
// running calibration until interrupted.
func RunConsoleMQTT() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("console: config not initialized")
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return fmt.Errorf("console: %w", err)
	}
	defer client.Disconnect(250)
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	console := telemetry.NewConsoleReporter(os.Stdout, cfg.CalibVerbose)

	progressToken := client.Subscribe(cfg.TopicCalibrationProgress, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var p magcal.Progress
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			log.Printf("console: progress unmarshal error: %v", err)
			return
		}
		console.Report(p)
	})
	progressToken.Wait()
	if progressToken.Error() != nil {
		return progressToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicCalibrationProgress)

	resultToken := client.Subscribe(cfg.TopicCalibrationResult, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var rec telemetry.Record
		if err := json.Unmarshal(msg.Payload(), &rec); err != nil {
			log.Printf("console: result unmarshal error: %v", err)
			return
		}
		printRecord(os.Stdout, rec)
	})
	resultToken.Wait()
	if resultToken.Error() != nil {
		return resultToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicCalibrationResult)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("console: shutting down")
	return nil
}
