// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/magcal/internal/config"
	"github.com/relabs-tech/magcal/internal/magcal"
	"github.com/relabs-tech/magcal/internal/sensors"
	"github.com/relabs-tech/magcal/internal/telemetry"
	"github.com/relabs-tech/magcal/internal/timeutil"
)

// RunCalibration runs one calibration session on the configured source,
// writes the result file and publishes it when a broker is configured.
// The session error, if any, is returned after the result is stored.
func RunCalibration() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("calibration: config not initialized")
	}
	clock := timeutil.NewRealClock()

	var client mqtt.Client
	if cfg.MQTTBroker != "" {
		c, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDCalibration)
		if err != nil {
			return fmt.Errorf("calibration: %w", err)
		}
		defer c.Disconnect(250)
		client = c
		log.Printf("calibration: connected to MQTT broker at %s", cfg.MQTTBroker)
	}

	src, closeSrc, err := openSource(cfg, client, clock)
	if err != nil {
		return fmt.Errorf("calibration: %w", err)
	}
	defer closeSrc()
	log.Printf("calibration: source %s with %d instances", cfg.MagSource, src.Count())

	reporters := telemetry.Multi{telemetry.NewConsoleReporter(os.Stdout, cfg.CalibVerbose)}
	var publisher *telemetry.MQTTReporter
	if client != nil {
		publisher = telemetry.NewMQTTReporter(client, cfg.TopicCalibrationProgress, cfg.TopicCalibrationResult)
		reporters = append(reporters, publisher)
	}

	session := magcal.NewSession(src, magcal.Options{
		Clock:            clock,
		Reporter:         reporters,
		SampleInterval:   time.Duration(cfg.CalibSampleInterval) * time.Millisecond,
		MaxRounds:        cfg.CalibMaxRounds,
		MaxCollectPasses: cfg.CalibMaxCollectPasses,
	})

	started := clock.Now()
	res, runErr := session.Run()
	log.Printf("calibration: session finished after %d rounds in %d ms (uptime %d ms)",
		res.Rounds, clock.Since(started).Milliseconds(), clock.Millis())

	rec := telemetry.NewRecord(cfg.MagSource, res, runErr, clock.Now())
	if len(res.Instances) > 0 {
		path, err := writeRecord(cfg.CalibOutputDir, rec)
		if err != nil {
			log.Printf("calibration: write result error: %v", err)
		} else {
			fmt.Printf("\nWrote: %s\n", path)
		}
	}
	if publisher != nil {
		if err := publisher.PublishResult(rec); err != nil {
			log.Printf("calibration: %v", err)
		}
	}
	return runErr
}

func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, token.Error())
	}
	return client, nil
}

// openSource builds the sensor named by MAG_SOURCE. The returned func
// releases it and is never nil.
func openSource(cfg *config.Config, client mqtt.Client, clock timeutil.Clock) (magcal.Sensor, func(), error) {
	noop := func() {}
	stale := time.Duration(cfg.CalibStaleAfter) * time.Millisecond

	switch cfg.MagSource {
	case config.SourceHMC5983:
		arr, err := sensors.OpenHMCArray(hmcDevices(cfg), hmcOpts(cfg))
		if err != nil {
			return nil, noop, err
		}
		return arr, func() { arr.Close() }, nil

	case config.SourceMQTT:
		if client == nil {
			return nil, noop, fmt.Errorf("mqtt source requires MQTT_BROKER")
		}
		src := sensors.NewMQTTSource(client, cfg.TopicMagPrefix, cfg.MagInstances, clock, stale)
		if err := src.Subscribe(); err != nil {
			return nil, noop, err
		}
		return src, src.Unsubscribe, nil

	case config.SourceSerial:
		src, err := sensors.OpenSerialSource(cfg.SerialPort, uint(cfg.SerialBaudRate), cfg.MagInstances, clock, stale)
		if err != nil {
			return nil, noop, err
		}
		return src, func() { src.Close() }, nil

	case config.SourceReplay:
		src, err := sensors.LoadReplay(cfg.ReplayFile)
		if err != nil {
			return nil, noop, fmt.Errorf("replay %s: %w", cfg.ReplayFile, err)
		}
		return src, noop, nil

	case config.SourceSim:
		return sensors.NewSyntheticSource(magcal.NumSamples, simSpheres(cfg)...), noop, nil
	}
	return nil, noop, fmt.Errorf("unknown MAG_SOURCE %q", cfg.MagSource)
}

func hmcDevices(cfg *config.Config) []sensors.I2CDevice {
	devices := make([]sensors.I2CDevice, len(cfg.HMCDevices))
	for i, d := range cfg.HMCDevices {
		devices[i] = sensors.I2CDevice{Bus: d.Bus, Addr: d.Addr}
	}
	return devices
}

func hmcOpts(cfg *config.Config) sensors.HMC5983Opts {
	return sensors.HMC5983Opts{
		ODRHz:      cfg.HMCODRHz,
		AvgSamples: cfg.HMCAvgSamples,
		GainCode:   cfg.HMCGainCode,
		Mode:       cfg.HMCMode,
	}
}

// simSpheres gives each synthetic instance its own hard-iron offset.
func simSpheres(cfg *config.Config) []sensors.Sphere {
	spheres := make([]sensors.Sphere, cfg.MagInstances)
	for i := range spheres {
		k := float64(i + 1)
		spheres[i] = sensors.Sphere{
			Radius: cfg.SimRadius,
			Center: magcal.Vector3{X: 40 * k, Y: -25 * k, Z: 15 * k},
		}
	}
	return spheres
}

// writeRecord stores rec as indented JSON under dir with a timestamped name.
func writeRecord(dir string, rec telemetry.Record) (string, error) {
	ts := rec.Timestamp.Format("2006-01-02T15-04-05Z0700")
	name := filepath.Join(dir, fmt.Sprintf("%s_mag_calibration.json", ts))

	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(name, b, 0o644); err != nil {
		return "", err
	}
	return name, nil
}
