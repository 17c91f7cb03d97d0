// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"image"
	"log"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/magcal/internal/config"
	"github.com/relabs-tech/magcal/internal/magcal"
	"github.com/relabs-tech/magcal/internal/telemetry"
)

const displayLines = 4

// RunDisplay shows calibration progress from MQTT on an SSD1306 OLED.
func RunDisplay() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("display: config not initialized")
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus %q: %w", cfg.DisplayI2CBus, err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized on bus %s", cfg.DisplayI2CBus)

	if err := dev.Draw(dev.Bounds(), renderLines([]string{"Mag calibration", "waiting for", "progress"}), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return fmt.Errorf("display: %w", err)
	}
	defer client.Disconnect(250)
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	hub := telemetry.NewHub()
	if err := followCalibration(client, cfg, hub, "display"); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")
	for range ticker.C {
		img := renderLines(statusLines(hub.Status()))
		if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}
	return nil
}

// statusLines condenses the calibration state into at most displayLines
// rows of 18 characters.
func statusLines(st telemetry.Status) []string {
	if st.Result != nil {
		lines := []string{"CAL FAILED"}
		if st.Result.Success {
			lines[0] = "CAL OK"
		}
		lines[0] += fmt.Sprintf(" r%d", st.Result.Rounds)
		for _, in := range st.Result.Instances {
			lines = append(lines, fmt.Sprintf("m%d R%.0f f%.2f", in.Instance, in.Radius, in.Fitness))
		}
		return truncateLines(lines)
	}

	header := "MAG CAL"
	if st.Session != nil {
		header = fmt.Sprintf("MAG CAL r%d %s", st.Session.Round, shortStage(st.Session.Stage))
	}
	lines := []string{header}
	for _, p := range st.Instances {
		switch p.Stage {
		case magcal.StageSampled, magcal.StageCollecting:
			lines = append(lines, fmt.Sprintf("m%d %3d/%d", p.Instance, p.Samples, magcal.NumSamples))
		case magcal.StageUnhealthy:
			lines = append(lines, fmt.Sprintf("m%d unhealthy", p.Instance))
		case magcal.StageFault:
			lines = append(lines, fmt.Sprintf("m%d FAULT", p.Instance))
		case magcal.StageComplete:
			lines = append(lines, fmt.Sprintf("m%d done", p.Instance))
		default:
			lines = append(lines, fmt.Sprintf("m%d f%.2f p%d", p.Instance, p.Fitness, p.PassCount))
		}
	}
	return truncateLines(lines)
}

func shortStage(s magcal.Stage) string {
	switch s {
	case magcal.StageCollecting:
		return "collect"
	case magcal.StageSampleDone:
		return "fit"
	}
	return string(s)
}

func truncateLines(lines []string) []string {
	if len(lines) > displayLines {
		lines = lines[:displayLines]
	}
	for i, l := range lines {
		if len(l) > 18 {
			lines[i] = l[:18]
		}
	}
	return lines
}

func renderLines(lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, l := range lines {
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawBytes([]byte(l))
	}
	return img
}
