// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/magcal/internal/config"
	"github.com/relabs-tech/magcal/internal/magcal"
	"github.com/relabs-tech/magcal/internal/telemetry"
)

// RunWeb mirrors calibration progress from MQTT into a websocket hub and
// serves it over HTTP until interrupted.
func RunWeb() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("web: config not initialized")
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return fmt.Errorf("web: %w", err)
	}
	defer client.Disconnect(250)
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	hub := telemetry.NewHub()
	if err := followCalibration(client, cfg, hub, "web"); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           newWebMux(hub),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("web: server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newWebMux(hub *telemetry.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/calibration", hub.HandleStatus)
	mux.HandleFunc("/ws/calibration", hub.HandleWS)
	mux.Handle("/", http.FileServer(http.Dir("web")))
	return mux
}

// followCalibration feeds progress and result messages into hub.
func followCalibration(client mqtt.Client, cfg *config.Config, hub *telemetry.Hub, component string) error {
	token := client.Subscribe(cfg.TopicCalibrationProgress, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var p magcal.Progress
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			log.Printf("%s: progress unmarshal error: %v", component, err)
			return
		}
		hub.Report(p)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}

	token = client.Subscribe(cfg.TopicCalibrationResult, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var rec telemetry.Record
		if err := json.Unmarshal(msg.Payload(), &rec); err != nil {
			log.Printf("%s: result unmarshal error: %v", component, err)
			return
		}
		hub.PublishResult(rec)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("%s: subscribed to %s and %s", component, cfg.TopicCalibrationProgress, cfg.TopicCalibrationResult)
	return nil
}
