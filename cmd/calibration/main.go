// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


// ./cmd/calibration/main.go
//
// Magnetometer hard-iron calibration. Collects 100 well-spread samples per
// magnetometer, fits a sphere (radius + offset) with a damped Gauss-Newton
// solver and repeats until every magnetometer has passed twice in a row.
//
// Output:
//
//	Writes <timestamp>_mag_calibration.json under CALIB_OUTPUT_DIR and, when
//	MQTT_BROKER is set, publishes progress and the result on MQTT.
//
// Run:
//
//	go run ./cmd/calibration -config magcal_config.txt
//
// Notes:
//   - Offsets are added to raw readings: corrected = raw + offset.
//   - Units follow the source; the HMC5983 source reports µT×10.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/relabs-tech/magcal/internal/app"
	"github.com/relabs-tech/magcal/internal/config"
	"github.com/relabs-tech/magcal/internal/magcal"
)

func main() {
	configPath := flag.String("config", "magcal_config.txt", "Path to configuration file")
	flag.Parse()

	fmt.Println("=== Magnetometer Calibration ===")
	fmt.Println("Rotate the vehicle slowly through every orientation until all magnetometers complete.")
	fmt.Println()

	if err := config.InitGlobal(*configPath); err != nil {
		fatal(fmt.Errorf("failed to load config from %s: %w", *configPath, err))
	}

	err := app.RunCalibration()
	var fault *magcal.FaultError
	switch {
	case err == nil:
		fmt.Println("\nCalibration complete.")
	case errors.As(err, &fault):
		fatal(fmt.Errorf("magnetometer %d: %w", fault.Instance, fault.Err))
	default:
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
