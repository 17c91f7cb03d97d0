// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Magnetometer sources selectable with MAG_SOURCE.
const (
	SourceHMC5983 = "hmc5983"
	SourceMQTT    = "mqtt"
	SourceSerial  = "serial"
	SourceReplay  = "replay"
	SourceSim     = "sim"
)

// HMCDevice is one HMC5983 entry of HMC_DEVICES, written "bus:addr".
type HMCDevice struct {
	Bus  string
	Addr uint16
}

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker              string
	MQTTClientIDCalibration string
	MQTTClientIDProducer    string
	MQTTClientIDConsole     string
	MQTTClientIDWeb         string
	MQTTClientIDDisplay     string

	// Topics
	TopicMagPrefix           string // samples are published on <prefix>/<instance>
	TopicCalibrationProgress string
	TopicCalibrationResult   string

	// Magnetometer source
	MagSource    string
	MagInstances int // mqtt, serial and sim sources

	// HMC5983 hardware
	HMCDevices    []HMCDevice
	HMCODRHz      int
	HMCAvgSamples int
	HMCGainCode   int
	HMCMode       string // "continuous" or "single"

	// Serial NMEA XDR source
	SerialPort     string
	SerialBaudRate int

	// Replay source
	ReplayFile string

	// Synthetic source
	SimRadius float64 // µT×10

	// Calibration
	CalibSampleInterval   int // milliseconds
	CalibMaxRounds        int // 0 = default, negative = unlimited
	CalibMaxCollectPasses int // 0 = unlimited
	CalibStaleAfter       int // milliseconds, 0 = never stale
	CalibOutputDir        string
	CalibVerbose          bool

	// Producer
	ProducerSampleInterval int // milliseconds

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CBus         string
	DisplayUpdateInterval int // milliseconds
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config with every optional value filled in.
func Default() *Config {
	return &Config{
		MQTTClientIDCalibration:  "magcal-calibration",
		MQTTClientIDProducer:     "magcal-hmc-producer",
		MQTTClientIDConsole:      "magcal-console",
		MQTTClientIDWeb:          "magcal-web",
		MQTTClientIDDisplay:      "magcal-display",
		TopicMagPrefix:           "inertial/mag",
		TopicCalibrationProgress: "inertial/calibration/progress",
		TopicCalibrationResult:   "inertial/calibration/result",
		MagInstances:             1,
		HMCODRHz:                 15,
		HMCAvgSamples:            1,
		HMCGainCode:              1,
		HMCMode:                  "continuous",
		SerialBaudRate:           9600,
		SimRadius:                500,
		CalibSampleInterval:      200,
		CalibMaxRounds:           10,
		CalibStaleAfter:          1000,
		CalibOutputDir:           ".",
		ProducerSampleInterval:   100,
		WebServerPort:            8080,
		DisplayI2CBus:            "1",
		DisplayUpdateInterval:    500,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseInt(key, value string, min, max int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, min, max, v)
	}
	return v, nil
}

// parseHMCDevices reads a comma separated list of "bus:addr" entries.
func parseHMCDevices(value string) ([]HMCDevice, error) {
	var devices []HMCDevice
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		bus, addrText, ok := strings.Cut(entry, ":")
		if !ok || bus == "" {
			return nil, fmt.Errorf("invalid HMC_DEVICES entry %q: want bus:addr", entry)
		}
		addr, err := strconv.ParseUint(addrText, 0, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid HMC_DEVICES address %q: %w", addrText, err)
		}
		devices = append(devices, HMCDevice{Bus: bus, Addr: uint16(addr)})
	}
	return devices, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_CALIBRATION":
		c.MQTTClientIDCalibration = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_MAG_PREFIX":
		c.TopicMagPrefix = strings.TrimSuffix(value, "/")
	case "TOPIC_CALIBRATION_PROGRESS":
		c.TopicCalibrationProgress = value
	case "TOPIC_CALIBRATION_RESULT":
		c.TopicCalibrationResult = value

	// Source
	case "MAG_SOURCE":
		switch value {
		case SourceHMC5983, SourceMQTT, SourceSerial, SourceReplay, SourceSim:
			c.MagSource = value
		default:
			return fmt.Errorf("MAG_SOURCE must be one of hmc5983, mqtt, serial, replay, sim, got %q", value)
		}
	case "MAG_INSTANCES":
		c.MagInstances, err = parseInt(key, value, 1, 16)

	// HMC5983
	case "HMC_DEVICES":
		c.HMCDevices, err = parseHMCDevices(value)
	case "HMC_ODR_HZ":
		c.HMCODRHz, err = parseInt(key, value, 0, 75)
	case "HMC_AVG_SAMPLES":
		c.HMCAvgSamples, err = parseInt(key, value, 1, 8)
	case "HMC_GAIN_CODE":
		c.HMCGainCode, err = parseInt(key, value, 0, 7)
	case "HMC_MODE":
		if value != "continuous" && value != "single" {
			return fmt.Errorf("HMC_MODE must be continuous or single, got %q", value)
		}
		c.HMCMode = value

	// Serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, err)
		}
		c.SerialBaudRate = rate

	// Replay
	case "REPLAY_FILE":
		c.ReplayFile = value

	// Synthetic
	case "SIM_RADIUS":
		r, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid SIM_RADIUS %q: %w", value, err)
		}
		if r <= 0 {
			return fmt.Errorf("SIM_RADIUS must be positive, got %v", r)
		}
		c.SimRadius = r

	// Calibration
	case "CALIB_SAMPLE_INTERVAL":
		c.CalibSampleInterval, err = parseInt(key, value, 1, 60000)
	case "CALIB_MAX_ROUNDS":
		rounds, perr := strconv.Atoi(value)
		if perr != nil {
			return fmt.Errorf("invalid CALIB_MAX_ROUNDS %q: %w", value, perr)
		}
		c.CalibMaxRounds = rounds
	case "CALIB_MAX_COLLECT_PASSES":
		c.CalibMaxCollectPasses, err = parseInt(key, value, 0, 1<<30)
	case "CALIB_STALE_AFTER":
		c.CalibStaleAfter, err = parseInt(key, value, 0, 1<<30)
	case "CALIB_OUTPUT_DIR":
		c.CalibOutputDir = value
	case "CALIB_VERBOSE":
		v, perr := strconv.ParseBool(value)
		if perr != nil {
			return fmt.Errorf("invalid CALIB_VERBOSE %q: %w", value, perr)
		}
		c.CalibVerbose = v

	// Producer
	case "PRODUCER_SAMPLE_INTERVAL":
		c.ProducerSampleInterval, err = parseInt(key, value, 1, 60000)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value, 1, 65535)

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseInt(key, value, 1, 60000)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks that the fields the selected source needs are set.
func (c *Config) validate() error {
	switch c.MagSource {
	case "":
		return fmt.Errorf("MAG_SOURCE is required")
	case SourceHMC5983:
		if len(c.HMCDevices) == 0 {
			return fmt.Errorf("HMC_DEVICES is required for MAG_SOURCE=hmc5983")
		}
	case SourceMQTT:
		if c.MQTTBroker == "" {
			return fmt.Errorf("MQTT_BROKER is required for MAG_SOURCE=mqtt")
		}
	case SourceSerial:
		if c.SerialPort == "" {
			return fmt.Errorf("SERIAL_PORT is required for MAG_SOURCE=serial")
		}
		if c.SerialBaudRate <= 0 {
			return fmt.Errorf("SERIAL_BAUD_RATE is required for MAG_SOURCE=serial")
		}
	case SourceReplay:
		if c.ReplayFile == "" {
			return fmt.Errorf("REPLAY_FILE is required for MAG_SOURCE=replay")
		}
	}
	if c.CalibOutputDir == "" {
		return fmt.Errorf("CALIB_OUTPUT_DIR is required")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
