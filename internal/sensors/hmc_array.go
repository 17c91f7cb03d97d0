// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/magcal/internal/magcal"
	"github.com/relabs-tech/magcal/internal/monitoring"
)

// Magnetometer is a device that returns one field reading in µT×10.
type Magnetometer interface {
	Sense() (int16, int16, int16, error)
}

// I2CDevice locates one magnetometer.
type I2CDevice struct {
	Bus  string
	Addr uint16
}

// HMCArray polls a fixed set of magnetometers. A failed read marks that
// instance unhealthy until the next successful one.
type HMCArray struct {
	devices []Magnetometer
	fields  []magcal.Vector3
	healthy []bool
	buses   []i2c.BusCloser
}

// NewHMCArray wraps already opened devices; instance i is devices[i].
func NewHMCArray(devices ...Magnetometer) *HMCArray {
	return &HMCArray{
		devices: devices,
		fields:  make([]magcal.Vector3, len(devices)),
		healthy: make([]bool, len(devices)),
	}
}

// OpenHMCArray initializes periph, opens each bus once and configures one
// HMC5983 per entry.
func OpenHMCArray(devices []I2CDevice, opts HMC5983Opts) (*HMCArray, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("hmc: periph host init: %w", err)
	}

	a := NewHMCArray()
	open := map[string]i2c.BusCloser{}
	for i, d := range devices {
		bus, ok := open[d.Bus]
		if !ok {
			b, err := i2creg.Open(d.Bus)
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("hmc: i2c open failed on bus %q: %w", d.Bus, err)
			}
			open[d.Bus] = b
			a.buses = append(a.buses, b)
			bus = b
		}

		o := opts
		o.Addr = d.Addr
		dev, err := NewHMC5983(bus, o)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("hmc: instance %d: %w", i, err)
		}
		if id, err := dev.ID(); err == nil {
			monitoring.Logf("hmc: instance %d ID=%q (bus=%s addr=0x%02X)", i, id[:], d.Bus, d.Addr)
		}
		a.devices = append(a.devices, dev)
	}
	a.fields = make([]magcal.Vector3, len(a.devices))
	a.healthy = make([]bool, len(a.devices))
	return a, nil
}

// Read senses every device once.
func (a *HMCArray) Read() {
	for i, d := range a.devices {
		x, y, z, err := d.Sense()
		if err != nil {
			if a.healthy[i] {
				monitoring.Logf("hmc: instance %d read error: %v", i, err)
			}
			a.healthy[i] = false
			continue
		}
		a.fields[i] = magcal.Vector3{X: float64(x), Y: float64(y), Z: float64(z)}
		a.healthy[i] = true
	}
}

func (a *HMCArray) Healthy(i int) bool { return i >= 0 && i < len(a.healthy) && a.healthy[i] }

func (a *HMCArray) Field(i int) magcal.Vector3 { return a.fields[i] }

func (a *HMCArray) Count() int { return len(a.devices) }

// Close releases the buses opened by OpenHMCArray.
func (a *HMCArray) Close() error {
	var first error
	for _, b := range a.buses {
		if err := b.Close(); err != nil && first == nil {
			first = err
		}
	}
	a.buses = nil
	return first
}
