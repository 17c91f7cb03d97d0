// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"os"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/magcal/internal/config"
	"github.com/relabs-tech/magcal/internal/sensors"
)

// RunRegisterDebug dumps the registers of every configured HMC5983 so
// wiring and gain settings can be checked before a calibration.
func RunRegisterDebug() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("register debug: config not initialized")
	}
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("register debug: periph host init: %w", err)
	}

	for i, d := range hmcDevices(cfg) {
		if err := dumpHMC(os.Stdout, i, d, hmcOpts(cfg)); err != nil {
			fmt.Fprintf(os.Stdout, "[HMC %d] bus=%s addr=0x%02X: %v\n", i, d.Bus, d.Addr, err)
		}
	}
	return nil
}

func dumpHMC(w io.Writer, instance int, d sensors.I2CDevice, opts sensors.HMC5983Opts) error {
	bus, err := i2creg.Open(d.Bus)
	if err != nil {
		return err
	}
	defer bus.Close()

	opts.Addr = d.Addr
	dev, err := sensors.NewHMC5983(bus, opts)
	if err != nil {
		return err
	}
	regs, err := dev.Registers()
	if err != nil {
		return err
	}
	xy, z := dev.Gain()
	fmt.Fprintf(w, "[HMC %d] bus=%s addr=0x%02X\n%s", instance, d.Bus, d.Addr, describeRegisters(regs, xy, z))
	return nil
}

func describeRegisters(r sensors.HMC5983Registers, gainXY, gainZ int) string {
	mode := "continuous"
	switch r.Mode & 0x03 {
	case 0x01:
		mode = "single"
	case 0x02, 0x03:
		mode = "idle"
	}
	return fmt.Sprintf(
		"  ID      %q\n"+
			"  CRA     0x%02X (avg=%d odr_bits=%03b)\n"+
			"  CRB     0x%02X (gain code %d, %d/%d LSB/Ga)\n"+
			"  MODE    0x%02X (%s)\n"+
			"  STATUS  0x%02X (ready=%t lock=%t)\n"+
			"  DATA    % X\n",
		r.ID[:],
		r.CRA, 1<<((r.CRA>>5)&0x03), (r.CRA>>2)&0x07,
		r.CRB, r.CRB>>5, gainXY, gainZ,
		r.Mode, mode,
		r.Status, r.Status&0x01 != 0, r.Status&0x02 != 0,
		r.Data[:],
	)
}
