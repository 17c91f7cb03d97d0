// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// I2C register map for HMC5983/HMC5883L.
const (
	hmcRegCRA    = 0x00
	hmcRegCRB    = 0x01
	hmcRegMode   = 0x02
	hmcRegData   = 0x03 // X MSB, X LSB, Z MSB, Z LSB, Y MSB, Y LSB
	hmcRegStatus = 0x09
	hmcRegIDA    = 0x0A
)

// HMC5983DefaultAddr is the fixed I2C address of the chip.
const HMC5983DefaultAddr = 0x1E

// Typical LSB/Gauss per gain code, from the datasheet.
var (
	hmcGainXY = []int{1370, 1090, 820, 660, 440, 390, 330, 230}
	hmcGainZ  = []int{1330, 980, 660, 600, 400, 355, 295, 205}
)

// HMC5983Opts holds initialization options.
//
// ODRHz: output data rate in Hz (3, 7, 15, 30 or 75).
// AvgSamples: sample averaging (1, 2, 4, 8).
// GainCode: 0..7 gain selection.
// Mode: "continuous" or "single".
// Addr: I2C address, default 0x1E.
type HMC5983Opts struct {
	ODRHz      int
	AvgSamples int
	GainCode   int
	Mode       string
	Addr       uint16
}

// HMC5983 is one magnetometer on an I2C bus. Sense returns µT×10.
//
// NOTE: the chip outputs data in order X,Z,Y.
type HMC5983 struct {
	dev        i2c.Dev
	single     bool
	lsbPerGaXY int
	lsbPerGaZ  int
}

// NewHMC5983 configures the device and waits for it to settle.
func NewHMC5983(bus i2c.Bus, opts HMC5983Opts) (*HMC5983, error) {
	addr := opts.Addr
	if addr == 0 {
		addr = HMC5983DefaultAddr
	}
	gc := opts.GainCode
	if gc < 0 || gc > 7 {
		gc = 1 // ≈1.3 Gauss
	}

	d := &HMC5983{
		dev:        i2c.Dev{Addr: addr, Bus: bus},
		single:     opts.Mode == "single",
		lsbPerGaXY: hmcGainXY[gc],
		lsbPerGaZ:  hmcGainZ[gc],
	}

	// CRA: averaging (bits 6..5), ODR (bits 4..2), normal bias.
	var cra byte
	switch opts.AvgSamples {
	case 8:
		cra |= 0b11 << 5
	case 4:
		cra |= 0b10 << 5
	case 2:
		cra |= 0b01 << 5
	}
	switch opts.ODRHz {
	case 75:
		cra |= 0b110 << 2
	case 30:
		cra |= 0b100 << 2
	case 7:
		cra |= 0b010 << 2
	case 3:
		cra |= 0b001 << 2
	default: // 15Hz
		cra |= 0b011 << 2
	}
	if err := d.writeReg(hmcRegCRA, cra); err != nil {
		return nil, fmt.Errorf("hmc5983 0x%02X: write CRA: %w", addr, err)
	}
	if err := d.writeReg(hmcRegCRB, byte(gc)<<5); err != nil {
		return nil, fmt.Errorf("hmc5983 0x%02X: write CRB: %w", addr, err)
	}
	if err := d.writeReg(hmcRegMode, d.modeByte()); err != nil {
		return nil, fmt.Errorf("hmc5983 0x%02X: write MODE: %w", addr, err)
	}
	time.Sleep(10 * time.Millisecond)
	return d, nil
}

func (d *HMC5983) modeByte() byte {
	if d.single {
		return 0x01
	}
	return 0x00
}

// ID returns the three identity bytes, expected 'H','4','3'.
func (d *HMC5983) ID() ([3]byte, error) {
	var id [3]byte
	if err := d.readRegBlock(hmcRegIDA, id[:]); err != nil {
		return id, err
	}
	return id, nil
}

// SenseRaw returns X,Y,Z counts. In single mode it triggers a conversion first.
func (d *HMC5983) SenseRaw() (int16, int16, int16, error) {
	if d.single {
		if err := d.writeReg(hmcRegMode, 0x01); err != nil {
			return 0, 0, 0, err
		}
		time.Sleep(7 * time.Millisecond)
	}
	data := make([]byte, 6)
	if err := d.readRegBlock(hmcRegData, data); err != nil {
		return 0, 0, 0, err
	}
	x := int16(data[0])<<8 | int16(data[1])
	z := int16(data[2])<<8 | int16(data[3])
	y := int16(data[4])<<8 | int16(data[5])
	return x, y, z, nil
}

// Sense reads and scales to µT×10.
func (d *HMC5983) Sense() (int16, int16, int16, error) {
	rx, ry, rz, err := d.SenseRaw()
	if err != nil {
		return 0, 0, 0, err
	}
	return CountsToMicroTesla10(rx, d.lsbPerGaXY),
		CountsToMicroTesla10(ry, d.lsbPerGaXY),
		CountsToMicroTesla10(rz, d.lsbPerGaZ),
		nil
}

// Status reads the status register.
func (d *HMC5983) Status() (byte, error) {
	b := make([]byte, 1)
	if err := d.readRegBlock(hmcRegStatus, b); err != nil {
		return 0, err
	}
	return b[0], nil
}

// HMC5983Registers is a snapshot of the configuration and status registers.
type HMC5983Registers struct {
	CRA    byte
	CRB    byte
	Mode   byte
	Data   [6]byte
	Status byte
	ID     [3]byte
}

// Registers reads registers 0x00 through 0x0C in one transaction.
func (d *HMC5983) Registers() (HMC5983Registers, error) {
	var r HMC5983Registers
	buf := make([]byte, 13)
	if err := d.readRegBlock(hmcRegCRA, buf); err != nil {
		return r, err
	}
	r.CRA, r.CRB, r.Mode = buf[hmcRegCRA], buf[hmcRegCRB], buf[hmcRegMode]
	copy(r.Data[:], buf[hmcRegData:hmcRegData+6])
	r.Status = buf[hmcRegStatus]
	copy(r.ID[:], buf[hmcRegIDA:hmcRegIDA+3])
	return r, nil
}

// Gain returns the configured LSB/Gauss for the XY and Z axes.
func (d *HMC5983) Gain() (xy, z int) { return d.lsbPerGaXY, d.lsbPerGaZ }

func (d *HMC5983) writeReg(addr byte, val byte) error {
	return d.dev.Tx([]byte{addr, val}, nil)
}

func (d *HMC5983) readRegBlock(addr byte, out []byte) error {
	if len(out) == 0 {
		return errors.New("hmc5983: readRegBlock: empty buffer")
	}
	return d.dev.Tx([]byte{addr}, out)
}

// CountsToMicroTesla10 converts raw counts to µT×10: counts/LSB gives
// Gauss, one Gauss is 100 µT.
func CountsToMicroTesla10(counts int16, lsbPerGauss int) int16 {
	g := float64(counts) / float64(lsbPerGauss)
	return int16(g * 1000.0)
}
