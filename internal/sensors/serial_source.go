// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/magcal/internal/magcal"
	"github.com/relabs-tech/magcal/internal/monitoring"
	"github.com/relabs-tech/magcal/internal/timeutil"
)

// SerialSource reads NMEA XDR sentences from a serial port. Each sentence
// carries transducers named MAGX<i>, MAGY<i> and MAGZ<i> with values in
// µT×10; an instance is updated once all three axes are present in one
// sentence.
type SerialSource struct {
	*latest
	port io.ReadWriteCloser
}

// OpenSerialSource opens the port and starts reading in the background.
func OpenSerialSource(portName string, baud uint, instances int, clock timeutil.Clock, staleAfter time.Duration) (*SerialSource, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("serial source: open %s: %w", portName, err)
	}
	monitoring.Logf("serial source: port opened on %s at %d baud", portName, baud)

	s := &SerialSource{latest: newLatest(instances, clock, staleAfter), port: port}
	go func() {
		if err := s.consume(port); err != nil {
			monitoring.Logf("serial source: read error: %v", err)
		}
	}()
	return s, nil
}

func (s *SerialSource) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}

// consume parses sentences until r is exhausted.
func (s *SerialSource) consume(r io.Reader) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); strings.HasPrefix(line, "$") {
			s.handleLine(line)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (s *SerialSource) handleLine(line string) {
	sentence, err := nmea.Parse(line)
	if err != nil {
		return
	}
	if sentence.DataType() != nmea.TypeXDR {
		return
	}
	xdr := sentence.(nmea.XDR)

	type axes struct {
		v    magcal.Vector3
		seen int
	}
	fields := map[int]*axes{}
	for _, m := range xdr.Measurements {
		name := strings.ToUpper(m.TransducerName)
		if len(name) < 5 || !strings.HasPrefix(name, "MAG") {
			continue
		}
		instance, err := strconv.Atoi(name[4:])
		if err != nil {
			continue
		}
		a, ok := fields[instance]
		if !ok {
			a = &axes{}
			fields[instance] = a
		}
		switch name[3] {
		case 'X':
			a.v.X = m.Value
			a.seen |= 1
		case 'Y':
			a.v.Y = m.Value
			a.seen |= 2
		case 'Z':
			a.v.Z = m.Value
			a.seen |= 4
		}
	}
	for instance, a := range fields {
		if a.seen == 7 {
			s.set(instance, a.v)
		}
	}
}
