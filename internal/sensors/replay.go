// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/relabs-tech/magcal/internal/mag"
	"github.com/relabs-tech/magcal/internal/magcal"
)

// ReplaySource plays back recorded samples, one line of JSON mag.Sample
// per reading. Each Read advances every instance to its next recorded
// sample; an instance whose recording has run out reads as unhealthy.
//
// The collector calls Read once per pass, not once per pending instance,
// so every instance moves one recorded sample per pass. With several
// instances the recording is consumed that many lines per pass.
type ReplaySource struct {
	samples [][]magcal.Vector3
	cursor  int
}

// LoadReplay reads a recording from path.
func LoadReplay(path string) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseReplay(f)
}

// ParseReplay reads a recording. The instance count is one more than the
// highest instance number seen.
func ParseReplay(r io.Reader) (*ReplaySource, error) {
	src := &ReplaySource{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var s mag.Sample
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			return nil, fmt.Errorf("invalid replay line %d: %w", lineNo, err)
		}
		if s.Instance < 0 {
			return nil, fmt.Errorf("invalid replay line %d: negative instance %d", lineNo, s.Instance)
		}
		for len(src.samples) <= s.Instance {
			src.samples = append(src.samples, nil)
		}
		src.samples[s.Instance] = append(src.samples[s.Instance],
			magcal.Vector3{X: float64(s.Mx), Y: float64(s.My), Z: float64(s.Mz)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(src.samples) == 0 {
		return nil, fmt.Errorf("replay contains no samples")
	}
	return src, nil
}

func (s *ReplaySource) Read() { s.cursor++ }

func (s *ReplaySource) Healthy(i int) bool {
	return s.cursor > 0 && s.cursor <= len(s.samples[i])
}

func (s *ReplaySource) Field(i int) magcal.Vector3 {
	if !s.Healthy(i) {
		return magcal.Vector3{}
	}
	return s.samples[i][s.cursor-1]
}

func (s *ReplaySource) Count() int { return len(s.samples) }
