// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/magcal/internal/config"
	"github.com/relabs-tech/magcal/internal/magcal"
	"github.com/relabs-tech/magcal/internal/sensors"
	"github.com/relabs-tech/magcal/internal/telemetry"
	"github.com/relabs-tech/magcal/internal/timeutil"
)

func TestRunCalibrationSim(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "magcal_config.txt")
	body := "MAG_SOURCE=sim\nMAG_INSTANCES=2\nCALIB_SAMPLE_INTERVAL=1\nCALIB_OUTPUT_DIR=" + filepath.Join(dir, "out") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))
	require.NoError(t, config.InitGlobal(cfgPath))

	require.NoError(t, RunCalibration())

	matches, err := filepath.Glob(filepath.Join(dir, "out", "*_mag_calibration.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	b, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	var rec telemetry.Record
	require.NoError(t, json.Unmarshal(b, &rec))
	assert.True(t, rec.Success)
	assert.Equal(t, config.SourceSim, rec.Source)
	assert.Equal(t, telemetry.RecordVersion, rec.Version)
	require.Len(t, rec.Instances, 2)
	for _, in := range rec.Instances {
		assert.True(t, in.Complete)
		assert.InDelta(t, 500, in.Radius, 25)
	}
}

func TestOpenSource(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))

	cfg := config.Default()
	cfg.MagSource = config.SourceSim
	cfg.MagInstances = 3
	src, closeSrc, err := openSource(cfg, nil, clock)
	require.NoError(t, err)
	closeSrc()
	assert.Equal(t, 3, src.Count())

	cfg.MagSource = config.SourceMQTT
	_, closeSrc, err = openSource(cfg, nil, clock)
	assert.ErrorContains(t, err, "requires MQTT_BROKER")
	assert.NotNil(t, closeSrc)

	cfg.MagSource = config.SourceReplay
	cfg.ReplayFile = filepath.Join(t.TempDir(), "missing.jsonl")
	_, _, err = openSource(cfg, nil, clock)
	assert.Error(t, err)

	replay := filepath.Join(t.TempDir(), "bench.jsonl")
	require.NoError(t, os.WriteFile(replay, []byte(`{"instance":0,"mx":1,"my":2,"mz":3}`+"\n"), 0o644))
	cfg.ReplayFile = replay
	src, _, err = openSource(cfg, nil, clock)
	require.NoError(t, err)
	assert.Equal(t, 1, src.Count())

	cfg.MagSource = "usb"
	_, _, err = openSource(cfg, nil, clock)
	assert.ErrorContains(t, err, "unknown MAG_SOURCE")
}

func TestSimSpheresDistinctOffsets(t *testing.T) {
	cfg := config.Default()
	cfg.MagInstances = 2
	spheres := simSpheres(cfg)
	require.Len(t, spheres, 2)
	assert.Equal(t, 500.0, spheres[0].Radius)
	assert.NotEqual(t, spheres[0].Center, spheres[1].Center)
}

func TestWriteRecord(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "calibration")
	rec := telemetry.NewRecord("replay", magcal.Result{Success: true, Rounds: 2}, nil,
		time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC))

	path, err := writeRecord(dir, rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2026-05-04T03-02-01Z_mag_calibration.json"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"source": "replay"`)
	assert.Contains(t, string(b), `"success": true`)
}

func TestWriteRecordNamesInUTC(t *testing.T) {
	dir := t.TempDir()
	rec := telemetry.NewRecord("sim", magcal.Result{}, nil,
		time.Date(2026, 5, 4, 5, 2, 1, 0, time.FixedZone("CEST", 2*3600)))

	path, err := writeRecord(dir, rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2026-05-04T03-02-01Z_mag_calibration.json"), path)
}

func TestPrintRecord(t *testing.T) {
	var buf bytes.Buffer
	rec := telemetry.NewRecord("sim", magcal.Result{
		Rounds: 10,
		Instances: []magcal.InstanceResult{
			{Instance: 0, Radius: 300, Offset: magcal.Vector3{X: 1, Y: 2, Z: 3}, Fitness: 26.5},
		},
	}, magcal.ErrBudgetExhausted, time.Unix(0, 0))

	printRecord(&buf, rec)
	out := buf.String()
	assert.Contains(t, out, "[CAL] FAILED source=sim rounds=10")
	assert.Contains(t, out, "[CAL] error: "+magcal.ErrBudgetExhausted.Error())
	assert.Contains(t, out, "mag[0] radius=  300.00")
}

func TestStatusLines(t *testing.T) {
	hub := telemetry.NewHub()
	assert.Equal(t, []string{"MAG CAL"}, statusLines(hub.Status()))

	hub.Report(magcal.Progress{Stage: magcal.StageCollecting, Instance: -1, Round: 2})
	hub.Report(magcal.Progress{Stage: magcal.StageSampled, Instance: 0, Samples: 42})
	hub.Report(magcal.Progress{Stage: magcal.StagePassed, Instance: 1, Fitness: 0.25, PassCount: 1})
	hub.Report(magcal.Progress{Stage: magcal.StageUnhealthy, Instance: 2})
	hub.Report(magcal.Progress{Stage: magcal.StageFault, Instance: 3})

	assert.Equal(t, []string{
		"MAG CAL r2 collect",
		"m0  42/100",
		"m1 f0.25 p1",
		"m2 unhealthy",
	}, statusLines(hub.Status()))

	hub.PublishResult(telemetry.NewRecord("sim", magcal.Result{
		Success:   true,
		Rounds:    2,
		Instances: []magcal.InstanceResult{{Instance: 0, Radius: 498.6, Fitness: 0.31}},
	}, nil, time.Unix(0, 0)))
	assert.Equal(t, []string{"CAL OK r2", "m0 R499 f0.31"}, statusLines(hub.Status()))
}

func TestRenderLines(t *testing.T) {
	blank := renderLines(nil)
	for _, b := range blank.Pix {
		require.Zero(t, b)
	}

	img := renderLines([]string{"MAG CAL"})
	lit := 0
	for y := 0; y < 64; y++ {
		for x := 0; x < 128; x++ {
			if img.BitAt(x, y) == image1bit.On {
				lit++
			}
		}
	}
	assert.Positive(t, lit)
}

func TestWebMuxStatus(t *testing.T) {
	hub := telemetry.NewHub()
	mux := newWebMux(hub)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/calibration", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	hub.Report(magcal.Progress{Stage: magcal.StageFitted, Instance: 0, Fitness: 3})
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/calibration", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestDescribeRegisters(t *testing.T) {
	out := describeRegisters(sensors.HMC5983Registers{
		CRA:    0x78,
		CRB:    0xA0,
		Mode:   0x01,
		Status: 0x01,
		ID:     [3]byte{'H', '4', '3'},
	}, 390, 355)

	assert.Contains(t, out, `ID      "H43"`)
	assert.Contains(t, out, "avg=8 odr_bits=110")
	assert.Contains(t, out, "gain code 5, 390/355 LSB/Ga")
	assert.Contains(t, out, "(single)")
	assert.Contains(t, out, "ready=true lock=false")
}
