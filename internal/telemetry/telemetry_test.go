// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/magcal/internal/magcal"
)

func TestConsoleReporter(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleReporter(&buf, false)

	c.Report(magcal.Progress{Stage: magcal.StageSampled, Instance: 0, Samples: 3})
	c.Report(magcal.Progress{Stage: magcal.StagePassed, Instance: 0, PassCount: 1})
	assert.Equal(t, "[MAG] mag[0] passed 1/2\n", buf.String())

	buf.Reset()
	c.Verbose = true
	c.Report(magcal.Progress{Stage: magcal.StageSampled, Instance: 1, Samples: 3})
	assert.Equal(t, "[MAG] mag[1] sample 3/100\n", buf.String())
}

func TestMulti(t *testing.T) {
	var got []string
	rec := func(name string) magcal.Reporter {
		return magcal.ReporterFunc(func(p magcal.Progress) { got = append(got, name+":"+string(p.Stage)) })
	}
	Multi{rec("a"), nil, rec("b")}.Report(magcal.Progress{Stage: magcal.StageFitted})
	assert.Equal(t, []string{"a:fitted", "b:fitted"}, got)
}

type fakeToken struct {
	mqtt.Token
	err error
}

func (t fakeToken) Wait() bool   { return true }
func (t fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.msgs = append(f.msgs, published{topic: topic, retained: retained, payload: payload.([]byte)})
	return fakeToken{err: f.err}
}

func TestMQTTReporter(t *testing.T) {
	pub := &fakePublisher{}
	r := NewMQTTReporter(pub, "inertial/calibration/progress", "inertial/calibration/result")

	r.Report(magcal.Progress{Stage: magcal.StageFitted, Instance: 1, Round: 2, Fitness: 0.25})
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "inertial/calibration/progress", pub.msgs[0].topic)
	assert.False(t, pub.msgs[0].retained)

	var p magcal.Progress
	require.NoError(t, json.Unmarshal(pub.msgs[0].payload, &p))
	assert.Equal(t, magcal.StageFitted, p.Stage)
	assert.Equal(t, 0.25, p.Fitness)

	rec := NewRecord("sim", magcal.Result{Success: true, Rounds: 2}, nil, time.Unix(0, 0))
	require.NoError(t, r.PublishResult(rec))
	require.Len(t, pub.msgs, 2)
	assert.True(t, pub.msgs[1].retained)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(pub.msgs[1].payload, &decoded))
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, "sim", decoded["source"])

	pub.err = errors.New("not connected")
	assert.ErrorContains(t, r.PublishResult(rec), "not connected")
}

func TestNewRecordCarriesError(t *testing.T) {
	rec := NewRecord("hmc5983", magcal.Result{}, magcal.ErrBudgetExhausted, time.Unix(10, 0))
	assert.Equal(t, RecordVersion, rec.Version)
	assert.Equal(t, magcal.ErrBudgetExhausted.Error(), rec.Error)
	assert.Equal(t, time.UTC, rec.Timestamp.Location())
}

func TestHubStatus(t *testing.T) {
	h := NewHub()

	w := httptest.NewRecorder()
	h.HandleStatus(w, httptest.NewRequest(http.MethodGet, "/api/calibration", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	h.Report(magcal.Progress{Stage: magcal.StageFitted, Instance: 1, Fitness: 2})
	h.Report(magcal.Progress{Stage: magcal.StagePassed, Instance: 0, PassCount: 1})
	h.Report(magcal.Progress{Stage: magcal.StageCollecting, Instance: -1, Round: 3})

	w = httptest.NewRecorder()
	h.HandleStatus(w, httptest.NewRequest(http.MethodGet, "/api/calibration", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var st Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	require.Len(t, st.Instances, 2)
	assert.Equal(t, 0, st.Instances[0].Instance)
	assert.Equal(t, magcal.StageFitted, st.Instances[1].Stage)
	require.NotNil(t, st.Session)
	assert.Equal(t, 3, st.Session.Round)
	assert.Nil(t, st.Result)
}

func TestHubWebsocket(t *testing.T) {
	h := NewHub()
	h.Report(magcal.Progress{Stage: magcal.StagePassed, Instance: 0, PassCount: 1})

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg WSResponse
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "snapshot", msg.Type)
	require.NotNil(t, msg.Status)
	require.Len(t, msg.Status.Instances, 1)
	assert.Equal(t, 1, msg.Status.Instances[0].PassCount)

	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.clients) == 1
	}, 5*time.Second, 10*time.Millisecond)

	h.Report(magcal.Progress{Stage: magcal.StageComplete, Instance: 0})
	msg = WSResponse{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "progress", msg.Type)
	require.NotNil(t, msg.Progress)
	assert.Equal(t, magcal.StageComplete, msg.Progress.Stage)

	h.PublishResult(NewRecord("sim", magcal.Result{Success: true}, nil, time.Unix(0, 0)))
	msg = WSResponse{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "result", msg.Type)
	require.NotNil(t, msg.Results)
	assert.True(t, msg.Results.Success)
}
