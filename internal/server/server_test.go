// SPDX-License-Identifier: MIT
package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"spectrallog/internal/metrics"
	"spectrallog/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	state := "pacing"
	s := New(":0", transport.NewLatest(), nil, func() string { return state })

	rec := get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","state":"pacing"}`, rec.Body.String())

	state = "failed"
	rec = get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSnapshot(t *testing.T) {
	latest := transport.NewLatest()
	s := New(":0", latest, nil, nil)

	rec := get(t, s.Handler(), "/snapshot")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, latest.Send(&transport.Snapshot{
		RunID:     "abc",
		Cycle:     2,
		Timestamp: time.Unix(0, 0).UTC(),
		FirstBin:  3,
		Averages:  []float32{1, 2},
		Counts:    []uint64{62, 62},
	}))

	rec = get(t, s.Handler(), "/snapshot")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got transport.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "abc", got.RunID)
	assert.Equal(t, []float32{1, 2}, got.Averages)
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.CyclesTotal.Inc()
	s := New(":0", transport.NewLatest(), nil, nil)

	rec := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "spectrallog_cycles_total"))
}

func TestStreamMountedOnlyWhenGiven(t *testing.T) {
	s := New(":0", transport.NewLatest(), nil, nil)
	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/ws").Code)

	stream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	s = New(":0", transport.NewLatest(), stream, nil)
	assert.Equal(t, http.StatusTeapot, get(t, s.Handler(), "/ws").Code)
}
