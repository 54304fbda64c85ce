// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		json    bool
		wantErr bool
	}{
		{"console info", "info", false, false},
		{"json debug", "debug", true, false},
		{"bad level", "loud", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLogger(tt.level, tt.json)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Cycles.Inc()
	m.Coverage.Set(42.5)
	m.Anomalies.WithLabelValues("HIGH").Set(3)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				values[mf.GetName()] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				values[mf.GetName()] = metric.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, values["epistemic_audit_cycles_total"])
	assert.Equal(t, 42.5, values["epistemic_audit_coverage_score"])
	assert.Equal(t, 3.0, values["epistemic_audit_anomalies"])

	assert.Panics(t, func() { NewMetrics(reg) }, "registering twice")
}
