package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewWithRegistryRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.PushesTotal.WithLabelValues("panel-a", "blank").Inc()
	m.ErrorsTotal.WithLabelValues("panel-a", "generic").Inc()
	m.GenerationID.WithLabelValues("panel-a").Set(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected at least one registered metric family")
	}

	var found bool
	for _, f := range families {
		if f.GetName() == "pixel_pushes_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected pixel_pushes_total to be registered and gathered")
	}
}

func TestGenerationIDGaugeReflectsSetValue(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)
	m.GenerationID.WithLabelValues("panel-a").Set(42)

	var mf dto.Metric
	if err := m.GenerationID.WithLabelValues("panel-a").Write(&mf); err != nil {
		t.Fatalf("write: %v", err)
	}
	if mf.GetGauge().GetValue() != 42 {
		t.Fatalf("expected gauge value 42, got %v", mf.GetGauge().GetValue())
	}
}
