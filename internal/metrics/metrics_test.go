package metrics

import (
	"testing"
)

func TestNew(t *testing.T) {
	m := New("0.1.0", "go1.26.0")
	if m == nil {
		t.Fatal("New returned nil")
	}
	if m.Registry == nil {
		t.Fatal("Registry is nil")
	}
}

func TestMetricsIsolation(t *testing.T) {
	m1 := New("0.1.0", "go1.26.0")
	m2 := New("0.2.0", "go1.26.0")

	m1.EdgesAppliedTotal.WithLabelValues("accepted").Inc()

	families, err := m2.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "overlay_edges_applied_total" {
			for _, metric := range f.GetMetric() {
				if metric.GetCounter().GetValue() != 0 {
					t.Error("m2 registry saw m1 counter value; registries are not isolated")
				}
			}
		}
	}
}

func TestEdgeAppliedLabelsOutcome(t *testing.T) {
	m := New("0.1.0", "go1.26.0")
	m.EdgeApplied(true)
	m.EdgeApplied(false)

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	var found map[string]float64
	for _, f := range families {
		if f.GetName() == "overlay_edges_applied_total" {
			found = map[string]float64{}
			for _, metric := range f.GetMetric() {
				for _, l := range metric.GetLabel() {
					if l.GetName() == "outcome" {
						found[l.GetValue()] = metric.GetCounter().GetValue()
					}
				}
			}
		}
	}
	if found["accepted"] != 1 || found["rejected"] != 1 {
		t.Fatalf("outcome counts = %v, want accepted=1 rejected=1", found)
	}
}
