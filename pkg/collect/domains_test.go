package collect

import (
	"testing"

	"github.com/nettally/nettally/pkg/model"
)

// ============================================================================
// Component Classification Tests
// ============================================================================

func TestClassifyComponent(t *testing.T) {
	tests := []struct {
		name  string
		descr string
		want  model.ComponentType
	}{
		{"PS-1", "AC Power Supply", model.ComponentPSU},
		{"Fan Tray 1", "", model.ComponentFan},
		{"Gi1/0/49", "10G SFP+ transceiver", model.ComponentSFP},
		{"Te1/1", "QSFP 40G", model.ComponentSFP},
		{"Switch 1 Slot 1", "Supervisor Module", model.ComponentModule},
		{"Chassis", "WS-C3850-48T", model.ComponentOther},
	}

	for _, tt := range tests {
		if got := classifyComponent(tt.name, tt.descr); got != tt.want {
			t.Errorf("classifyComponent(%q, %q) = %s, want %s", tt.name, tt.descr, got, tt.want)
		}
	}
}

func TestMergeDescriptions(t *testing.T) {
	recs := []model.InterfaceRecord{
		{Name: "Gi0/1"},
		{Name: "Gi0/2", Description: "old", HasDescription: true},
		{Name: "Gi0/3"},
	}
	rows := []map[string]string{
		{"interface": "GigabitEthernet0/1", "description": "uplink"},
		{"port": "Gi0/2", "description": ""},
	}

	mergeDescriptions(recs, rows)

	if recs[0].Description != "uplink" || !recs[0].HasDescription {
		t.Errorf("Gi0/1 not merged: %+v", recs[0])
	}
	// An empty description in the snapshot means "clear it", not "leave it".
	if recs[1].Description != "" || !recs[1].HasDescription {
		t.Errorf("Gi0/2 not cleared: %+v", recs[1])
	}
	if recs[2].HasDescription {
		t.Errorf("Gi0/3 should be untouched: %+v", recs[2])
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "  ", "x", "y"); got != "x" {
		t.Errorf("got %q, want x", got)
	}
	if got := firstNonEmpty("", " "); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
