package fields

import "testing"

// ============================================================================
// Field Registry Tests
// ============================================================================

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default registry invalid: %v", err)
	}
}

func TestColumnsOrdered(t *testing.T) {
	cols := Default().Columns("mac")
	want := []string{"device", "interface", "mac_display", "vlan", "type", "port_status"}
	if len(cols) != len(want) {
		t.Fatalf("columns = %v, want %v", cols, want)
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Errorf("column %d = %q, want %q", i, cols[i], want[i])
		}
	}
}

// Reverse is a left inverse of DisplayName on enabled fields, modulo case.
func TestReverseMapping(t *testing.T) {
	r := Default()
	for _, kind := range []string{"device", "interface", "mac", "neighbor", "inventory", "ip"} {
		for _, field := range r.Columns(kind) {
			display := r.DisplayName(kind, field)
			got, ok := r.Reverse(kind, display)
			if !ok || got != field {
				t.Errorf("%s: Reverse(%q) = (%q, %v), want (%q, true)", kind, display, got, ok, field)
			}
			// Case folding must not matter.
			if got, _ := r.Reverse(kind, display); got != field {
				t.Errorf("%s: case-folded reverse of %q failed", kind, display)
			}
		}
	}
}

func TestReverseUnknown(t *testing.T) {
	r := Default()
	if _, ok := r.Reverse("interface", "No Such Column"); ok {
		t.Error("expected unknown display name to fail")
	}
	if _, ok := r.Reverse("nope", "Device"); ok {
		t.Error("expected unknown kind to fail")
	}
	// Disabled fields do not reverse-map.
	if _, ok := r.Reverse("interface", "Duplex"); ok {
		t.Error("expected disabled field to be invisible to Reverse")
	}
}

func TestCompareFields(t *testing.T) {
	got := Default().CompareFields("interface")
	want := map[string]bool{
		"description": true, "enabled": true, "mtu": true, "speed": true,
		"duplex": true, "mode": true, "access_vlan": true, "allowed_vlans": true,
		"lag_parent": true,
	}
	if len(got) != len(want) {
		t.Fatalf("CompareFields = %v, want keys %v", got, want)
	}
	for _, f := range got {
		if !want[f] {
			t.Errorf("unexpected compare field %q", f)
		}
	}
}

func TestClearOnEmpty(t *testing.T) {
	r := Default()
	if !r.ClearOnEmpty("interface", "mode") {
		t.Error("mode should clear on empty")
	}
	if !r.ClearOnEmpty("interface", "description") {
		t.Error("description should clear on empty")
	}
	if r.ClearOnEmpty("interface", "mtu") {
		t.Error("mtu should not clear on empty")
	}
}

func TestValidateCatchesDuplicates(t *testing.T) {
	r := Registry{
		"thing": {
			"a": {Enabled: true, DisplayName: "Name", Order: 1},
			"b": {Enabled: true, DisplayName: "name", Order: 2},
		},
	}
	if err := r.Validate(); err == nil {
		t.Error("expected duplicate display names to fail validation")
	}
}
