package cli

import (
	"strings"
	"testing"
)

// ============================================================
// DotPad
// ============================================================

func TestDotPad(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		width    int
		expected string
	}{
		{
			name:     "step id",
			input:    "sync-interfaces",
			width:    32,
			expected: "sync-interfaces " + strings.Repeat(".", 16),
		},
		{
			name:     "short id",
			input:    "sync",
			width:    12,
			expected: "sync " + strings.Repeat(".", 7),
		},
		{
			name:     "name fills width minus one",
			input:    "collect-lldp",
			width:    13,
			expected: "collect-lldp",
		},
		{
			name:     "name equals width",
			input:    "collect-mac",
			width:    11,
			expected: "collect-mac",
		},
		{
			name:     "name longer than width",
			input:    "collect-ip-addresses",
			width:    8,
			expected: "collect-ip-addresses",
		},
		{
			name:     "zero width",
			input:    "sync-vlans",
			width:    0,
			expected: "sync-vlans",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DotPad(tt.input, tt.width)
			if got != tt.expected {
				t.Errorf("DotPad(%q, %d) = %q, want %q", tt.input, tt.width, got, tt.expected)
			}
		})
	}
}

func TestDotPadResultLength(t *testing.T) {
	result := DotPad("sync-cables", 32)
	if len(result) != 32 {
		t.Errorf("DotPad(%q, 32) len = %d, want 32", "sync-cables", len(result))
	}
}

// ============================================================
// Colors
// ============================================================

func TestColorFunctions(t *testing.T) {
	old := colorEnabled
	colorEnabled = true
	defer func() { colorEnabled = old }()

	tests := []struct {
		name   string
		fn     func(string) string
		prefix string
	}{
		{"Green", Green, "\033[32m"},
		{"Yellow", Yellow, "\033[33m"},
		{"Red", Red, "\033[31m"},
		{"Bold", Bold, "\033[1m"},
		{"Dim", Dim, "\033[2m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn("eth0")
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("%s should start with %q", tt.name, tt.prefix)
			}
			if !strings.Contains(got, "eth0") {
				t.Errorf("%s should contain the input string", tt.name)
			}
			if !strings.HasSuffix(got, "\033[0m") {
				t.Errorf("%s should end with reset code", tt.name)
			}
		})
	}
}

func TestColorDisabled(t *testing.T) {
	old := colorEnabled
	colorEnabled = false
	defer func() { colorEnabled = old }()

	if got := Green("completed"); got != "completed" {
		t.Errorf("Green with color disabled = %q, want plain string", got)
	}
}

func TestStatusColor(t *testing.T) {
	old := colorEnabled
	colorEnabled = true
	defer func() { colorEnabled = old }()

	tests := []struct {
		status string
		code   string
	}{
		{"success", "\033[32m"},
		{"completed", "\033[32m"},
		{"partial", "\033[33m"},
		{"skipped", "\033[33m"},
		{"pending", "\033[33m"},
		{"running", "\033[33m"},
		{"error", "\033[31m"},
		{"failed", "\033[31m"},
		{"cancelled", "\033[31m"},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			got := StatusColor(tt.status)
			if !strings.HasPrefix(got, tt.code) {
				t.Errorf("StatusColor(%q) = %q, want prefix %q", tt.status, got, tt.code)
			}
			if !strings.Contains(got, tt.status) {
				t.Errorf("StatusColor(%q) should contain the status text", tt.status)
			}
		})
	}
}
