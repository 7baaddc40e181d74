package pipeline

import "testing"

func step(id string, kind StepKind, target string, deps ...string) Step {
	return Step{ID: id, Kind: kind, Target: target, Enabled: true, DependsOn: deps}
}

// ============================================================================
// Validation Tests
// ============================================================================

func TestValidateOK(t *testing.T) {
	p := &Pipeline{ID: "nightly", Enabled: true, Steps: []Step{
		step("collect_if", StepCollect, TargetInterfaces),
		step("sync_if", StepSync, TargetInterfaces, "collect_if"),
	}}
	if err := p.Validate(); err != nil {
		t.Fatalf("valid pipeline rejected: %v", err)
	}
}

func TestValidateMissingDep(t *testing.T) {
	p := &Pipeline{ID: "p", Steps: []Step{
		step("sync_if", StepSync, TargetInterfaces, "nope"),
	}}
	if err := p.Validate(); err == nil {
		t.Error("missing dependency accepted")
	}
}

func TestValidateDisabledDep(t *testing.T) {
	disabled := step("collect_if", StepCollect, TargetInterfaces)
	disabled.Enabled = false
	p := &Pipeline{ID: "p", Steps: []Step{
		disabled,
		step("sync_if", StepSync, TargetInterfaces, "collect_if"),
	}}
	if err := p.Validate(); err == nil {
		t.Error("dependency on disabled step accepted")
	}
}

func TestValidateCycle(t *testing.T) {
	p := &Pipeline{ID: "p", Steps: []Step{
		step("a", StepCollect, TargetInterfaces, "b"),
		step("b", StepSync, TargetInterfaces, "a"),
	}}
	if err := p.Validate(); err == nil {
		t.Error("cyclic dependency accepted")
	}
}

func TestValidateSelfCycle(t *testing.T) {
	p := &Pipeline{ID: "p", Steps: []Step{
		step("a", StepCollect, TargetInterfaces, "a"),
	}}
	if err := p.Validate(); err == nil {
		t.Error("self-dependency accepted")
	}
}

func TestValidateDuplicateID(t *testing.T) {
	p := &Pipeline{ID: "p", Steps: []Step{
		step("a", StepCollect, TargetInterfaces),
		step("a", StepSync, TargetInterfaces),
	}}
	if err := p.Validate(); err == nil {
		t.Error("duplicate step id accepted")
	}
}

// Out-of-order declaration is legal; the gate handles it at run time.
func TestValidateOutOfOrderIsWarningOnly(t *testing.T) {
	p := &Pipeline{ID: "p", Steps: []Step{
		step("sync_if", StepSync, TargetInterfaces, "collect_if"),
		step("collect_if", StepCollect, TargetInterfaces),
	}}
	if err := p.Validate(); err != nil {
		t.Errorf("out-of-order steps must validate: %v", err)
	}
}

func TestOptionAccessors(t *testing.T) {
	s := Step{Options: map[string]interface{}{"format": "csv", "dry_run": true}}
	if got := s.OptionString("format", "json"); got != "csv" {
		t.Errorf("OptionString = %q", got)
	}
	if got := s.OptionString("missing", "json"); got != "json" {
		t.Errorf("OptionString default = %q", got)
	}
	if !s.OptionBool("dry_run", false) {
		t.Error("OptionBool lost the flag")
	}
}
