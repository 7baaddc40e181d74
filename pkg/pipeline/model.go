// Package pipeline declares workflows as step DAGs over collect, sync, and
// export operations, and runs them with dependency gating and cooperative
// cancellation.
package pipeline

import (
	"fmt"

	"github.com/nettally/nettally/pkg/util"
)

// StepKind is what a step does.
type StepKind string

const (
	StepCollect StepKind = "collect"
	StepSync    StepKind = "sync"
	StepExport  StepKind = "export"
)

// Collection targets a step may name.
const (
	TargetDeviceInfo  = "device_info"
	TargetInterfaces  = "interfaces"
	TargetMACTable    = "mac_table"
	TargetLLDP        = "lldp"
	TargetCDP         = "cdp"
	TargetNeighbors   = "neighbors"
	TargetInventory   = "inventory"
	TargetConfigs     = "configs"
	TargetDevices     = "devices"
	TargetIPAddresses = "ip_addresses"
	TargetVLANs       = "vlans"
	TargetCables      = "cables"
	TargetAll         = "all"
)

// Step is one unit of a pipeline.
type Step struct {
	ID        string                 `yaml:"id" json:"id"`
	Kind      StepKind               `yaml:"kind" json:"kind"`
	Target    string                 `yaml:"target" json:"target"`
	Enabled   bool                   `yaml:"enabled" json:"enabled"`
	Options   map[string]interface{} `yaml:"options,omitempty" json:"options,omitempty"`
	DependsOn []string               `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
}

// Pipeline is a declared workflow. Step order is authoritative: the executor
// never re-sorts it.
type Pipeline struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Steps       []Step `yaml:"steps" json:"steps"`
}

// EnabledSteps returns the steps that will actually run, in declared order.
func (p *Pipeline) EnabledSteps() []Step {
	var steps []Step
	for _, s := range p.Steps {
		if s.Enabled {
			steps = append(steps, s)
		}
	}
	return steps
}

// Validate checks ids, dependency references, and acyclicity. Steps listed
// before their dependencies are legal but draw a warning, since the gate
// will skip them at run time.
func (p *Pipeline) Validate() error {
	vb := &util.ValidationBuilder{}
	if p.ID == "" {
		vb.AddErrorf("pipeline id is required")
	}
	if len(p.Steps) == 0 {
		vb.AddErrorf("pipeline %s has no steps", p.ID)
	}

	enabled := make(map[string]int) // id -> declared position
	seen := make(map[string]bool)
	for i, s := range p.Steps {
		if s.ID == "" {
			vb.AddErrorf("step %d has no id", i)
			continue
		}
		if seen[s.ID] {
			vb.AddErrorf("duplicate step id %q", s.ID)
		}
		seen[s.ID] = true
		switch s.Kind {
		case StepCollect, StepSync, StepExport:
		default:
			vb.AddErrorf("step %s: unknown kind %q", s.ID, s.Kind)
		}
		if s.Enabled {
			enabled[s.ID] = i
		}
	}

	for i, s := range p.Steps {
		if !s.Enabled {
			continue
		}
		for _, dep := range s.DependsOn {
			pos, ok := enabled[dep]
			if !ok {
				vb.AddErrorf("step %s depends on missing or disabled step %q", s.ID, dep)
				continue
			}
			if pos > i {
				vb.AddWarningf("step %s is declared before its dependency %q and will be skipped", s.ID, dep)
			}
		}
	}

	if cycle := findCycle(p.EnabledSteps()); cycle != "" {
		vb.AddErrorf("dependency cycle through step %q", cycle)
	}
	return vb.Build()
}

// findCycle returns the id of a step on a dependency cycle, or "".
func findCycle(steps []Step) string {
	deps := make(map[string][]string, len(steps))
	for _, s := range steps {
		deps[s.ID] = s.DependsOn
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(deps))

	var visit func(id string) string
	visit = func(id string) string {
		color[id] = gray
		for _, dep := range deps[id] {
			if _, known := deps[dep]; !known {
				continue
			}
			switch color[dep] {
			case gray:
				return dep
			case white:
				if hit := visit(dep); hit != "" {
					return hit
				}
			}
		}
		color[id] = black
		return ""
	}

	for _, s := range steps {
		if color[s.ID] == white {
			if hit := visit(s.ID); hit != "" {
				return hit
			}
		}
	}
	return ""
}

// OptionString reads a string option with a default.
func (s *Step) OptionString(key, def string) string {
	if v, ok := s.Options[key]; ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return def
}

// OptionBool reads a boolean option with a default.
func (s *Step) OptionBool(key string, def bool) bool {
	if v, ok := s.Options[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func (s *Step) String() string {
	return fmt.Sprintf("%s(%s %s)", s.ID, s.Kind, s.Target)
}
