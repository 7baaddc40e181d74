package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nettally/nettally/pkg/collect"
	"github.com/nettally/nettally/pkg/model"
	"github.com/nettally/nettally/pkg/reconcile"
	"github.com/nettally/nettally/pkg/util"
)

// StepStatus is the outcome of one executed (or gated) step.
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// StepResult records one step's outcome.
type StepResult struct {
	StepID   string           `json:"step_id"`
	Kind     StepKind         `json:"kind"`
	Target   string           `json:"target"`
	Status   StepStatus       `json:"status"`
	Reason   string           `json:"reason,omitempty"`
	Records  int              `json:"records,omitempty"`
	Sync     reconcile.Result `json:"sync,omitempty"`
	Error    string           `json:"error,omitempty"`
	Duration time.Duration    `json:"duration_ms"`
}

// Result is the outcome of one pipeline run.
type Result struct {
	PipelineID string        `json:"pipeline_id"`
	Status     string        `json:"status"` // completed, failed, cancelled
	Steps      []StepResult  `json:"steps"`
	Duration   time.Duration `json:"duration_ms"`
}

// Collected is the per-run store of collector output, keyed by target.
type Collected struct {
	DeviceInfos []model.DeviceInfo
	Interfaces  []model.InterfaceRecord
	MACs        []model.MACEntry
	Neighbors   []model.Neighbor
	Inventory   []model.InventoryItem
	Configs     []model.ConfigBackup

	have map[string]bool
}

func (c *Collected) mark(target string) {
	if c.have == nil {
		c.have = make(map[string]bool)
	}
	c.have[target] = true
}

// Has reports whether a target's data was collected this run.
func (c *Collected) Has(target string) bool { return c.have[target] }

// RunContext carries the per-run inputs through every step.
type RunContext struct {
	Devices     []*model.Device
	Credentials *model.Credentials
	Inventory   model.InventoryConfig
	DryRun      bool
	SyncOptions reconcile.Options
	Collected   Collected
}

// SyncerFactory builds a reconciler for one sync step. Indirection keeps the
// executor testable without a live remote inventory.
type SyncerFactory func(cfg model.InventoryConfig, opts reconcile.Options) *reconcile.Syncer

// Exporter serializes collected data; implementations live outside this
// package.
type Exporter interface {
	Export(target string, data interface{}, options map[string]interface{}) error
}

// Executor runs pipelines. Callbacks fire around each step so observers
// (the task manager) can track progress.
type Executor struct {
	Collector *collect.Collector
	NewSyncer SyncerFactory
	Exporter  Exporter
	Clock     clockwork.Clock

	OnStepStart    func(step Step)
	OnStepComplete func(step Step, result StepResult)
}

func (e *Executor) clock() clockwork.Clock {
	if e.Clock != nil {
		return e.Clock
	}
	return clockwork.NewRealClock()
}

// syncCollectTarget maps a sync target to the collection that feeds it.
var syncCollectTarget = map[string]string{
	TargetDevices:     TargetDeviceInfo,
	TargetInterfaces:  TargetInterfaces,
	TargetIPAddresses: TargetInterfaces,
	TargetVLANs:       TargetInterfaces,
	TargetCables:      TargetNeighbors,
	TargetInventory:   TargetInventory,
}

// Run executes the pipeline's enabled steps in declared order. A failed step
// aborts the rest; skipped steps do not.
func (e *Executor) Run(ctx context.Context, p *Pipeline, rc *RunContext) *Result {
	clk := e.clock()
	start := clk.Now()
	result := &Result{PipelineID: p.ID, Status: "completed"}

	if err := p.Validate(); err != nil {
		result.Status = "failed"
		result.Steps = append(result.Steps, StepResult{
			StepID: "validation", Status: StepFailed, Error: err.Error(),
		})
		result.Duration = clk.Since(start)
		return result
	}

	completed := make(map[string]bool)
	for _, step := range p.EnabledSteps() {
		if ctx.Err() != nil {
			result.Status = "cancelled"
			break
		}

		if unmet := firstUnmetDep(step, completed); unmet != "" {
			sr := StepResult{
				StepID: step.ID, Kind: step.Kind, Target: step.Target,
				Status: StepSkipped, Reason: "Dependencies not met",
			}
			result.Steps = append(result.Steps, sr)
			if e.OnStepComplete != nil {
				e.OnStepComplete(step, sr)
			}
			continue
		}

		if e.OnStepStart != nil {
			e.OnStepStart(step)
		}
		stepStart := clk.Now()
		sr := e.runStep(ctx, step, rc)
		sr.StepID = step.ID
		sr.Kind = step.Kind
		sr.Target = step.Target
		sr.Duration = clk.Since(stepStart)
		result.Steps = append(result.Steps, sr)
		if e.OnStepComplete != nil {
			e.OnStepComplete(step, sr)
		}

		switch sr.Status {
		case StepCompleted:
			completed[step.ID] = true
		case StepFailed:
			result.Status = "failed"
		}
		if result.Status == "failed" {
			break
		}
	}

	if ctx.Err() != nil && result.Status == "completed" {
		result.Status = "cancelled"
	}
	result.Duration = clk.Since(start)
	return result
}

func firstUnmetDep(step Step, completed map[string]bool) string {
	for _, dep := range step.DependsOn {
		if !completed[dep] {
			return dep
		}
	}
	return ""
}

func (e *Executor) runStep(ctx context.Context, step Step, rc *RunContext) StepResult {
	var err error
	sr := StepResult{Status: StepCompleted}

	switch step.Kind {
	case StepCollect:
		sr.Records, err = e.runCollect(ctx, step.Target, rc)
	case StepSync:
		sr.Sync, err = e.runSync(ctx, step, rc)
	case StepExport:
		sr.Records, err = e.runExport(ctx, step, rc)
	default:
		err = fmt.Errorf("%w: step kind %q", util.ErrValidationFailed, step.Kind)
	}

	if err != nil {
		sr.Status = StepFailed
		sr.Error = err.Error()
	}
	return sr
}

// runCollect dispatches one collection and stores its output in the run
// context. Per-device errors do not fail the step; they are logged by the
// collector and reflected in device status.
func (e *Executor) runCollect(ctx context.Context, target string, rc *RunContext) (int, error) {
	var derrs []collect.DeviceError
	var count int

	switch target {
	case TargetDeviceInfo, TargetDevices:
		rc.Collected.DeviceInfos, derrs = e.Collector.DeviceInfo(ctx, rc.Devices, rc.Credentials)
		rc.Collected.mark(TargetDeviceInfo)
		count = len(rc.Collected.DeviceInfos)
	case TargetInterfaces:
		rc.Collected.Interfaces, derrs = e.Collector.Interfaces(ctx, rc.Devices, rc.Credentials)
		rc.Collected.mark(TargetInterfaces)
		count = len(rc.Collected.Interfaces)
	case TargetMACTable:
		rc.Collected.MACs, derrs = e.Collector.MACTable(ctx, rc.Devices, rc.Credentials, collect.MACTableOptions{})
		rc.Collected.mark(TargetMACTable)
		count = len(rc.Collected.MACs)
	case TargetNeighbors, TargetLLDP, TargetCDP:
		opts := collect.NeighborOptions{LLDP: target != TargetCDP, CDP: target != TargetLLDP}
		rc.Collected.Neighbors, derrs = e.Collector.Neighbors(ctx, rc.Devices, rc.Credentials, opts)
		rc.Collected.mark(TargetNeighbors)
		count = len(rc.Collected.Neighbors)
	case TargetInventory:
		rc.Collected.Inventory, derrs = e.Collector.Inventory(ctx, rc.Devices, rc.Credentials)
		rc.Collected.mark(TargetInventory)
		count = len(rc.Collected.Inventory)
	case TargetConfigs:
		rc.Collected.Configs, derrs = e.Collector.Configs(ctx, rc.Devices, rc.Credentials)
		rc.Collected.mark(TargetConfigs)
		count = len(rc.Collected.Configs)
	default:
		return 0, fmt.Errorf("%w: collect target %q", util.ErrValidationFailed, target)
	}

	if len(derrs) == len(rc.Devices) && len(rc.Devices) > 0 {
		return count, fmt.Errorf("all %d devices failed collection", len(rc.Devices))
	}
	for _, de := range derrs {
		util.WithDevice(de.Host).Warnf("collection error: %v", de.Err)
	}
	if ctx.Err() != nil {
		return count, util.ErrCancelled
	}
	return count, nil
}

// ensureCollected synthesizes an implicit collect when a sync or export step
// runs before its data exists.
func (e *Executor) ensureCollected(ctx context.Context, target string, rc *RunContext) error {
	if rc.Collected.Has(target) {
		return nil
	}
	util.Infof("auto-collecting %s", target)
	_, err := e.runCollect(ctx, target, rc)
	return err
}

func (e *Executor) runSync(ctx context.Context, step Step, rc *RunContext) (reconcile.Result, error) {
	kinds, err := kindsForTarget(step.Target)
	if err != nil {
		return nil, err
	}

	needed := map[string]bool{}
	if step.Target == TargetAll {
		needed[TargetDeviceInfo] = true
		needed[TargetInterfaces] = true
		needed[TargetNeighbors] = true
		needed[TargetInventory] = true
	} else {
		needed[syncCollectTarget[step.Target]] = true
	}
	for target := range needed {
		if err := e.ensureCollected(ctx, target, rc); err != nil {
			return nil, err
		}
	}

	opts := rc.SyncOptions
	opts.DryRun = rc.DryRun || step.OptionBool("dry_run", false)
	syncer := e.NewSyncer(rc.Inventory, opts)
	return syncer.SyncAll(ctx, reconcile.Data{
		DeviceInfos: rc.Collected.DeviceInfos,
		Interfaces:  rc.Collected.Interfaces,
		Neighbors:   rc.Collected.Neighbors,
		Inventory:   rc.Collected.Inventory,
	}, kinds)
}

func kindsForTarget(target string) (reconcile.Kinds, error) {
	switch target {
	case TargetDevices:
		return reconcile.Kinds{Devices: true}, nil
	case TargetInterfaces:
		return reconcile.Kinds{Interfaces: true}, nil
	case TargetIPAddresses:
		return reconcile.Kinds{IPs: true}, nil
	case TargetVLANs:
		return reconcile.Kinds{VLANs: true}, nil
	case TargetCables:
		return reconcile.Kinds{Cables: true}, nil
	case TargetInventory:
		return reconcile.Kinds{Inventory: true}, nil
	case TargetAll:
		return reconcile.AllKinds(), nil
	}
	return reconcile.Kinds{}, fmt.Errorf("%w: sync target %q", util.ErrValidationFailed, target)
}

func (e *Executor) runExport(ctx context.Context, step Step, rc *RunContext) (int, error) {
	if e.Exporter == nil {
		return 0, fmt.Errorf("%w: no exporter configured", util.ErrValidationFailed)
	}
	if err := e.ensureCollected(ctx, exportCollectTarget(step.Target), rc); err != nil {
		return 0, err
	}

	var data interface{}
	var count int
	switch step.Target {
	case TargetDeviceInfo, TargetDevices:
		data, count = rc.Collected.DeviceInfos, len(rc.Collected.DeviceInfos)
	case TargetInterfaces:
		data, count = rc.Collected.Interfaces, len(rc.Collected.Interfaces)
	case TargetMACTable:
		data, count = rc.Collected.MACs, len(rc.Collected.MACs)
	case TargetNeighbors, TargetLLDP, TargetCDP:
		data, count = rc.Collected.Neighbors, len(rc.Collected.Neighbors)
	case TargetInventory:
		data, count = rc.Collected.Inventory, len(rc.Collected.Inventory)
	case TargetConfigs:
		data, count = rc.Collected.Configs, len(rc.Collected.Configs)
	default:
		return 0, fmt.Errorf("%w: export target %q", util.ErrValidationFailed, step.Target)
	}
	return count, e.Exporter.Export(step.Target, data, step.Options)
}

func exportCollectTarget(target string) string {
	switch target {
	case TargetDevices:
		return TargetDeviceInfo
	case TargetLLDP, TargetCDP:
		return TargetNeighbors
	}
	return target
}
