package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/nettally/nettally/pkg/cli"
	"github.com/nettally/nettally/pkg/history"
	"github.com/nettally/nettally/pkg/model"
	"github.com/nettally/nettally/pkg/netbox"
	"github.com/nettally/nettally/pkg/pipeline"
	"github.com/nettally/nettally/pkg/reconcile"
)

var syncFlags struct {
	dryRun               bool
	createMissing        bool
	updateExisting       bool
	cleanup              bool
	tenant               string
	site                 string
	role                 string
	excludeInterfaces    []string
	skipUnknownNeighbors bool
	trustRemoteEnabled   bool
}

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [target...]",
		Short: "Reconcile collected data against the remote inventory",
		Long: `Collects what each target needs and pushes it to the DCIM.

Targets: devices, interfaces, ip_addresses, vlans, cables, inventory, all.
Without arguments, every target is synced in dependency order.

  nettally sync devices interfaces
  nettally sync --dry-run --cleanup --tenant lab`,
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := args
			if len(targets) == 0 {
				targets = []string{pipeline.TargetAll}
			}
			p := &pipeline.Pipeline{ID: "adhoc-sync", Name: "ad-hoc sync", Enabled: true}
			for _, target := range targets {
				p.Steps = append(p.Steps, pipeline.Step{
					ID: "sync-" + target, Kind: pipeline.StepSync, Target: target, Enabled: true,
				})
			}
			if err := p.Validate(); err != nil {
				return err
			}
			return runAdhocPipeline(cmd, p, "sync")
		},
	}
	addSyncFlags(cmd)
	return cmd
}

func addSyncFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&syncFlags.dryRun, "dry-run", false, "log the plan without writing")
	cmd.Flags().BoolVar(&syncFlags.createMissing, "create", true, "create missing objects")
	cmd.Flags().BoolVar(&syncFlags.updateExisting, "update", true, "update changed objects")
	cmd.Flags().BoolVar(&syncFlags.cleanup, "cleanup", false, "delete stale objects")
	cmd.Flags().StringVar(&syncFlags.tenant, "tenant", "", "DCIM tenant scope")
	cmd.Flags().StringVar(&syncFlags.site, "site", "", "DCIM site for created objects")
	cmd.Flags().StringVar(&syncFlags.role, "role", "", "DCIM role for created devices")
	cmd.Flags().StringSliceVar(&syncFlags.excludeInterfaces, "exclude-interfaces", nil, "interface name regexes to ignore")
	cmd.Flags().BoolVar(&syncFlags.skipUnknownNeighbors, "skip-unknown-neighbors", true, "ignore peers with no usable identifier")
	cmd.Flags().BoolVar(&syncFlags.trustRemoteEnabled, "trust-remote-enabled", false, "leave the remote enabled flag alone")
}

func syncOptions() reconcile.Options {
	return reconcile.Options{
		DryRun:               syncFlags.dryRun,
		CreateMissing:        syncFlags.createMissing,
		UpdateExisting:       syncFlags.updateExisting,
		Cleanup:              syncFlags.cleanup,
		Tenant:               firstNonEmpty(syncFlags.tenant, cfg.Tenant),
		Site:                 firstNonEmpty(syncFlags.site, cfg.Site),
		Role:                 firstNonEmpty(syncFlags.role, cfg.Role),
		ExcludeInterfaces:    syncFlags.excludeInterfaces,
		SkipUnknownNeighbors: syncFlags.skipUnknownNeighbors,
		TrustRemoteEnabled:   syncFlags.trustRemoteEnabled,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// runAdhocPipeline executes a pipeline built by a command, prints its result,
// and records it in the history store.
func runAdhocPipeline(cmd *cobra.Command, p *pipeline.Pipeline, operation string) error {
	creds, err := loadCredentials()
	if err != nil {
		return err
	}
	inv, err := loadInventoryConfig()
	if err != nil {
		return err
	}
	devices, err := enabledDevices()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	exec := &pipeline.Executor{
		Collector: newCollector(),
		NewSyncer: func(c model.InventoryConfig, opts reconcile.Options) *reconcile.Syncer {
			return reconcile.New(netbox.NewClient(c), opts)
		},
		Exporter: newExporter(),
	}
	rc := &pipeline.RunContext{
		Devices:     devices,
		Credentials: creds,
		Inventory:   inv,
		DryRun:      syncFlags.dryRun,
		SyncOptions: syncOptions(),
	}

	res := exec.Run(ctx, p, rc)
	recordRun(operation, res, devices)

	merged := make(reconcile.Result)
	for _, step := range res.Steps {
		fmt.Printf("%s %s\n", cli.DotPad(step.StepID, 32), cli.StatusColor(string(step.Status)))
		for kind, stats := range step.Sync {
			merged[kind] = stats
		}
		if step.Status == pipeline.StepFailed {
			fmt.Fprintf(os.Stderr, "step %s failed: %s\n", step.StepID, step.Error)
		}
	}
	if len(merged) > 0 {
		printSyncResult(merged)
	}
	if res.Status != "completed" {
		return fmt.Errorf("%s %s", operation, res.Status)
	}
	return nil
}

func recordRun(operation string, res *pipeline.Result, devices []*model.Device) {
	hist, err := history.Open(cfg.historyPath(), history.DefaultCap)
	if err != nil {
		fmt.Fprintln(os.Stderr, "history unavailable:", err)
		return
	}
	entry := history.Entry{
		Operation:   operation,
		Status:      runStatus(res),
		DeviceCount: len(devices),
		DurationMS:  int64(res.Duration / time.Millisecond),
	}
	for _, dev := range devices {
		entry.Devices = append(entry.Devices, dev.Host)
	}
	stats := make(reconcile.Result)
	for _, step := range res.Steps {
		for kind, s := range step.Sync {
			stats[kind] = s
		}
		if step.Error != "" && entry.Error == "" {
			entry.Error = step.Error
		}
	}
	if len(stats) > 0 {
		entry.Stats = stats
	}
	if _, err := hist.Append(entry); err != nil {
		fmt.Fprintln(os.Stderr, "record history:", err)
	}
}

func runStatus(res *pipeline.Result) string {
	if res.Status == "completed" {
		return "success"
	}
	if res.Status == "cancelled" {
		return "partial"
	}
	return "error"
}

func newPushDescriptionsCmd() *cobra.Command {
	var protocol string
	cmd := &cobra.Command{
		Use:   "push-descriptions",
		Short: "Push neighbor-derived interface descriptions to the DCIM",
		Long: `Collects LLDP/CDP neighbors and writes "<peer> <port>" descriptions
onto the matching DCIM interfaces. Only neighbors that announced a real
hostname are used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := neighborOptions(protocol)
			if err != nil {
				return err
			}
			inv, err := loadInventoryConfig()
			if err != nil {
				return err
			}
			cctx, err := newCollectContext(cmd)
			if err != nil {
				return err
			}
			defer cctx.done()

			neighbors, devErrs := cctx.collector.Neighbors(cctx.ctx, cctx.devices, cctx.creds, opts)
			if err := reportDeviceErrors(devErrs, len(cctx.devices)); err != nil {
				return err
			}

			syncer := reconcile.New(netbox.NewClient(inv), syncOptions())
			stats, err := syncer.PushDescriptions(cctx.ctx, neighbors)
			if err != nil {
				return err
			}
			printSyncResult(reconcile.Result{"interfaces": stats})
			return nil
		},
	}
	cmd.Flags().StringVar(&protocol, "protocol", "both", "discovery protocol (lldp, cdp, both)")
	cmd.Flags().BoolVar(&syncFlags.dryRun, "dry-run", false, "log the plan without writing")
	return cmd
}
