package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nettally/nettally/pkg/cli"
	"github.com/nettally/nettally/pkg/collect"
	"github.com/nettally/nettally/pkg/model"
	"github.com/nettally/nettally/pkg/normalize"
	"github.com/nettally/nettally/pkg/pipeline"
	"github.com/nettally/nettally/pkg/util"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "Collect device facts (model, serial, OS version)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd, pipeline.TargetDeviceInfo,
				func(ctx *collectContext) (interface{}, []collect.DeviceError) {
					return ctx.collector.DeviceInfo(ctx.ctx, ctx.devices, ctx.creds)
				})
		},
	}
}

func newInterfacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interfaces",
		Short: "Collect interface tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd, pipeline.TargetInterfaces,
				func(ctx *collectContext) (interface{}, []collect.DeviceError) {
					return ctx.collector.Interfaces(ctx.ctx, ctx.devices, ctx.creds)
				})
		},
	}
}

func newMACCmd() *cobra.Command {
	var (
		macFormat       string
		excludePrefixes []string
		excludeVLANs    []int
	)
	cmd := &cobra.Command{
		Use:   "mac",
		Short: "Collect MAC tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd, pipeline.TargetMACTable,
				func(ctx *collectContext) (interface{}, []collect.DeviceError) {
					return ctx.collector.MACTable(ctx.ctx, ctx.devices, ctx.creds, collect.MACTableOptions{
						Format:          normalize.MACFormat(macFormat),
						ExcludePrefixes: excludePrefixes,
						ExcludeVLANs:    excludeVLANs,
					})
				})
		},
	}
	cmd.Flags().StringVar(&macFormat, "mac-format", "ieee", "MAC rendering (ieee, cisco, unix)")
	cmd.Flags().StringSliceVar(&excludePrefixes, "exclude-prefixes", nil, "interface prefixes to drop")
	cmd.Flags().IntSliceVar(&excludeVLANs, "exclude-vlans", nil, "VLAN IDs to drop")
	return cmd
}

func newLLDPCmd() *cobra.Command {
	var protocol string
	cmd := &cobra.Command{
		Use:   "lldp",
		Short: "Collect LLDP/CDP neighbors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := neighborOptions(protocol)
			if err != nil {
				return err
			}
			return runCollect(cmd, pipeline.TargetNeighbors,
				func(ctx *collectContext) (interface{}, []collect.DeviceError) {
					return ctx.collector.Neighbors(ctx.ctx, ctx.devices, ctx.creds, opts)
				})
		},
	}
	cmd.Flags().StringVar(&protocol, "protocol", "lldp", "discovery protocol (lldp, cdp, both)")
	return cmd
}

func neighborOptions(protocol string) (collect.NeighborOptions, error) {
	switch strings.ToLower(protocol) {
	case "lldp":
		return collect.NeighborOptions{LLDP: true}, nil
	case "cdp":
		return collect.NeighborOptions{CDP: true}, nil
	case "both":
		return collect.NeighborOptions{LLDP: true, CDP: true}, nil
	}
	return collect.NeighborOptions{}, fmt.Errorf("%w: unknown protocol %q", util.ErrValidationFailed, protocol)
}

func newInventoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inventory",
		Short: "Collect hardware inventory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd, pipeline.TargetInventory,
				func(ctx *collectContext) (interface{}, []collect.DeviceError) {
					return ctx.collector.Inventory(ctx.ctx, ctx.devices, ctx.creds)
				})
		},
	}
}

func newBackupCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Capture running configurations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newCollectContext(cmd)
			if err != nil {
				return err
			}
			defer ctx.done()

			backups, devErrs := ctx.collector.Configs(ctx.ctx, ctx.devices, ctx.creds)
			if err := ctx.exportConfigs(dir, backups); err != nil {
				return err
			}
			fmt.Printf("captured %d configs\n", len(backups))
			return reportDeviceErrors(devErrs, len(ctx.devices))
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "directory for config backups (written under <dir>/configs)")
	return cmd
}

func newMatchMACCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match-mac <mac>...",
		Short: "Locate MAC addresses on the network",
		Long: `Collects the MAC tables of all enabled devices and reports where
each given address is learned. Addresses are accepted in any common
format (aa:bb:cc:dd:ee:ff, aabb.ccdd.eeff, AABBCCDDEEFF).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wanted := make(map[string]string, len(args))
			for _, arg := range args {
				canon, ok := normalize.CanonicalMAC(arg)
				if !ok {
					return fmt.Errorf("%w: unparseable MAC %q", util.ErrValidationFailed, arg)
				}
				wanted[canon] = arg
			}

			ctx, err := newCollectContext(cmd)
			if err != nil {
				return err
			}
			defer ctx.done()

			entries, devErrs := ctx.collector.MACTable(ctx.ctx, ctx.devices, ctx.creds, collect.MACTableOptions{})
			perPort := make(map[string]int)
			for i := range entries {
				perPort[entries[i].Device+"/"+entries[i].Interface]++
			}

			tb := cli.NewTable("MAC", "Device", "Interface", "VLAN", "Port MACs")
			found := make(map[string]bool)
			for i := range entries {
				e := &entries[i]
				if _, ok := wanted[e.MAC]; !ok {
					continue
				}
				found[e.MAC] = true
				tb.Row(normalize.RenderMAC(e.MAC, normalize.MACFormatIEEE),
					e.Device, e.Interface, fmt.Sprint(e.VLAN),
					fmt.Sprint(perPort[e.Device+"/"+e.Interface]))
			}
			tb.Flush()
			for canon, raw := range wanted {
				if !found[canon] {
					fmt.Fprintf(os.Stderr, "%s %s not seen on any device\n", cli.Yellow("miss"), raw)
				}
			}
			return reportDeviceErrors(devErrs, len(ctx.devices))
		},
	}
}

// collectContext bundles the pieces every collection command needs.
type collectContext struct {
	ctx       context.Context
	collector *collect.Collector
	devices   []*model.Device
	creds     *model.Credentials
	done      func()
}

func newCollectContext(cmd *cobra.Command) (*collectContext, error) {
	creds, err := loadCredentials()
	if err != nil {
		return nil, err
	}
	devices, err := enabledDevices()
	if err != nil {
		return nil, err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	return &collectContext{
		ctx:       ctx,
		collector: newCollector(),
		devices:   devices,
		creds:     creds,
		done:      stop,
	}, nil
}

func (c *collectContext) exportConfigs(dir string, backups []model.ConfigBackup) error {
	exp := newExporter()
	exp.Dir = dir
	return exp.Export(pipeline.TargetConfigs, backups, nil)
}

// runCollect is the shared collect-render path.
func runCollect(cmd *cobra.Command, target string,
	fn func(*collectContext) (interface{}, []collect.DeviceError)) error {
	ctx, err := newCollectContext(cmd)
	if err != nil {
		return err
	}
	defer ctx.done()

	records, devErrs := fn(ctx)
	if err := output(target, records); err != nil {
		return err
	}
	return reportDeviceErrors(devErrs, len(ctx.devices))
}
