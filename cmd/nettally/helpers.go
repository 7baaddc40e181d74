package main

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/nettally/nettally/pkg/cli"
	"github.com/nettally/nettally/pkg/collect"
	"github.com/nettally/nettally/pkg/connect"
	"github.com/nettally/nettally/pkg/export"
	"github.com/nettally/nettally/pkg/fields"
	"github.com/nettally/nettally/pkg/model"
	"github.com/nettally/nettally/pkg/pipeline"
	"github.com/nettally/nettally/pkg/reconcile"
	"github.com/nettally/nettally/pkg/store"
	"github.com/nettally/nettally/pkg/util"
)

// loadCredentials resolves SSH login material from NET_USERNAME, NET_PASSWORD,
// and NET_SECRET. A missing password is prompted for when stdin is a terminal.
func loadCredentials() (*model.Credentials, error) {
	creds := &model.Credentials{
		Username:     os.Getenv("NET_USERNAME"),
		Password:     os.Getenv("NET_PASSWORD"),
		EnableSecret: os.Getenv("NET_SECRET"),
	}
	if creds.Username == "" {
		return nil, fmt.Errorf("%w: NET_USERNAME is not set", util.ErrValidationFailed)
	}
	if creds.Password == "" {
		if !term.IsTerminal(int(syscall.Stdin)) {
			return nil, fmt.Errorf("%w: NET_PASSWORD is not set", util.ErrValidationFailed)
		}
		fmt.Fprintf(os.Stderr, "Password for %s: ", creds.Username)
		pw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("read password: %w", err)
		}
		creds.Password = string(pw)
	}
	return creds, nil
}

// loadInventoryConfig resolves the DCIM endpoint from the environment with a
// config-file fallback for the URL.
func loadInventoryConfig() (model.InventoryConfig, error) {
	inv := model.InventoryConfig{
		URL:   os.Getenv("REMOTE_INVENTORY_URL"),
		Token: os.Getenv("REMOTE_INVENTORY_TOKEN"),
	}
	if inv.URL == "" {
		inv.URL = cfg.InventoryURL
	}
	if inv.URL == "" {
		return inv, fmt.Errorf("%w: REMOTE_INVENTORY_URL is not set", util.ErrValidationFailed)
	}
	return inv, nil
}

func deviceRepo() *store.DeviceRepo {
	return store.NewDeviceRepo(cfg.devicesPath())
}

func enabledDevices() ([]*model.Device, error) {
	devices, err := deviceRepo().Enabled()
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: no enabled devices in %s", util.ErrValidationFailed, cfg.devicesPath())
	}
	return devices, nil
}

func newCollector() *collect.Collector {
	return collect.New(connect.Options{}, cfg.workerCount(), cfg.TemplateDir)
}

func newExporter() *export.Exporter {
	return export.New(".")
}

// output renders collected records per --format and -o. Table output goes
// through the field registry so columns match CSV exports.
func output(target string, data interface{}) error {
	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	switch outputFmt {
	case "json":
		return export.WriteJSON(out, data)
	case "csv":
		return newExporter().WriteCSV(out, registryKind(target), export.Rows(data))
	case "table":
		reg := fields.Default()
		kind := registryKind(target)
		cols := reg.Columns(kind)
		if cols == nil {
			return export.WriteJSON(out, data)
		}
		headers := make([]string, len(cols))
		for i, col := range cols {
			headers[i] = reg.DisplayName(kind, col)
		}
		tb := cli.NewTableTo(out, headers...)
		for _, row := range export.Rows(data) {
			cells := make([]string, len(cols))
			for i, col := range cols {
				cells[i] = row[col]
			}
			tb.Row(cells...)
		}
		tb.Flush()
		return nil
	}
	return fmt.Errorf("%w: unknown format %q", util.ErrValidationFailed, outputFmt)
}

func registryKind(target string) string {
	switch target {
	case pipeline.TargetDeviceInfo:
		return "device"
	case pipeline.TargetInterfaces:
		return "interface"
	case pipeline.TargetMACTable:
		return "mac"
	case pipeline.TargetLLDP, pipeline.TargetCDP, pipeline.TargetNeighbors:
		return "neighbor"
	case pipeline.TargetInventory:
		return "inventory"
	case pipeline.TargetIPAddresses:
		return "ip"
	}
	return target
}

// reportDeviceErrors prints per-device failures and returns an error when
// every device failed.
func reportDeviceErrors(devErrs []collect.DeviceError, total int) error {
	for _, de := range devErrs {
		fmt.Fprintf(os.Stderr, "%s %s: %s\n", cli.Red("failed"), de.Host, de.Msg)
	}
	if total > 0 && len(devErrs) == total {
		return fmt.Errorf("all %d devices failed", total)
	}
	return nil
}

// printSyncResult renders one reconcile result as a per-kind table.
func printSyncResult(res reconcile.Result) {
	tb := cli.NewTable("Kind", "Created", "Updated", "Deleted", "Skipped", "Failed")
	for _, kind := range reconcile.KindOrder {
		stats, ok := res[kind]
		if !ok {
			continue
		}
		tb.Row(kind,
			fmt.Sprint(stats.Created), fmt.Sprint(stats.Updated), fmt.Sprint(stats.Deleted),
			fmt.Sprint(stats.Skipped), fmt.Sprint(stats.Failed))
	}
	tb.Flush()

	total := res.Total()
	fmt.Printf("\n%s  created %d, updated %d, deleted %d, skipped %d, failed %d\n",
		cli.StatusColor(res.Status()),
		total.Created, total.Updated, total.Deleted, total.Skipped, total.Failed)
	for _, kind := range reconcile.KindOrder {
		if stats, ok := res[kind]; ok {
			for _, msg := range stats.Errors {
				fmt.Fprintln(os.Stderr, cli.Red("error:"), kind+": "+msg)
			}
		}
	}
}
