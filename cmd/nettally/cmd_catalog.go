package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nettally/nettally/pkg/cli"
	"github.com/nettally/nettally/pkg/model"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the device catalog",
	}
	cmd.AddCommand(
		newCatalogListCmd(),
		newCatalogAddCmd(),
		newCatalogRemoveCmd(),
	)
	return cmd
}

func newCatalogListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := deviceRepo().List()
			if err != nil {
				return err
			}
			tb := cli.NewTable("Host", "Platform", "Role", "Enabled", "Hostname")
			for _, dev := range devices {
				tb.Row(dev.Host, dev.PlatformTag, dev.Role, fmt.Sprint(dev.Enabled), dev.Hostname)
			}
			tb.Flush()
			if len(devices) == 0 {
				fmt.Printf("no devices in %s\n", cfg.devicesPath())
			}
			return nil
		},
	}
}

func newCatalogAddCmd() *cobra.Command {
	var (
		platformTag string
		port        int
		role        string
		disabled    bool
	)
	cmd := &cobra.Command{
		Use:   "add <host>...",
		Short: "Add or update catalog entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := deviceRepo()
			for _, host := range args {
				dev := model.Device{
					Host:        host,
					PlatformTag: platformTag,
					Port:        port,
					Role:        role,
					Enabled:     !disabled,
				}
				if err := repo.Upsert(dev); err != nil {
					return err
				}
				fmt.Printf("added %s\n", host)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&platformTag, "platform", "", "platform tag (default cisco_ios)")
	cmd.Flags().IntVar(&port, "port", 0, "SSH port (default 22)")
	cmd.Flags().StringVar(&role, "role", "", "device role")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "add without enabling")
	return cmd
}

func newCatalogRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <host>...",
		Short: "Remove catalog entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := deviceRepo()
			for _, host := range args {
				if err := repo.Delete(host); err != nil {
					return err
				}
				fmt.Printf("removed %s\n", host)
			}
			return nil
		},
	}
}
