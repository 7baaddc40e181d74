// nettally — network device inventory collection and reconciliation
//
// nettally logs into network devices over SSH, parses command output into
// normalized records, and reconciles them against a NetBox-style DCIM.
//
// Usage:
//
//	nettally devices -d devices.json       Collect device facts
//	nettally interfaces                    Collect interface tables
//	nettally mac                           Collect MAC tables
//	nettally lldp                          Collect LLDP/CDP neighbors
//	nettally inventory                     Collect hardware inventory
//	nettally backup                        Capture running configs
//	nettally match-mac <mac>...            Locate MACs on the network
//	nettally push-descriptions             Push neighbor-derived descriptions
//	nettally sync [target...]              Reconcile against the DCIM
//	nettally pipeline run <id>             Run a declared pipeline
//	nettally serve                         Run the HTTP API
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nettally/nettally/pkg/util"
	"github.com/nettally/nettally/pkg/version"
)

var (
	verbose    bool
	deviceFile string
	configFile string
	outputPath string
	outputFmt  string
	workers    int

	cfg *config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, util.ErrValidationFailed) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "nettally",
	Short:             "Network device inventory collection and reconciliation",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real env vars win over file values.
		godotenv.Load()

		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}

		var err error
		cfg, err = loadConfig(configFile)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&deviceFile, "devices", "d", "", "device catalog file")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file")
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "write output to file instead of stdout")
	rootCmd.PersistentFlags().StringVar(&outputFmt, "format", "table", "output format (table, json, csv)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "concurrent device connections")

	rootCmd.AddCommand(
		newDevicesCmd(),
		newInterfacesCmd(),
		newMACCmd(),
		newLLDPCmd(),
		newInventoryCmd(),
		newBackupCmd(),
		newMatchMACCmd(),
		newPushDescriptionsCmd(),
		newSyncCmd(),
		newPipelineCmd(),
		newCatalogCmd(),
		newTasksCmd(),
		newHistoryCmd(),
		newValidateFieldsCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.String())
		},
	}
}
