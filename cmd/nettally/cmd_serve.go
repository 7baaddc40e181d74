package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/nettally/nettally/pkg/api"
	"github.com/nettally/nettally/pkg/cli"
	"github.com/nettally/nettally/pkg/history"
	"github.com/nettally/nettally/pkg/model"
	"github.com/nettally/nettally/pkg/netbox"
	"github.com/nettally/nettally/pkg/reconcile"
	"github.com/nettally/nettally/pkg/task"
)

func newServeCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := pipelineRepo()
			if err != nil {
				return err
			}
			hist, err := history.Open(cfg.historyPath(), history.DefaultCap)
			if err != nil {
				return err
			}
			srv := &api.Server{
				Devices:   deviceRepo(),
				Pipelines: repo,
				Tasks:     task.NewManager(task.DefaultMaxTasks),
				History:   hist,
				Collector: newCollector(),
				NewSyncer: func(c model.InventoryConfig, opts reconcile.Options) *reconcile.Syncer {
					return reconcile.New(netbox.NewClient(c), opts)
				},
				Exporter: newExporter(),
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return srv.ListenAndServe(ctx, listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:8480", "listen address")
	return cmd
}

func newTasksCmd() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "tasks [id]",
		Short: "List or inspect tasks on a running server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: 10 * time.Second}
			url := server + "/api/v1/tasks"
			if len(args) == 1 {
				url += "/" + args[0]
			}
			resp, err := client.Get(url)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned %s", resp.Status)
			}

			if len(args) == 1 {
				var t task.Task
				if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
					return err
				}
				fmt.Printf("%s %s %s %d%% %s\n", t.ID, t.Kind, cli.StatusColor(string(t.Status)),
					t.ProgressPercent, t.Message)
				return nil
			}

			var page struct {
				Tasks []task.Task `json:"tasks"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
				return err
			}
			tb := cli.NewTable("ID", "Kind", "Status", "Progress", "Message")
			for _, t := range page.Tasks {
				tb.Row(t.ID, t.Kind, cli.StatusColor(string(t.Status)),
					fmt.Sprintf("%d%%", t.ProgressPercent), t.Message)
			}
			tb.Flush()
			if len(page.Tasks) == 0 {
				fmt.Println("no tasks")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://127.0.0.1:8480", "nettally serve address")
	return cmd
}
