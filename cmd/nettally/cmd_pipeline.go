package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nettally/nettally/pkg/cli"
	"github.com/nettally/nettally/pkg/pipeline"
)

func newPipelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Manage and run collection pipelines",
	}
	cmd.AddCommand(
		newPipelineListCmd(),
		newPipelineShowCmd(),
		newPipelineRunCmd(),
		newPipelineValidateCmd(),
		newPipelineCreateCmd(),
		newPipelineDeleteCmd(),
	)
	return cmd
}

func pipelineRepo() (*pipeline.Repo, error) {
	return pipeline.NewRepo(cfg.pipelinesDir())
}

func newPipelineListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List declared pipelines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := pipelineRepo()
			if err != nil {
				return err
			}
			pipelines, err := repo.List()
			if err != nil {
				return err
			}
			tb := cli.NewTable("ID", "Name", "Steps", "Enabled")
			for _, p := range pipelines {
				tb.Row(p.ID, p.Name, fmt.Sprint(len(p.Steps)), fmt.Sprint(p.Enabled))
			}
			tb.Flush()
			if len(pipelines) == 0 {
				fmt.Printf("no pipelines in %s\n", cfg.pipelinesDir())
			}
			return nil
		},
	}
}

func newPipelineShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := pipelineRepo()
			if err != nil {
				return err
			}
			p, err := repo.Get(args[0])
			if err != nil {
				return err
			}
			return yaml.NewEncoder(os.Stdout).Encode(p)
		},
	}
}

func newPipelineRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <id>",
		Short: "Run a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := pipelineRepo()
			if err != nil {
				return err
			}
			p, err := repo.Get(args[0])
			if err != nil {
				return err
			}
			return runAdhocPipeline(cmd, p, "pipeline:"+p.ID)
		},
	}
	addSyncFlags(cmd)
	return cmd
}

func newPipelineValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file-or-id>",
		Short: "Validate a pipeline definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPipelineArg(args[0])
			if err != nil {
				return err
			}
			if err := p.Validate(); err != nil {
				return err
			}
			fmt.Printf("%s pipeline %s: %d steps\n", cli.Green("ok"), p.ID, len(p.Steps))
			return nil
		},
	}
}

func newPipelineCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <file>",
		Short: "Add a pipeline from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPipelineFile(args[0])
			if err != nil {
				return err
			}
			repo, err := pipelineRepo()
			if err != nil {
				return err
			}
			if err := repo.Save(p); err != nil {
				return err
			}
			fmt.Printf("saved pipeline %s\n", p.ID)
			return nil
		},
	}
}

func newPipelineDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := pipelineRepo()
			if err != nil {
				return err
			}
			if err := repo.Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted pipeline %s\n", args[0])
			return nil
		},
	}
}

// loadPipelineArg accepts either a YAML file path or a saved pipeline id.
func loadPipelineArg(arg string) (*pipeline.Pipeline, error) {
	if _, err := os.Stat(arg); err == nil {
		return loadPipelineFile(arg)
	}
	repo, err := pipelineRepo()
	if err != nil {
		return nil, err
	}
	return repo.Get(arg)
}

func loadPipelineFile(path string) (*pipeline.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p pipeline.Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse pipeline %s: %w", path, err)
	}
	return &p, nil
}
