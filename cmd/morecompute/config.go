package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DannyMang/more-compute-sub000/internal/appconfig"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage morecompute configuration",
	}
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := path
			if target == "" {
				defaultPath, err := appconfig.DefaultConfigPath()
				if err != nil {
					return err
				}
				target = defaultPath
			}
			if err := appconfig.WriteDefault(target); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", target)
			return err
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "config file path")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "gateway_url: %s\n", cfg.GatewayURL)
			fmt.Fprintf(out, "state_dir: %s\n", cfg.StateDir)
			fmt.Fprintf(out, "reconnect.initial_backoff_ms: %d\n", cfg.Reconnect.InitialBackoffMillis)
			fmt.Fprintf(out, "reconnect.max_backoff_ms: %d\n", cfg.Reconnect.MaxBackoffMillis)
			fmt.Fprintf(out, "reconnect.max_attempts: %d\n", cfg.Reconnect.MaxAttempts)
			fmt.Fprintf(out, "engine.max_outputs_per_cell: %d\n", cfg.Engine.MaxOutputsPerCell)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "config file path")
	return cmd
}
