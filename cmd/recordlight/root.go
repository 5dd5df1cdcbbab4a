package main

import (
	"github.com/spf13/cobra"

	"github.com/garyjia/recordlight/internal/config"
)

type rootOptions struct {
	configFile string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "recordlight",
		Short: "Recording status light and button controller",
		Long: `recordlight drives a USB status light and push button from the state
of a recording appliance. The light shows whether a recording is running,
paused or failed, and the button starts, pauses, resumes and stops recordings.
Remote commands arrive over a TCP or serial console and an HTTP API.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (YAML); defaults and RECORDLIGHT_* variables apply without one")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment is read; empty to skip")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newTableCmd())
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newDevicesCmd())

	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	return config.LoadWithEnvFile(o.configFile, o.envFile)
}
