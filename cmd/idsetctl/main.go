// Command idsetctl inspects and builds MS-OXCFXICS IDSETs and manages a
// local sync-state store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openchange/mapisync"
	"github.com/openchange/mapisync/utils"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "idsetctl",
		Short:         "IDSET codec and sync-state tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (yaml, toml or json)")
	root.PersistentFlags().String("data-dir", "", "sync-state database directory")
	root.PersistentFlags().String("level", "", "logging level")
	root.PersistentFlags().Bool("json-log", false, "log as JSON")
	root.PersistentFlags().String("mode", "", "compaction mode for new states: precise or coalesced")

	root.AddCommand(
		newDecodeCmd(),
		newBuildCmd(),
		newMergeCmd(),
		newIncludesCmd(),
		newStateCmd(),
		newServeCmd(),
		newReplCmd(),
	)
	return root
}

// setup loads the configuration for cmd and builds its logger.
func setup(cmd *cobra.Command) (*Config, utils.Logger, error) {
	conf, err := loadConfig(configPath, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	lvl, err := utils.ParseLevel(conf.Level)
	if err != nil {
		return nil, nil, err
	}
	return conf, utils.NewLogger(os.Stderr, lvl, conf.JSONLog), nil
}

func openStore(conf *Config, log utils.Logger) (*mapisync.Store, error) {
	return mapisync.Open(conf.DataDir, mapisync.Options{
		Name:      "idsetctl",
		CacheSize: conf.CacheSize,
		Logger:    log,
	})
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
