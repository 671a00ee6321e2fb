package main

import (
	"github.com/UnendingLoop/PicDeck/internal/catalog"
	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/zlog"
)

type rootOptions struct {
	catalogPath string
	logLevel    string
}

func (o *rootOptions) loadCatalog() (*catalog.Catalog, error) {
	return catalog.LoadFile(o.catalogPath)
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "picdeck",
		Short:         "Batch-fit images into social-media templates",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			zlog.InitConsole()
			return zlog.SetLevel(opts.logLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.catalogPath, "catalog", "", "TOML file with extra [[template]] entries")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newFitCommand(opts))
	rootCmd.AddCommand(newTemplatesCommand(opts))

	return rootCmd
}
