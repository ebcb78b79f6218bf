package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tabwatch/tabwatch/pkg/tabwatch/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage tabwatch configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default config file",
	Long: `Write a commented default configuration file to the config
directory. Does nothing if a config file already exists.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configInitCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if err := config.WriteDefault(); err != nil {
		return err
	}

	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	printInfo("config file: %s", filepath.Join(dir, "config.yaml"))
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	printInfo("%s", filepath.Join(dir, "config.yaml"))
	return nil
}
