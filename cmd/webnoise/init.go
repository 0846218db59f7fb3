package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

//go:embed templates/webnoise.yaml
var configTemplate embed.FS

// configFileName is the default configuration file name.
const configFileName = "webnoise.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new webnoise configuration file",
		Long: `Initialize creates a new webnoise.yaml configuration file in the current directory.

The generated file includes:
- A starter list of seed URLs to crawl from
- Default pacing and timeout settings
- Commented examples for blacklisting, proxy routing, and history

Examples:
  # Create webnoise.yaml in current directory
  webnoise init

  # Create config file at a specific path
  webnoise init -o myconfig.yaml

  # Force overwrite existing file
  webnoise init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/webnoise.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(cmd.OutOrStdout(), "\nEdit this file to configure:")
	fmt.Fprintln(cmd.OutOrStdout(), "  - Seed URLs the crawl starts from")
	fmt.Fprintln(cmd.OutOrStdout(), "  - Blacklisted URL substrings")
	fmt.Fprintln(cmd.OutOrStdout(), "  - Pacing, timeouts, and proxy routing")

	return nil
}
