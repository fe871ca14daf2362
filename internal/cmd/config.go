package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/gittimemachine/internal/config"
	"github.com/Iron-Ham/gittimemachine/internal/errors"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "View gittimemachine configuration",
		Long: `View gittimemachine configuration.

Without arguments, displays the effective configuration.`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}

	configCmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the effective configuration",
			Args:  cobra.NoArgs,
			RunE:  runConfigShow,
		},
		&cobra.Command{
			Use:   "path",
			Short: "Show the config file path",
			Args:  cobra.NoArgs,
			RunE:  runConfigPath,
		},
		&cobra.Command{
			Use:   "init",
			Short: "Create a default config file",
			Long:  `Create a default config file at ~/.config/gittimemachine/config.yaml with all available options.`,
			Args:  cobra.NoArgs,
			// The file being created need not exist yet
			PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
				return nil
			},
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigInit(cmd, root)
			},
		},
	)
	return configCmd
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	// Load validates the merged settings before they are shown
	if _, err := config.Load(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# Config file: %s\n", used)
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	data, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return errors.Wrap(err, "failed to encode configuration")
	}
	_, err = out.Write(data)
	return err
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "Active config: %s\n", used)
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}
	fmt.Fprintln(out, "\nEnvironment variables: GITTIMEMACHINE_* (e.g., GITTIMEMACHINE_BACKUP_PREFIX)")
	return nil
}

func runConfigInit(cmd *cobra.Command, root *rootOptions) error {
	configFile := config.ConfigFile()
	if root.configFile != "" {
		configFile = root.configFile
	}

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s", configFile)
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create config directory %s", filepath.Dir(configFile))
	}
	if err := os.WriteFile(configFile, []byte(defaultConfigFile), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write config file %s", configFile)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

const defaultConfigFile = `# gittimemachine configuration

backup:
  # Backup branches are named <branch>-<prefix>-<epoch-ms>
  prefix: backup

scan:
  # Fetch the upstream before listing local commits
  fetch: true
  # Maximum number of commits listed by 'scan' (0 = no limit)
  max_commits: 0

safety:
  # Rewrite even when the working tree has uncommitted changes
  allow_dirty: false
  # Treat commits on any remote-tracking branch as pushed
  strict_remotes: false

rewrite:
  # Move the commit date along with the author date
  sync_commit_date: true
  # Keep the commit dates of commits replayed after an edited one
  preserve_committer_dates: true

git:
  binary: git

logging:
  # Write JSON debug logs to a file
  enabled: false
  # debug, info, warn, error
  level: info
  # Empty means ~/.local/state/gittimemachine/gittimemachine.log
  file: ""
  max_size_mb: 5
  max_backups: 3
  compress: false

ui:
  color: true
`
