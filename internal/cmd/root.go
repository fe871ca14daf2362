// Package cmd implements the gittimemachine command line.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/gittimemachine/internal/config"
	"github.com/Iron-Ham/gittimemachine/internal/errors"
)

// ProgramName is the executable name used in help and hints.
const ProgramName = "gittimemachine"

// rootOptions holds the global flags.
type rootOptions struct {
	configFile string
	repo       string
	verbose    bool
	noColor    bool
}

// NewRootCmd builds the command tree. Every call returns fresh commands
// and flag values.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   ProgramName,
		Short: "Edit messages and dates of commits you have not pushed",
		Long: `gittimemachine rewrites the message, author date and commit date of
commits that exist only on your local branch.

Every rewrite first creates a backup branch pointing at the original tip,
so the previous history can always be restored.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(opts)
		},
	}

	// Global flags
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default is $HOME/.config/gittimemachine/config.yaml)")
	root.PersistentFlags().StringVarP(&opts.repo, "repo", "C", ".", "path inside the repository to operate on")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "write debug logs to stderr")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newScanCmd(opts),
		newEditCmd(opts),
		newBulkCmd(opts),
		newBackupsCmd(opts),
		newRestoreCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// initConfig loads defaults, the config file and GITTIMEMACHINE_* variables
// into the global viper instance.
func initConfig(opts *rootOptions) error {
	viper.Reset()

	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if opts.configFile != "" {
		viper.SetConfigFile(opts.configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
	}

	viper.SetEnvPrefix("GITTIMEMACHINE")
	// e.g. GITTIMEMACHINE_BACKUP_PREFIX for backup.prefix
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.configFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return errors.NewValidationError("cannot read config file").
			WithField("config").
			WithValue(opts.configFile).
			WithCause(err)
	}
	return nil
}
