package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/gittimemachine/internal/config"
	"github.com/Iron-Ham/gittimemachine/internal/errors"
	"github.com/Iron-Ham/gittimemachine/internal/git"
	"github.com/Iron-Ham/gittimemachine/internal/logging"
	"github.com/Iron-Ham/gittimemachine/internal/prompt"
	"github.com/Iron-Ham/gittimemachine/internal/render"
	"github.com/Iron-Ham/gittimemachine/internal/rewrite"
)

// app holds common resources for commands that touch a repository.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	renderer *render.Renderer

	repoPath    string
	in          io.Reader
	out         io.Writer
	errOut      io.Writer
	interactive bool
}

// newApp loads the configuration and sets up logging and output.
func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg, opts.verbose, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()
	color := cfg.UI.Color && !opts.noColor && isTerminal(out)

	return &app{
		cfg:         cfg,
		logger:      logger,
		renderer:    render.New(color),
		repoPath:    opts.repo,
		in:          in,
		out:         out,
		errOut:      cmd.ErrOrStderr(),
		interactive: isTerminal(in),
	}, nil
}

// Close releases the log file, if any.
func (a *app) Close() {
	_ = a.logger.Close()
}

func newLogger(cfg *config.Config, verbose bool, stderr io.Writer) (*logging.Logger, error) {
	level := cfg.Logging.Level
	if verbose {
		level = logging.LevelDebug
	}

	switch {
	case cfg.Logging.Enabled:
		return logging.New(logging.Options{
			Level: level,
			File:  cfg.Logging.ResolveFile(),
			Rotation: logging.RotationConfig{
				MaxSizeMB:  cfg.Logging.MaxSizeMB,
				MaxBackups: cfg.Logging.MaxBackups,
				Compress:   cfg.Logging.Compress,
			},
		})
	case verbose:
		return logging.New(logging.Options{Level: level, Writer: stderr})
	default:
		return logging.NopLogger(), nil
	}
}

// engine opens the repository and wires an engine from the configuration.
func (a *app) engine(ctx context.Context) (*rewrite.Engine, error) {
	repo, err := git.Open(ctx, a.repoPath, git.OpenOptions{
		Binary: a.cfg.Git.Binary,
		Logger: a.logger,
	})
	if err != nil {
		return nil, err
	}

	return rewrite.New(repo, rewrite.Options{
		BackupPrefix:           a.cfg.Backup.Prefix,
		Fetch:                  a.cfg.Scan.Fetch,
		MaxCommits:             a.cfg.Scan.MaxCommits,
		StrictRemotes:          a.cfg.Safety.StrictRemotes,
		SyncCommitDate:         a.cfg.Rewrite.SyncCommitDate,
		PreserveCommitterDates: a.cfg.Rewrite.PreserveCommitterDates,
	}, a.logger), nil
}

// confirm asks question unless yes is set. Without a terminal to ask on it
// fails with errors.ErrConfirmationRequired.
func (a *app) confirm(ctx context.Context, question string, yes bool) (bool, error) {
	if yes {
		return true, nil
	}
	if !a.interactive {
		return false, fmt.Errorf("%w: not a terminal, rerun with --yes", errors.ErrConfirmationRequired)
	}
	return prompt.Confirm(ctx, question, a.in, a.out)
}

func (a *app) print(s string) {
	_, _ = io.WriteString(a.out, s)
}

func (a *app) printErr(s string) {
	_, _ = io.WriteString(a.errOut, s)
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && prompt.IsInteractive(f)
}
