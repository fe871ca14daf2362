package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBackupsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List backup branches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, root)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			eng, err := a.engine(ctx)
			if err != nil {
				return err
			}
			ptrs, err := eng.ListBackups(ctx)
			if err != nil {
				return err
			}
			a.print(a.renderer.Backups(ptrs))
			return nil
		},
	}
}

type restoreOptions struct {
	yes bool
}

func newRestoreCmd(root *rootOptions) *cobra.Command {
	opts := &restoreOptions{}

	cmd := &cobra.Command{
		Use:   "restore <backup-branch>",
		Short: "Reset the current branch to a backup",
		Long: `Reset the current branch to the commit a backup branch points at.

This runs 'git reset --hard': uncommitted changes in the working tree are
lost. Any rebase left in progress is aborted first. The backup branch is
kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(cmd, root, opts, args[0])
		},
	}

	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func runRestore(cmd *cobra.Command, root *rootOptions, opts *restoreOptions, branch string) error {
	a, err := newApp(cmd, root)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	eng, err := a.engine(ctx)
	if err != nil {
		return err
	}

	question := fmt.Sprintf("Reset the current branch to %s and discard uncommitted changes?", branch)
	ok, err := a.confirm(ctx, question, opts.yes)
	if err != nil {
		return err
	}
	if !ok {
		a.print("Aborted. Nothing was changed.\n")
		return nil
	}

	if err := eng.Restore(ctx, branch, true); err != nil {
		return err
	}
	a.print(fmt.Sprintf("Restored %s.\n", branch))
	return nil
}
