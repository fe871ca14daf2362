package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/gittimemachine/internal/history"
	"github.com/Iron-Ham/gittimemachine/internal/plan"
	"github.com/Iron-Ham/gittimemachine/internal/rewrite"
)

type bulkOptions struct {
	file       string
	allowDirty bool
	dryRun     bool
	yes        bool
}

func newBulkCmd(root *rootOptions) *cobra.Command {
	opts := &bulkOptions{}

	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Apply a plan of edits to several local commits",
		Long: `Apply every edit in a YAML plan in one session with a single backup
branch. Edits run oldest commit first; each later edit is matched to its
commit again after the hashes change.

A plan looks like:

  edits:
    - commit: 3f2a9c1
      message: Fix parser
    - commit: 9b0e4d2
      author_date: 2024-03-01 09:30:00

'gittimemachine scan --plan' prints a plan for every local commit.
The planned changes are shown and confirmed before anything is rewritten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulk(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "plan file to apply (required)")
	cmd.Flags().BoolVar(&opts.allowDirty, "allow-dirty", false, "proceed with uncommitted changes in the working tree")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "show the planned changes without rewriting")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "do not ask for confirmation")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runBulk(cmd *cobra.Command, root *rootOptions, opts *bulkOptions) error {
	f, err := plan.Load(opts.file)
	if err != nil {
		return err
	}
	reqs, err := f.Requests(time.Local)
	if err != nil {
		return err
	}

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

	p, err := eng.Preview(ctx, reqs)
	if err != nil {
		return err
	}
	a.print(a.renderer.Plan(p))
	if opts.dryRun || len(p.Edits) == 0 {
		return nil
	}

	ok, err := a.confirm(ctx, "Rewrite these commits?", opts.yes)
	if err != nil {
		return err
	}
	if !ok {
		a.print("Aborted. Nothing was changed.\n")
		return nil
	}

	res, err := eng.EditBulk(ctx, reqs, rewrite.RunOptions{
		AllowDirty: opts.allowDirty || a.cfg.Safety.AllowDirty,
		Progress: func(current, total int, target history.CommitRecord) {
			a.printErr(a.renderer.Progress(current, total, target))
		},
	})
	if err != nil {
		return err
	}
	a.print(a.renderer.Result(res))
	return nil
}
