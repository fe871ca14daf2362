package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/gittimemachine/internal/errors"
	"github.com/Iron-Ham/gittimemachine/internal/plan"
	"github.com/Iron-Ham/gittimemachine/internal/rewrite"
)

type editOptions struct {
	message     string
	messageFile string
	authorDate  string
	commitDate  string
	allowDirty  bool
	dryRun      bool
}

func newEditCmd(root *rootOptions) *cobra.Command {
	opts := &editOptions{}

	cmd := &cobra.Command{
		Use:   "edit <commit>",
		Short: "Change the message or dates of one local commit",
		Long: `Change the message, author date or commit date of one commit that has
not been pushed. The commit may be given as a full hash, a unique prefix
or any revision git understands.

Dates accept RFC 3339 (2024-03-01T12:00:00+01:00), local time
(2024-03-01 12:00:00) or epoch seconds (@1709290800).

When only the author date is changed, the commit date follows it unless
rewrite.sync_commit_date is false.`,
		Example: `  gittimemachine edit HEAD -m "Fix parser"
  gittimemachine edit 3f2a9c1 --author-date "2024-03-01 09:30:00"
  gittimemachine edit 3f2a9c1 -F message.txt --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd, root, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.message, "message", "m", "", "new commit message")
	cmd.Flags().StringVarP(&opts.messageFile, "file", "F", "", "read the new commit message from a file")
	cmd.Flags().StringVar(&opts.authorDate, "author-date", "", "new author date")
	cmd.Flags().StringVar(&opts.commitDate, "commit-date", "", "new commit date")
	cmd.Flags().BoolVar(&opts.allowDirty, "allow-dirty", false, "proceed with uncommitted changes in the working tree")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "show what would change without rewriting")
	cmd.MarkFlagsMutuallyExclusive("message", "file")
	return cmd
}

// request builds the edit request from the flags. Flags that were not
// given leave the field unchanged.
func (o *editOptions) request(cmd *cobra.Command, commit string) (rewrite.EditRequest, error) {
	req := rewrite.EditRequest{Hash: commit}

	switch {
	case cmd.Flags().Changed("message"):
		msg := o.message
		req.NewMessage = &msg
	case o.messageFile != "":
		data, err := os.ReadFile(o.messageFile)
		if err != nil {
			return req, errors.NewValidationError("cannot read message file").
				WithField("file").
				WithValue(o.messageFile).
				WithCause(err)
		}
		msg := string(data)
		req.NewMessage = &msg
	}

	if o.authorDate != "" {
		t, err := plan.ParseDate(o.authorDate, time.Local)
		if err != nil {
			return req, errors.NewValidationError("invalid author date").WithField("author-date").WithCause(err)
		}
		req.NewAuthorTime = &t
	}
	if o.commitDate != "" {
		t, err := plan.ParseDate(o.commitDate, time.Local)
		if err != nil {
			return req, errors.NewValidationError("invalid commit date").WithField("commit-date").WithCause(err)
		}
		req.NewCommitTime = &t
	}

	if req.IsNoop() {
		return req, errors.NewValidationError("nothing to change: pass --message, --file, --author-date or --commit-date")
	}
	return req, req.Validate()
}

func runEdit(cmd *cobra.Command, root *rootOptions, opts *editOptions, commit string) error {
	req, err := opts.request(cmd, commit)
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

	if opts.dryRun {
		return a.preview(ctx, eng, []rewrite.EditRequest{req})
	}

	res, err := eng.EditOne(ctx, req, rewrite.RunOptions{
		AllowDirty: opts.allowDirty || a.cfg.Safety.AllowDirty,
	})
	if err != nil {
		return err
	}
	a.print(a.renderer.Result(res))
	return nil
}

func (a *app) preview(ctx context.Context, eng *rewrite.Engine, reqs []rewrite.EditRequest) error {
	p, err := eng.Preview(ctx, reqs)
	if err != nil {
		return err
	}
	a.print(a.renderer.Plan(p))
	return nil
}
