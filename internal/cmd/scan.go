package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/gittimemachine/internal/plan"
)

type scanOptions struct {
	plan     bool
	noFetch  bool
	maxCount int
}

func newScanCmd(root *rootOptions) *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List commits that exist only on the local branch",
		Long: `List the commits on the current branch that are not on its upstream,
newest first. Without an upstream every commit on the branch is listed.

With --plan the list is printed as a bulk edit plan instead, ready to be
edited and passed to 'gittimemachine bulk -f'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, root, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.plan, "plan", false, "print the commits as a YAML bulk edit plan")
	cmd.Flags().BoolVar(&opts.noFetch, "no-fetch", false, "do not fetch the upstream before listing")
	cmd.Flags().IntVarP(&opts.maxCount, "max-count", "n", -1, "limit the number of commits listed (0 means no limit)")
	return cmd
}

func runScan(cmd *cobra.Command, root *rootOptions, opts *scanOptions) error {
	a, err := newApp(cmd, root)
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.noFetch {
		a.cfg.Scan.Fetch = false
	}
	if opts.maxCount >= 0 {
		a.cfg.Scan.MaxCommits = opts.maxCount
	}

	ctx := cmd.Context()
	eng, err := a.engine(ctx)
	if err != nil {
		return err
	}

	scan, err := eng.Scan(ctx)
	if err != nil {
		return err
	}

	if opts.plan {
		data, err := plan.Skeleton(scan)
		if err != nil {
			return err
		}
		_, err = a.out.Write(data)
		return err
	}

	a.print(a.renderer.Scan(scan))
	return nil
}
