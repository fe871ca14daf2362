// Command gittimemachine edits the messages and dates of local-only commits.
package main

import (
	"os"

	"github.com/Iron-Ham/gittimemachine/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		cmd.ReportError(err)
		os.Exit(1)
	}
}
