package commands

import (
	"github.com/spf13/cobra"
)

// NewRoot builds the keyhunter command tree. A single subcommand, scan, is
// registered; the root itself takes no action.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "keyhunter",
		Short: "Batch secret scanner for flat directories of files",
		Long:  "keyhunter scans a directory for high-confidence secrets matching a rule catalog and emits a deterministic JSON array of findings.",
	}

	root.AddCommand(newScanCmd())

	return root
}
