// file: cmd/plan.go
// version: 1.0.0
// guid: 9d0e1f2a-3b4c-5d6e-7f8a-9b0c1d2e3f4b

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// planCmd represents the plan command
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what a sync would do, without doing it",
	Long: `Run the scan, integrity pass, and diff, then print the resulting
plan. Orphaned files found by the integrity pass are still cleaned up;
the database, the mapping, and the library files are not touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, _, err := preparePlan(context.Background())
		if err != nil {
			return err
		}
		if plan.Empty() {
			fmt.Println("Device is already in sync; an empty plan.")
		}
		printPlan(plan)
		for _, c := range plan.UnresolvedCollisions {
			fmt.Printf("Unresolved collision: %s (album %q)\n", c.PCPath, c.AlbumKey)
			for _, hint := range c.CandidateHints {
				fmt.Println("  candidate: " + hint)
			}
		}
		return nil
	},
}
