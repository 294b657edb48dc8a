// file: cmd/validate.go
// version: 1.0.0
// guid: 0e1f2a3b-4c5d-6e7f-8a9b-0c1d2e3f4a5c

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TheRealSavi/iOpenPod/internal/integrity"
	"github.com/TheRealSavi/iOpenPod/internal/mapping"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Reconcile the device's files, database, and mapping",
	Long: `Run the integrity checks on their own: drop database tracks whose
files are gone, drop mapping entries whose tracks are gone, and delete
audio files no track references. The repaired state is reported but not
written back; the next sync persists it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		db, err := loadDatabase(dev)
		if err != nil {
			return err
		}
		store, err := mapping.Load(dev.MappingPath())
		if err != nil {
			return err
		}

		report, err := integrity.Check(dev, db, store)
		if err != nil {
			return err
		}
		if report.FixCount() == 0 {
			fmt.Println("Files, database, and mapping agree; nothing to fix.")
			return nil
		}
		fmt.Printf("Applied %d fixes:\n", report.FixCount())
		for _, line := range report.Lines() {
			fmt.Println("  " + line)
		}
		return nil
	},
}
