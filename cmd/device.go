// file: cmd/device.go
// version: 1.0.0
// guid: 1f2a3b4c-5d6e-7f8a-9b0c-1d2e3f4a5b6d

package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/TheRealSavi/iOpenPod/internal/backup"
	"github.com/TheRealSavi/iOpenPod/internal/deviceio"
)

// deviceCmd represents the device command
var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Inspect the connected device",
}

// deviceInfoCmd represents the device info command
var deviceInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the device's identity and signing requirements",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, profile, err := openDevice()
		if err != nil {
			return err
		}

		info := profile.SysInfo
		fmt.Printf("Mount point:  %s\n", dev.Root)
		fmt.Printf("Model:        %s\n", info.ModelNumStr)
		if info.HasGUID {
			fmt.Printf("FireWire GUID: %x\n", info.FirewireGUID)
		}
		fmt.Printf("Signing:      %s\n", profile.Checksum)
		if profile.HashInfo != nil {
			fmt.Println("HashInfo:     present")
		}

		if free, err := dev.FreeBytes(); err == nil {
			fmt.Printf("Free space:   %d bytes\n", free)
		}

		keys := make([]string, 0, len(info.Fields))
		for k := range info.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Println("\nSysInfo fields:")
		for _, k := range keys {
			fmt.Printf("  %s: %s\n", k, info.Fields[k])
		}

		if _, err := os.Stat(dev.DatabasePath()); err == nil {
			fmt.Println("\nDatabase:     present")
		} else {
			fmt.Println("\nDatabase:     none (never synced)")
		}

		if counts, err := deviceio.ParsePlayCounts(dev.PlayCountsPath()); err == nil && len(counts) > 0 {
			fmt.Printf("Pending play events: %d\n", len(counts))
		}
		return nil
	},
}

var snapshotDir string

// deviceSnapshotCmd represents the device snapshot command
var deviceSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Archive the device's database state",
	Long: `Bundle the database, artwork database, play counts, and mapping into
a compressed archive. Old snapshots are rotated out beyond the cap.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		cfg := backup.DefaultSnapshotConfig()
		if snapshotDir != "" {
			cfg.SnapshotDir = snapshotDir
		}
		info, err := backup.CreateSnapshot(dev, cfg)
		if err != nil {
			return err
		}
		fmt.Printf("Snapshot written: %s (%d bytes, sha256 %s)\n", info.Path, info.Size, info.Checksum)
		return nil
	},
}

// deviceRestoreCmd represents the device restore command
var deviceRestoreCmd = &cobra.Command{
	Use:   "restore <snapshot.tar.gz>",
	Short: "Restore the device's database state from a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		if err := backup.RestoreSnapshot(args[0], dev); err != nil {
			return err
		}
		fmt.Println("Snapshot restored. Run validate to reconcile against the music folders.")
		return nil
	},
}

func init() {
	deviceSnapshotCmd.Flags().StringVar(&snapshotDir, "dir", "", "directory to store snapshots (default ./snapshots)")
	deviceCmd.AddCommand(deviceInfoCmd)
	deviceCmd.AddCommand(deviceSnapshotCmd)
	deviceCmd.AddCommand(deviceRestoreCmd)
}
