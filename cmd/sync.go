// file: cmd/sync.go
// version: 1.0.0
// guid: 8c9d0e1f-2a3b-4c5d-6e7f-8a9b0c1d2e3f

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheRealSavi/iOpenPod/internal/artwork"
	"github.com/TheRealSavi/iOpenPod/internal/config"
	"github.com/TheRealSavi/iOpenPod/internal/deviceio"
	"github.com/TheRealSavi/iOpenPod/internal/executor"
	"github.com/TheRealSavi/iOpenPod/internal/imageencoder"
	"github.com/TheRealSavi/iOpenPod/internal/itunesdb"
	"github.com/TheRealSavi/iOpenPod/internal/mapping"
	"github.com/TheRealSavi/iOpenPod/internal/metadataprovider"
	"github.com/TheRealSavi/iOpenPod/internal/metrics"
	"github.com/TheRealSavi/iOpenPod/internal/organizer"
	"github.com/TheRealSavi/iOpenPod/internal/progress"
	"github.com/TheRealSavi/iOpenPod/internal/tagger"
	"github.com/TheRealSavi/iOpenPod/internal/transcode"
)

// newExecutor wires the executor's collaborators from the configuration.
func newExecutor(dev *deviceio.Device, profile *deviceio.Profile, db *itunesdb.Database, store *mapping.Store, provider metadataprovider.Provider) (*executor.Executor, error) {
	cache, err := transcode.OpenCache(config.AppConfig.CacheDir)
	if err != nil {
		return nil, err
	}
	engine := &transcode.Engine{
		Binary:      config.AppConfig.TranscodeBinary,
		BitrateKbps: config.AppConfig.TranscodeBitrateKbps,
		Cache:       cache,
	}

	exec := &executor.Executor{
		Device:  dev,
		Profile: profile,
		DB:      db,
		Mapping: store,
		Engine:  engine,
		Placer:  organizer.NewPlacer(dev),
		ArtworkWriter: &artwork.Writer{
			Device:  dev,
			Encoder: imageencoder.Unavailable{},
		},
		Provider:     provider,
		LibraryRoots: config.AppConfig.LibraryRoots,
	}
	if config.AppConfig.WriteBackPlayCounts || config.AppConfig.WriteBackRatings {
		exec.TagWriter = &tagger.WriteBack{}
	}
	return exec, nil
}

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run the full sync pipeline",
	Long: `Scan the PC library, diff it against the device, and apply the
resulting plan: copy and transcode files, fold play counts, resolve
ratings, and rewrite the device database in a single atomic step.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		metrics.Register()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		var canceled atomic.Bool
		go func() {
			<-ctx.Done()
			canceled.Store(true)
		}()

		start := time.Now()
		plan, exec, err := preparePlan(ctx)
		if err != nil {
			return err
		}

		if plan.Empty() {
			fmt.Println("Device is already in sync; nothing to do.")
			return nil
		}
		printPlan(plan)

		exec.Reporter = &progress.LogReporter{Cancel: canceled.Load}
		result, err := exec.Run(ctx, plan)
		if err != nil {
			return err
		}

		fmt.Printf("\nSync complete in %s\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("- Added: %d, removed: %d, files updated: %d\n", result.Added, result.Removed, result.FilesUpdated)
		fmt.Printf("- Metadata updates: %d, artwork updates: %d\n", result.MetadataUpdated, result.ArtworkUpdated)
		fmt.Printf("- Play counts folded: %d, ratings resolved: %d\n", result.PlayCountsSync, result.RatingsSync)
		fmt.Printf("- Database written: %d bytes\n", result.DatabaseBytes)
		if len(result.Skipped) > 0 {
			fmt.Printf("- Skipped after per-file failures: %d\n", len(result.Skipped))
			for _, s := range result.Skipped {
				fmt.Println("    " + s)
			}
		}
		return nil
	},
}
