// file: cmd/pipeline.go
// version: 1.0.0
// guid: 7b8c9d0e-1f2a-3b4c-5d6e-7f8a9b0c1d2f

package cmd

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/TheRealSavi/iOpenPod/internal/config"
	"github.com/TheRealSavi/iOpenPod/internal/deviceio"
	"github.com/TheRealSavi/iOpenPod/internal/diffengine"
	"github.com/TheRealSavi/iOpenPod/internal/executor"
	"github.com/TheRealSavi/iOpenPod/internal/fingerprint"
	"github.com/TheRealSavi/iOpenPod/internal/integrity"
	"github.com/TheRealSavi/iOpenPod/internal/itunesdb"
	"github.com/TheRealSavi/iOpenPod/internal/mapping"
	"github.com/TheRealSavi/iOpenPod/internal/metadataprovider"
	"github.com/TheRealSavi/iOpenPod/internal/scanner"
)

// openDevice resolves the mount point and the device's signing profile.
func openDevice() (*deviceio.Device, *deviceio.Profile, error) {
	if config.AppConfig.DeviceRoot == "" {
		return nil, nil, fmt.Errorf("device mount point not specified")
	}
	dev := deviceio.New(config.AppConfig.DeviceRoot)
	profile, err := deviceio.ResolveProfile(dev, config.AppConfig.ChecksumOverride)
	if err != nil {
		return nil, nil, err
	}
	return dev, profile, nil
}

// loadDatabase parses the device database, or starts an empty one for a
// device that has never been synced.
func loadDatabase(dev *deviceio.Device) (*itunesdb.Database, error) {
	data, err := os.ReadFile(dev.DatabasePath())
	if err != nil {
		if os.IsNotExist(err) {
			var idBuf [8]byte
			if _, err := rand.Read(idBuf[:]); err != nil {
				return nil, fmt.Errorf("generating database id: %w", err)
			}
			return &itunesdb.Database{
				Version: 0x19,
				ID:      binary.LittleEndian.Uint64(idBuf[:]),
				NextID:  1,
			}, nil
		}
		return nil, fmt.Errorf("reading database: %w", err)
	}
	db, err := itunesdb.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing database: %w", err)
	}
	return db, nil
}

// preparePlan runs everything up to and including the diff: load, play
// count fold-in, integrity pass, library scan, match. Nothing here writes
// the database or the mapping.
func preparePlan(ctx context.Context) (*diffengine.Plan, *executor.Executor, error) {
	if len(config.AppConfig.LibraryRoots) == 0 {
		return nil, nil, fmt.Errorf("no library roots specified")
	}

	dev, profile, err := openDevice()
	if err != nil {
		return nil, nil, err
	}

	fp := fingerprint.New(config.AppConfig.FingerprintBinary)
	if err := fp.Preflight(); err != nil {
		return nil, nil, err
	}

	db, err := loadDatabase(dev)
	if err != nil {
		return nil, nil, err
	}

	store, err := mapping.Load(dev.MappingPath())
	if err != nil {
		return nil, nil, err
	}

	playCounts, err := deviceio.ParsePlayCounts(dev.PlayCountsPath())
	if err != nil {
		fmt.Printf("Warning: %v\n", err)
	}
	executor.ApplyPlayCounts(db, playCounts)

	report, err := integrity.Check(dev, db, store)
	if err != nil {
		return nil, nil, fmt.Errorf("integrity check: %w", err)
	}

	provider := &metadataprovider.TagProvider{}
	sc := &scanner.Scanner{
		Provider:     provider,
		Fingerprint:  fp,
		Workers:      config.AppConfig.Workers,
		ShowProgress: true,
	}
	scanned, err := sc.ScanRoots(ctx, config.AppConfig.LibraryRoots)
	if err != nil {
		return nil, nil, fmt.Errorf("scanning library: %w", err)
	}

	plan := diffengine.Diff(scanned.Tracks, db, store)
	plan.IntegrityFixes = report.Lines()
	plan.FingerprintErrors = scanned.FingerprintErrors

	exec, err := newExecutor(dev, profile, db, store, provider)
	if err != nil {
		return nil, nil, err
	}
	return plan, exec, nil
}

func printPlan(plan *diffengine.Plan) {
	for _, line := range diffengine.Describe(plan) {
		fmt.Println("  " + line)
	}
	if len(plan.IntegrityFixes) > 0 {
		fmt.Printf("Integrity fixes applied: %d\n", len(plan.IntegrityFixes))
		for _, line := range plan.IntegrityFixes {
			fmt.Println("  " + line)
		}
	}
	if len(plan.FingerprintErrors) > 0 {
		fmt.Printf("Files skipped (fingerprint failures): %d\n", len(plan.FingerprintErrors))
		for _, line := range plan.FingerprintErrors {
			fmt.Println("  " + line)
		}
	}
	if len(plan.DuplicateGroups) > 0 {
		fmt.Printf("True duplicate groups (first file syncs, rest ignored): %d\n", len(plan.DuplicateGroups))
	}
	if len(plan.MissingArtwork) > 0 {
		fmt.Printf("Tracks missing artwork on the device: %d (artwork database will be rewritten)\n", len(plan.MissingArtwork))
	}
	s := plan.Storage
	fmt.Printf("Storage: +%d bytes, -%d bytes, net %+d bytes\n", s.BytesToAdd, s.BytesToRemove, s.NetChange)
	fmt.Printf("Planned actions: %d\n", plan.ActionCount())
}
