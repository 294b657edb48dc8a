// file: internal/executor/executor.go
// version: 1.0.0
// guid: 0b1c2d3e-4f5a-4b6c-7d8e-9f0a1b2c3d4e

// Package executor runs a sync plan against the device. Stages run in a
// fixed order over the in-memory working set; the database codec and the
// signer run exactly once, at the end, and nothing is persisted before
// that single commit point. Per-file failures skip that file and the sync
// continues; anything that would leave the database, mapping, and files
// disagreeing aborts before the commit instead.
package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/TheRealSavi/iOpenPod/internal/artwork"
	"github.com/TheRealSavi/iOpenPod/internal/deviceio"
	"github.com/TheRealSavi/iOpenPod/internal/diffengine"
	"github.com/TheRealSavi/iOpenPod/internal/fileops"
	"github.com/TheRealSavi/iOpenPod/internal/itunesdb"
	"github.com/TheRealSavi/iOpenPod/internal/mapping"
	"github.com/TheRealSavi/iOpenPod/internal/metadataprovider"
	"github.com/TheRealSavi/iOpenPod/internal/metrics"
	"github.com/TheRealSavi/iOpenPod/internal/organizer"
	"github.com/TheRealSavi/iOpenPod/internal/progress"
	"github.com/TheRealSavi/iOpenPod/internal/signer"
	"github.com/TheRealSavi/iOpenPod/internal/syncerr"
	"github.com/TheRealSavi/iOpenPod/internal/transcode"
)

// headroomBytes is kept free on the device beyond the planned additions.
const headroomBytes = 10 * 1024 * 1024

// Executor holds everything one sync run mutates or consults.
type Executor struct {
	Device  *deviceio.Device
	Profile *deviceio.Profile // nil skips signing (bench/test databases)
	DB      *itunesdb.Database
	Mapping *mapping.Store
	Engine  *transcode.Engine
	Placer  *organizer.Placer

	// ArtworkWriter, when non-nil, regenerates the artwork database if
	// the plan flags a rewrite.
	ArtworkWriter *artwork.Writer
	// Provider re-reads PC files for artwork extraction during a rewrite.
	Provider metadataprovider.Provider
	// LibraryRoots resolve stored path hints back to absolute PC paths.
	LibraryRoots []string
	// TagWriter, when non-nil, enables play-count and rating write-back
	// into the PC library's tags.
	TagWriter metadataprovider.TagWriter

	Reporter progress.Reporter
}

// Result summarizes what one run actually did.
type Result struct {
	Added           int
	Removed         int
	FilesUpdated    int
	MetadataUpdated int
	ArtworkUpdated  int
	PlayCountsSync  int
	RatingsSync     int
	// Skipped lists per-file failures that did not stop the sync.
	Skipped []string
	// DatabaseBytes is the emitted database size.
	DatabaseBytes int
	// IntegrityFixes echoes the plan's informational fix list.
	IntegrityFixes []string
}

// pendingAdd remembers what stage 4 staged so the commit can create the
// mapping entry once the database writer assigns the dbid.
type pendingAdd struct {
	trackIndex int
	action     diffengine.Action
	formatInfo string
}

// Run executes the plan. The plan is read-only; all mutation happens on
// the working set, the device filesystem, and (at commit) the mapping.
func (e *Executor) Run(ctx context.Context, plan *diffengine.Plan) (*Result, error) {
	if e.Reporter == nil {
		e.Reporter = progress.Nop{}
	}
	result := &Result{IntegrityFixes: plan.IntegrityFixes}

	if err := e.preflightStorage(plan); err != nil {
		return result, err
	}

	recordPlanMetrics(plan)

	var pending []pendingAdd
	stages := []struct {
		name string
		run  func(context.Context, *diffengine.Plan, *Result) error
	}{
		{"remove", e.stageRemove},
		{"update-files", e.stageUpdateFiles},
		{"update-metadata", e.stageUpdateMetadata},
		{"update-artwork", e.stageUpdateArtwork},
		{"add", func(ctx context.Context, p *diffengine.Plan, r *Result) error {
			added, err := e.stageAdd(ctx, p, r)
			pending = append(pending, added...)
			return err
		}},
		{"play-counts", e.stagePlayCounts},
		{"ratings", e.stageRatings},
	}
	for _, s := range stages {
		if err := e.runStage(ctx, s.name, plan, result, s.run); err != nil {
			return result, err
		}
	}

	if err := e.runStage(ctx, "write", plan, result,
		func(ctx context.Context, p *diffengine.Plan, r *Result) error {
			return e.commit(p, r, pending)
		}); err != nil {
		return result, err
	}

	metrics.SetDeviceTracks(len(e.DB.Tracks))
	return result, nil
}

func (e *Executor) runStage(ctx context.Context, name string, plan *diffengine.Plan, result *Result, fn func(context.Context, *diffengine.Plan, *Result) error) error {
	metrics.IncStageStarted(name)
	start := time.Now()
	err := fn(ctx, plan, result)
	metrics.ObserveStageDuration(name, time.Since(start))
	if err != nil {
		metrics.IncStageFailed(name)
		return err
	}
	metrics.IncStageCompleted(name)
	return nil
}

func (e *Executor) checkCancel() error {
	if e.Reporter.IsCanceled() {
		return syncerr.Cancelled
	}
	return nil
}

// preflightStorage refuses a run whose additions cannot fit with headroom
// to spare, before any file is touched.
func (e *Executor) preflightStorage(plan *diffengine.Plan) error {
	if len(plan.Adds) == 0 {
		return nil
	}
	free, err := e.Device.FreeBytes()
	if err != nil {
		return fmt.Errorf("executor: checking free space: %w", err)
	}
	required := plan.Storage.BytesToAdd - plan.Storage.BytesToRemove + headroomBytes
	if free < required {
		return syncerr.New(syncerr.KindStorageInsufficient,
			fmt.Errorf("executor: need %d bytes free, have %d", required, free))
	}
	return nil
}

func recordPlanMetrics(plan *diffengine.Plan) {
	metrics.AddActionsPlanned("add", len(plan.Adds))
	metrics.AddActionsPlanned("remove", len(plan.Removes))
	metrics.AddActionsPlanned("update-file", len(plan.FileUpdates))
	metrics.AddActionsPlanned("update-metadata", len(plan.MetadataUpdates))
	metrics.AddActionsPlanned("update-artwork", len(plan.ArtworkUpdates))
	metrics.AddActionsPlanned("sync-play-count", len(plan.PlayCountSyncs))
	metrics.AddActionsPlanned("sync-rating", len(plan.RatingSyncs))
	metrics.SetPlanStorage(plan.Storage.BytesToAdd, plan.Storage.BytesToRemove, plan.Storage.NetChange)
}

func (e *Executor) trackByDBID(dbid uint64) *itunesdb.Track {
	for _, t := range e.DB.Tracks {
		if t.DBID == dbid {
			return t
		}
	}
	return nil
}

func (e *Executor) skip(result *Result, kind string, err error) {
	result.Skipped = append(result.Skipped, err.Error())
	metrics.IncActionSkipped(kind)
	e.Reporter.Log("warn", err.Error())
}

// stageRemove deletes files, tracks, and mapping entries for everything
// the library no longer has, then sweeps mapping entries left dangling.
func (e *Executor) stageRemove(ctx context.Context, plan *diffengine.Plan, result *Result) error {
	for i, act := range plan.Removes {
		if err := e.checkCancel(); err != nil {
			return err
		}
		e.Reporter.UpdateProgress(i+1, len(plan.Removes), "removing "+act.String())

		if t := e.trackByDBID(act.DBID); t != nil {
			if t.Location != "" {
				path := e.Device.LocationToPath(t.Location)
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("executor: deleting %s: %w", path, err)
				}
			}
			e.removeTrack(t)
		}
		e.Mapping.Remove(act.Fingerprint, act.DBID)
		result.Removed++
	}

	// Sweep: entries whose dbid no longer resolves are dead weight.
	known := map[uint64]bool{}
	for _, t := range e.DB.Tracks {
		known[t.DBID] = true
	}
	for _, fp := range e.Mapping.AllFingerprints() {
		// Snapshot: Remove shifts the live slice under the iteration.
		entries := append([]mapping.Entry(nil), e.Mapping.Entries(fp)...)
		for _, entry := range entries {
			if !known[entry.DBID] {
				e.Mapping.Remove(fp, entry.DBID)
			}
		}
	}
	return nil
}

func (e *Executor) removeTrack(track *itunesdb.Track) {
	kept := e.DB.Tracks[:0]
	for _, t := range e.DB.Tracks {
		if t != track {
			kept = append(kept, t)
		}
	}
	e.DB.Tracks = kept
	for _, p := range e.DB.Playlists {
		items := p.Items[:0]
		for _, item := range p.Items {
			if item.TrackID != track.TrackID {
				items = append(items, item)
			}
		}
		p.Items = items
	}
}

// stageUpdateFiles replaces the device-side rendition of tracks whose
// source file changed.
func (e *Executor) stageUpdateFiles(ctx context.Context, plan *diffengine.Plan, result *Result) error {
	for i, act := range plan.FileUpdates {
		if err := e.checkCancel(); err != nil {
			return err
		}
		e.Reporter.UpdateProgress(i+1, len(plan.FileUpdates), "re-syncing "+act.Source.RelPath)

		track := e.trackByDBID(act.DBID)
		if track == nil {
			continue
		}
		if track.Location != "" {
			old := e.Device.LocationToPath(track.Location)
			if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
				e.skip(result, "update-file", fmt.Errorf("executor: deleting %s: %v", old, err))
				continue
			}
		}
		// The source changed, so any cached transcode of it is stale.
		e.Engine.Invalidate(act.Fingerprint)

		placed, location, target, err := e.stageFile(ctx, act.Source, act.Fingerprint)
		if err != nil {
			e.skip(result, "update-file", err)
			continue
		}
		applyFileFacts(track, act.Source, placed, location, target)

		entry := *act.Entry
		entry.SourceSize = act.Source.Size
		entry.SourceMTime = act.Source.MTime.Unix()
		entry.SourcePathHint = act.Source.RelPath
		entry.FormatInfo = transcode.FormatInfo(target, act.Source.Ext, e.Engine.BitrateKbps)
		e.Mapping.Upsert(act.Fingerprint, entry)
		result.FilesUpdated++
	}
	return nil
}

// stageFile produces the device-ready rendition of a PC file and places
// it into a hashed music folder.
func (e *Executor) stageFile(ctx context.Context, src *metadataprovider.PCTrack, fp string) (string, string, transcode.Target, error) {
	prepared, target, err := e.Engine.Prepare(ctx, src.Path, src.Ext, fp)
	if err != nil {
		return "", "", target, err
	}
	outExt := transcode.OutputExt(target, src.Ext)
	placed, location, err := e.Placer.Place(prepared, outExt)
	if err != nil {
		return "", "", target, syncerr.NewFile(syncerr.KindCopyFailed, src.Path, err)
	}
	return placed, location, target, nil
}

// applyFileFacts refreshes the track's file-level fields after a copy or
// transcode.
func applyFileFacts(track *itunesdb.Track, src *metadataprovider.PCTrack, placed, location string, target transcode.Target) {
	track.Location = location
	if info, err := os.Stat(placed); err == nil {
		track.Size = uint32(info.Size())
	}
	track.FileType = fileTypeWord(placed)
	track.DurationMS = uint32(src.DurationMS)
	track.BitrateKbps = uint32(src.BitrateKbps)
	track.SampleRateHz = uint32(src.SampleRateHz)
	if track.SampleRateHz == 0 {
		track.SampleRateHz = 44100
	}
	if target != transcode.TargetCopy {
		// The device-side container is no longer the source's.
		track.BitrateKbps = 0
	}
}

func fileTypeWord(path string) string {
	ext := filepath.Ext(path)
	if len(ext) > 1 {
		ext = ext[1:]
	}
	word := ""
	for _, r := range ext {
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		word += string(r)
	}
	if len(word) > 4 {
		word = word[:4]
	}
	return word
}

// stageUpdateMetadata applies changed tag fields to tracks and refreshes
// the mapping's file facts so the next run doesn't see a phantom file
// change from the retag's mtime bump.
func (e *Executor) stageUpdateMetadata(ctx context.Context, plan *diffengine.Plan, result *Result) error {
	for i, act := range plan.MetadataUpdates {
		if err := e.checkCancel(); err != nil {
			return err
		}
		e.Reporter.UpdateProgress(i+1, len(plan.MetadataUpdates), "updating tags for "+act.Source.RelPath)

		track := e.trackByDBID(act.DBID)
		if track == nil {
			continue
		}
		applyMetadata(track, act.Source, act.ChangedFields)

		entry := *act.Entry
		entry.SourceSize = act.Source.Size
		entry.SourceMTime = act.Source.MTime.Unix()
		entry.SourcePathHint = act.Source.RelPath
		e.Mapping.Upsert(act.Fingerprint, entry)
		result.MetadataUpdated++
	}
	return nil
}

func applyMetadata(track *itunesdb.Track, src *metadataprovider.PCTrack, fields []string) {
	for _, f := range fields {
		switch f {
		case "title":
			track.Title = src.Title
		case "artist":
			track.Artist = src.Artist
		case "album":
			track.Album = src.Album
		case "album_artist":
			track.AlbumArtist = src.AlbumArtist
		case "genre":
			track.Genre = src.Genre
		case "year":
			track.Year = uint16(src.Year)
		case "track_number":
			track.TrackNumber = uint16(src.TrackNumber)
		case "disc_number":
			track.DiscNumber = uint16(src.DiscNumber)
		}
	}
}

// stageUpdateArtwork records the new artwork hash in the mapping; the
// pixels themselves are regenerated in the commit when the rewrite flag
// is set.
func (e *Executor) stageUpdateArtwork(ctx context.Context, plan *diffengine.Plan, result *Result) error {
	for i, act := range plan.ArtworkUpdates {
		if err := e.checkCancel(); err != nil {
			return err
		}
		e.Reporter.UpdateProgress(i+1, len(plan.ArtworkUpdates), "updating artwork for "+act.Source.RelPath)

		entry := *act.Entry
		entry.ArtHash = act.NewArtHash
		e.Mapping.Upsert(act.Fingerprint, entry)
		result.ArtworkUpdated++
	}
	return nil
}

// stageAdd copies or transcodes new files onto the device and appends
// fresh track records. The database writer assigns dbids at emit; the
// staged bookkeeping lets the commit create mapping entries afterwards.
func (e *Executor) stageAdd(ctx context.Context, plan *diffengine.Plan, result *Result) ([]pendingAdd, error) {
	var pending []pendingAdd
	for i, act := range plan.Adds {
		if err := e.checkCancel(); err != nil {
			return pending, err
		}
		e.Reporter.UpdateProgress(i+1, len(plan.Adds), "adding "+act.Source.RelPath)

		placed, location, target, err := e.stageFile(ctx, act.Source, act.Fingerprint)
		if err != nil {
			e.skip(result, "add", err)
			continue
		}

		track := newTrack(act.Source, placed, location, target)
		e.DB.Tracks = append(e.DB.Tracks, track)
		pending = append(pending, pendingAdd{
			trackIndex: len(e.DB.Tracks) - 1,
			action:     act,
			formatInfo: transcode.FormatInfo(target, act.Source.Ext, e.Engine.BitrateKbps),
		})
		result.Added++
	}
	return pending, nil
}

func newTrack(src *metadataprovider.PCTrack, placed, location string, target transcode.Target) *itunesdb.Track {
	t := &itunesdb.Track{
		Title:        src.Title,
		Artist:       src.Artist,
		Album:        src.Album,
		AlbumArtist:  src.AlbumArtist,
		Genre:        src.Genre,
		Composer:     src.Composer,
		Comment:      src.Comment,
		Year:         uint16(src.Year),
		TrackNumber:  uint16(src.TrackNumber),
		TrackCount:   uint16(src.TrackTotal),
		DiscNumber:   uint16(src.DiscNumber),
		DiscCount:    uint16(src.DiscTotal),
		Rating:       src.Rating,
		MediaType:    itunesdb.MediaTypeAudio,
		DateAddedMac: deviceio.ToMacTime(time.Now()),
	}
	if src.Ext == "m4b" {
		t.MediaType = itunesdb.MediaTypeAudiobook
	}
	applyFileFacts(t, src, placed, location, target)
	return t
}

// stagePlayCounts folds the device's since-last-sync counters into the
// cumulative counts and optionally writes them back to the PC files.
func (e *Executor) stagePlayCounts(ctx context.Context, plan *diffengine.Plan, result *Result) error {
	for i, act := range plan.PlayCountSyncs {
		if err := e.checkCancel(); err != nil {
			return err
		}
		e.Reporter.UpdateProgress(i+1, len(plan.PlayCountSyncs), "syncing play counts")

		track := e.trackByDBID(act.DBID)
		if track == nil {
			continue
		}
		if e.TagWriter != nil && act.Source != nil {
			total := int(track.PlayCount + act.PlayCountDelta)
			if err := e.TagWriter.WritePlayCount(act.Source.Path, total); err != nil {
				e.skip(result, "sync-play-count", fmt.Errorf("executor: play-count write-back for %s: %v", act.Source.Path, err))
			}
		}
		result.PlayCountsSync++
	}

	// Every track folds, not just the planned ones: the counter resets on
	// emit regardless of whether a write-back was requested.
	for _, t := range e.DB.Tracks {
		if t.PlayCount2 > 0 {
			t.PlayCount += t.PlayCount2
			t.PlayCount2 = 0
		}
	}
	return nil
}

// stageRatings applies the resolved ratings (device wins) and optionally
// writes them back to the PC files.
func (e *Executor) stageRatings(ctx context.Context, plan *diffengine.Plan, result *Result) error {
	for i, act := range plan.RatingSyncs {
		if err := e.checkCancel(); err != nil {
			return err
		}
		e.Reporter.UpdateProgress(i+1, len(plan.RatingSyncs), "syncing ratings")

		track := e.trackByDBID(act.DBID)
		if track == nil {
			continue
		}
		track.Rating = act.ResolvedRating
		if e.TagWriter != nil && act.Source != nil {
			if err := e.TagWriter.WriteRating(act.Source.Path, act.ResolvedRating); err != nil {
				e.skip(result, "sync-rating", fmt.Errorf("executor: rating write-back for %s: %v", act.Source.Path, err))
			}
		}
		result.RatingsSync++
	}
	return nil
}

// commit is the single persistence point: artwork rewrite, database emit,
// signing, atomic replace, then mapping entries for the new tracks and
// the mapping save. A failure anywhere before the rename leaves the
// previous database and mapping untouched.
func (e *Executor) commit(plan *diffengine.Plan, result *Result, pending []pendingAdd) error {
	if plan.RewriteArtwork && e.ArtworkWriter != nil {
		if err := e.rewriteArtwork(result, pending); err != nil {
			return err
		}
	}

	buf, assigned, err := itunesdb.Emit(e.DB)
	if err != nil {
		return syncerr.New(syncerr.KindCodecInvariant, err)
	}

	if e.Profile != nil {
		if err := e.sign(buf); err != nil {
			return err
		}
	}

	if err := fileops.ReplaceWithBackup(e.Device.DatabasePath(), e.Device.DatabaseBackupPath(), buf); err != nil {
		return syncerr.New(syncerr.KindAtomicWriteFailed, err)
	}
	result.DatabaseBytes = len(buf)

	// The device has a fresh database; its pending play events are now
	// folded in and must not be double-counted next mount.
	if err := deviceio.ResetPlayCounts(e.Device.PlayCountsPath()); err != nil {
		e.Reporter.Log("warn", err.Error())
	}

	for _, p := range pending {
		track := e.DB.Tracks[p.trackIndex]
		dbid := track.DBID
		if a, ok := assigned[p.trackIndex]; ok {
			dbid = a.DBID
		}
		e.Mapping.Upsert(p.action.Fingerprint, mapping.Entry{
			DBID:           dbid,
			AlbumKey:       p.action.AlbumKey,
			SourcePathHint: p.action.Source.RelPath,
			SourceSize:     p.action.Source.Size,
			SourceMTime:    p.action.Source.MTime.Unix(),
			ArtHash:        p.action.Source.ArtHash,
			FormatInfo:     p.formatInfo,
		})
	}

	if err := e.Mapping.Save(); err != nil {
		return syncerr.New(syncerr.KindAtomicWriteFailed, err)
	}
	return nil
}

func (e *Executor) sign(buf []byte) error {
	switch e.Profile.Checksum {
	case deviceio.ChecksumNone:
		return nil
	case deviceio.ChecksumHash58:
		return signer.SignHash58(buf, e.Profile.SysInfo.FirewireGUID)
	case deviceio.ChecksumHash72:
		hi := e.Profile.HashInfo
		return signer.SignHash72(buf, hi.IV, hi.RndPart)
	case deviceio.ChecksumBoth:
		hi := e.Profile.HashInfo
		return signer.SignClassic(buf, e.Profile.SysInfo.FirewireGUID, hi.IV, hi.RndPart)
	default:
		return syncerr.New(syncerr.KindSignerInputMissing,
			fmt.Errorf("executor: cannot sign for checksum type %s", e.Profile.Checksum))
	}
}

// rewriteArtwork regenerates the entire artwork database from the PC
// sources and links every track to its image record.
func (e *Executor) rewriteArtwork(result *Result, pending []pendingAdd) error {
	artByDBID := map[uint64][]byte{}

	// Freshly scanned sources carry their image bytes already.
	collect := func(dbid uint64, src *metadataprovider.PCTrack) {
		if src != nil && len(src.ArtworkBytes()) > 0 {
			artByDBID[dbid] = src.ArtworkBytes()
		}
	}
	for _, p := range pending {
		collect(e.DB.Tracks[p.trackIndex].DBID, p.action.Source)
	}

	// Everything else resolves through the mapping's path hint.
	for _, t := range e.DB.Tracks {
		if _, ok := artByDBID[t.DBID]; ok {
			continue
		}
		_, entry, ok := e.Mapping.ByDBID(t.DBID)
		if !ok || entry.SourcePathHint == "" || e.Provider == nil {
			continue
		}
		for _, root := range e.LibraryRoots {
			path := filepath.Join(root, filepath.FromSlash(entry.SourcePathHint))
			if _, err := os.Stat(path); err != nil {
				continue
			}
			src, err := e.Provider.Read(path)
			if err == nil {
				collect(t.DBID, src)
			}
			break
		}
	}

	sources := make([]artwork.Source, 0, len(artByDBID))
	for _, t := range e.DB.Tracks {
		if data, ok := artByDBID[t.DBID]; ok {
			sources = append(sources, artwork.Source{DBID: t.DBID, ImageData: data})
		}
	}

	links, skipped, err := e.ArtworkWriter.Write(sources)
	if err != nil {
		return fmt.Errorf("executor: rewriting artwork: %w", err)
	}
	for _, s := range skipped {
		e.skip(result, "artwork", fmt.Errorf("executor: artwork: %s", s))
	}
	for _, t := range e.DB.Tracks {
		if link, ok := links[t.DBID]; ok {
			t.MhiiLink = link.ImageID
			t.ArtworkCount = 1
		} else {
			t.MhiiLink = 0
			t.ArtworkCount = 0
		}
	}
	return nil
}

// ApplyPlayCounts folds the device's Play Counts file into the parsed
// database before the diff runs. Entries are positional over the track
// list; the device also records click-wheel rating changes here.
func ApplyPlayCounts(db *itunesdb.Database, entries []deviceio.PlayCountEntry) {
	for i, entry := range entries {
		if i >= len(db.Tracks) {
			break
		}
		t := db.Tracks[i]
		if entry.PlayCount > 0 {
			t.PlayCount2 += entry.PlayCount
			if entry.LastPlayed > t.LastPlayedMac {
				t.LastPlayedMac = entry.LastPlayed
			}
		}
		if entry.Rating <= 100 && entry.Rating != 0 && uint8(entry.Rating) != t.Rating {
			t.Rating = uint8(entry.Rating)
		}
	}
}
