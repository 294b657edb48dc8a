// file: internal/diffengine/diff.go
// version: 1.0.0
// guid: 8f9a0b1c-2d3e-4f4a-5b6c-7d8e9f0a1b2c

// Package diffengine compares the PC library against the device and
// produces the plan of mutations that reconciles them. Identity is the
// pair (acoustic fingerprint, normalized album title): the fingerprint
// survives re-tagging, renaming, and re-encoding, and the album key keeps
// the same recording on two albums from collapsing into one track.
package diffengine

import (
	"fmt"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/TheRealSavi/iOpenPod/internal/itunesdb"
	"github.com/TheRealSavi/iOpenPod/internal/mapping"
	"github.com/TheRealSavi/iOpenPod/internal/metadataprovider"
)

// fileSizeSlackBytes and fileSizeSlackRatio define the size-change
// threshold: a file counts as changed only when its size moved by more
// than max(1% of the recorded size, 10 KB) and its mtime differs.
const (
	fileSizeSlackBytes = 10 * 1024
	fileSizeSlackRatio = 100 // denominator: recorded size / 100 = 1%
)

type group struct {
	fingerprint string
	albumKey    string
	canonical   *metadataprovider.PCTrack
	duplicates  []*metadataprovider.PCTrack
}

// Diff matches the scanned PC tracks against the mapping and the device
// database and returns the categorized plan. It never mutates its inputs.
func Diff(pcTracks []*metadataprovider.PCTrack, db *itunesdb.Database, store *mapping.Store) *Plan {
	plan := &Plan{}

	trackByDBID := map[uint64]*itunesdb.Track{}
	for _, t := range db.Tracks {
		trackByDBID[t.DBID] = t
	}

	groups := groupTracks(pcTracks, plan)

	// claimed[fp][i] marks store.Entries(fp)[i] as matched to a PC group.
	claimed := map[string][]bool{}
	// contested entries belong to an unresolved collision; they must not
	// fall through to removal.
	contested := map[string][]bool{}
	claimSlots := func(fp string) []bool {
		if _, ok := claimed[fp]; !ok {
			claimed[fp] = make([]bool, len(store.Entries(fp)))
			contested[fp] = make([]bool, len(store.Entries(fp)))
		}
		return claimed[fp]
	}

	for _, g := range groups {
		entries := store.Entries(g.fingerprint)
		slots := claimSlots(g.fingerprint)

		var candidates []int
		for i, e := range entries {
			if !slots[i] && e.AlbumKey == g.albumKey {
				candidates = append(candidates, i)
			}
		}

		switch {
		case len(candidates) == 0:
			plan.Adds = append(plan.Adds, Action{
				Kind:        ActionAdd,
				Fingerprint: g.fingerprint,
				AlbumKey:    g.albumKey,
				Source:      g.canonical,
				SizeDelta:   g.canonical.Size,
			})
			plan.Storage.BytesToAdd += g.canonical.Size

		case len(candidates) == 1:
			slots[candidates[0]] = true
			entry := entries[candidates[0]]
			diffMatched(plan, g, &entry, trackByDBID[entry.DBID])

		default:
			// Several unclaimed entries share the album key; the stored
			// path hint is the tiebreaker.
			matched := -1
			for _, i := range candidates {
				if entries[i].SourcePathHint == g.canonical.RelPath {
					matched = i
					break
				}
			}
			if matched >= 0 {
				slots[matched] = true
				entry := entries[matched]
				diffMatched(plan, g, &entry, trackByDBID[entry.DBID])
				break
			}
			hints := make([]string, 0, len(candidates))
			for _, i := range candidates {
				contested[g.fingerprint][i] = true
				hints = append(hints, entries[i].SourcePathHint)
			}
			ranked := fuzzy.RankFindNormalizedFold(g.canonical.RelPath, hints)
			sort.Sort(ranked)
			ordered := make([]string, 0, len(hints))
			for _, r := range ranked {
				ordered = append(ordered, r.Target)
			}
			for _, h := range hints {
				if !containsString(ordered, h) {
					ordered = append(ordered, h)
				}
			}
			plan.UnresolvedCollisions = append(plan.UnresolvedCollisions, Collision{
				Fingerprint:    g.fingerprint,
				AlbumKey:       g.albumKey,
				PCPath:         g.canonical.RelPath,
				CandidateHints: ordered,
			})
		}
	}

	// Everything in the mapping that no PC group claimed is gone from the
	// library, except entries held back by an unresolved collision.
	fps := store.AllFingerprints()
	sort.Strings(fps)
	for _, fp := range fps {
		entries := store.Entries(fp)
		slots := claimSlots(fp)
		for i, e := range entries {
			if slots[i] || contested[fp][i] {
				continue
			}
			entry := e
			act := Action{
				Kind:        ActionRemove,
				DBID:        e.DBID,
				Fingerprint: fp,
				AlbumKey:    e.AlbumKey,
				Entry:       &entry,
			}
			if t := trackByDBID[e.DBID]; t != nil {
				act.SizeDelta = -int64(t.Size)
				plan.Storage.BytesToRemove += int64(t.Size)
			}
			plan.Removes = append(plan.Removes, act)
		}
	}

	plan.RewriteArtwork = len(plan.MissingArtwork) > 0 || len(plan.ArtworkUpdates) > 0
	plan.Storage.NetChange = plan.Storage.BytesToAdd + plan.Storage.BytesToUpdate - plan.Storage.BytesToRemove
	return plan
}

// groupTracks buckets the PC tracks by identity. The first file seen for a
// key is the canonical source; later ones are true duplicates, reported
// but never synced.
func groupTracks(pcTracks []*metadataprovider.PCTrack, plan *Plan) []*group {
	byKey := map[string]*group{}
	var ordered []*group
	for _, t := range pcTracks {
		if t.Fingerprint == "" {
			continue
		}
		albumKey := AlbumKey(t.Album)
		key := t.Fingerprint + "\x00" + albumKey
		if g, ok := byKey[key]; ok {
			g.duplicates = append(g.duplicates, t)
			continue
		}
		g := &group{fingerprint: t.Fingerprint, albumKey: albumKey, canonical: t}
		byKey[key] = g
		ordered = append(ordered, g)
	}
	for _, g := range ordered {
		if len(g.duplicates) > 0 {
			paths := []string{g.canonical.RelPath}
			for _, d := range g.duplicates {
				paths = append(paths, d.RelPath)
			}
			plan.DuplicateGroups = append(plan.DuplicateGroups, paths)
		}
	}
	return ordered
}

// diffMatched emits the independent per-aspect actions for a PC track that
// matched a mapping entry. track is the device-side record; nil means the
// entry dangles (the integrity pass removes those before the diff runs, so
// a nil here is treated as no device state to compare against).
func diffMatched(plan *Plan, g *group, entry *mapping.Entry, track *itunesdb.Track) {
	pc := g.canonical

	if fileChanged(pc, entry) {
		act := Action{
			Kind:        ActionUpdateFile,
			DBID:        entry.DBID,
			Fingerprint: g.fingerprint,
			AlbumKey:    g.albumKey,
			Source:      pc,
			Entry:       entry,
		}
		if track != nil {
			act.SizeDelta = pc.Size - int64(track.Size)
		}
		plan.FileUpdates = append(plan.FileUpdates, act)
		plan.Storage.BytesToUpdate += act.SizeDelta
	}

	if track != nil {
		if changed := changedMetadataFields(pc, track); len(changed) > 0 {
			plan.MetadataUpdates = append(plan.MetadataUpdates, Action{
				Kind:          ActionUpdateMetadata,
				DBID:          entry.DBID,
				Fingerprint:   g.fingerprint,
				AlbumKey:      g.albumKey,
				Source:        pc,
				Entry:         entry,
				ChangedFields: changed,
			})
		}
	}

	if pc.ArtHash != entry.ArtHash {
		plan.ArtworkUpdates = append(plan.ArtworkUpdates, Action{
			Kind:        ActionUpdateArtwork,
			DBID:        entry.DBID,
			Fingerprint: g.fingerprint,
			AlbumKey:    g.albumKey,
			Source:      pc,
			Entry:       entry,
			NewArtHash:  pc.ArtHash,
		})
	}

	if track != nil {
		if track.PlayCount2 > 0 {
			plan.PlayCountSyncs = append(plan.PlayCountSyncs, Action{
				Kind:           ActionSyncPlayCount,
				DBID:           entry.DBID,
				Fingerprint:    g.fingerprint,
				Source:         pc,
				Entry:          entry,
				PlayCountDelta: track.PlayCount2,
			})
		}
		// The device's rating wins: the user rated on the click wheel
		// more recently than the PC library was tagged.
		if track.Rating != pc.Rating && (track.Rating != 0 || pc.Rating != 0) {
			plan.RatingSyncs = append(plan.RatingSyncs, Action{
				Kind:           ActionSyncRating,
				DBID:           entry.DBID,
				Fingerprint:    g.fingerprint,
				Source:         pc,
				Entry:          entry,
				ResolvedRating: track.Rating,
			})
		}
		if track.ArtworkCount == 0 || track.MhiiLink == 0 {
			plan.MissingArtwork = append(plan.MissingArtwork, entry.DBID)
		}
	}
}

// fileChanged applies the size-and-mtime rule. Both legs must trip: a
// retagged file changes mtime but barely moves in size, and a restored
// backup can change size while keeping its recorded mtime.
func fileChanged(pc *metadataprovider.PCTrack, entry *mapping.Entry) bool {
	sizeDiff := pc.Size - entry.SourceSize
	if sizeDiff < 0 {
		sizeDiff = -sizeDiff
	}
	threshold := entry.SourceSize / fileSizeSlackRatio
	if threshold < fileSizeSlackBytes {
		threshold = fileSizeSlackBytes
	}
	return sizeDiff > threshold && pc.MTime.Unix() != entry.SourceMTime
}

// changedMetadataFields compares the eight synced fields and names the
// ones that differ.
func changedMetadataFields(pc *metadataprovider.PCTrack, track *itunesdb.Track) []string {
	var changed []string
	if pc.Title != track.Title {
		changed = append(changed, "title")
	}
	if pc.Artist != track.Artist {
		changed = append(changed, "artist")
	}
	if pc.Album != track.Album {
		changed = append(changed, "album")
	}
	if pc.AlbumArtist != track.AlbumArtist {
		changed = append(changed, "album_artist")
	}
	if pc.Genre != track.Genre {
		changed = append(changed, "genre")
	}
	if pc.Year != int(track.Year) {
		changed = append(changed, "year")
	}
	if pc.TrackNumber != int(track.TrackNumber) {
		changed = append(changed, "track_number")
	}
	if pc.DiscNumber != int(track.DiscNumber) {
		changed = append(changed, "disc_number")
	}
	return changed
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Describe renders a one-line-per-action summary for the CLI's dry run.
func Describe(p *Plan) []string {
	var lines []string
	add := func(actions []Action) {
		for _, a := range actions {
			lines = append(lines, a.String())
		}
	}
	add(p.Adds)
	add(p.Removes)
	add(p.FileUpdates)
	add(p.MetadataUpdates)
	add(p.ArtworkUpdates)
	add(p.PlayCountSyncs)
	add(p.RatingSyncs)
	for _, c := range p.UnresolvedCollisions {
		lines = append(lines, fmt.Sprintf("unresolved: %s (album %q) matches %d entries", c.PCPath, c.AlbumKey, len(c.CandidateHints)))
	}
	return lines
}
