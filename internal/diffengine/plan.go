// file: internal/diffengine/plan.go
// version: 1.0.0
// guid: 7e8f9a0b-1c2d-4e3f-4a5b-6c7d8e9f0a1b

package diffengine

import (
	"fmt"

	"github.com/TheRealSavi/iOpenPod/internal/mapping"
	"github.com/TheRealSavi/iOpenPod/internal/metadataprovider"
)

// ActionKind discriminates a planned mutation.
type ActionKind int

const (
	ActionAdd ActionKind = iota
	ActionRemove
	ActionUpdateFile
	ActionUpdateMetadata
	ActionUpdateArtwork
	ActionSyncPlayCount
	ActionSyncRating
)

func (k ActionKind) String() string {
	switch k {
	case ActionAdd:
		return "add"
	case ActionRemove:
		return "remove"
	case ActionUpdateFile:
		return "update-file"
	case ActionUpdateMetadata:
		return "update-metadata"
	case ActionUpdateArtwork:
		return "update-artwork"
	case ActionSyncPlayCount:
		return "sync-play-count"
	case ActionSyncRating:
		return "sync-rating"
	default:
		return "unknown"
	}
}

// Action is one planned mutation. Source is the PC record that motivated
// it (nil for removals of tracks no longer in the library); Entry is the
// matched mapping entry, if any.
type Action struct {
	Kind        ActionKind
	DBID        uint64 // zero for Add; assigned by the database writer
	Fingerprint string
	AlbumKey    string

	Source *metadataprovider.PCTrack
	Entry  *mapping.Entry

	// ChangedFields names the metadata fields that differ (update-metadata).
	ChangedFields []string
	// NewArtHash is the PC side's artwork hash (update-artwork); empty
	// means the artwork was removed.
	NewArtHash string
	// PlayCountDelta is the device-side play count since the last sync.
	PlayCountDelta uint32
	// ResolvedRating is the rating that wins the sync (device side).
	ResolvedRating uint8

	// SizeDelta is the change in device storage this action causes.
	SizeDelta int64
}

func (a Action) String() string {
	switch a.Kind {
	case ActionAdd:
		return fmt.Sprintf("add %s (album %q)", a.Source.RelPath, a.AlbumKey)
	case ActionRemove:
		return fmt.Sprintf("remove dbid %016x", a.DBID)
	case ActionUpdateFile:
		return fmt.Sprintf("update file for dbid %016x from %s", a.DBID, a.Source.RelPath)
	case ActionUpdateMetadata:
		return fmt.Sprintf("update metadata for dbid %016x: %v", a.DBID, a.ChangedFields)
	case ActionUpdateArtwork:
		return fmt.Sprintf("update artwork for dbid %016x", a.DBID)
	case ActionSyncPlayCount:
		return fmt.Sprintf("fold %d plays into dbid %016x", a.PlayCountDelta, a.DBID)
	case ActionSyncRating:
		return fmt.Sprintf("set rating %d on dbid %016x", a.ResolvedRating, a.DBID)
	default:
		return a.Kind.String()
	}
}

// Collision is a fingerprint/album group the matcher could not resolve to
// a single mapping entry. No action is emitted for it.
type Collision struct {
	Fingerprint string
	AlbumKey    string
	PCPath      string
	// CandidateHints are the stored path hints of the competing entries,
	// nearest match first.
	CandidateHints []string
}

// StorageSummary totals the plan's effect on device storage.
type StorageSummary struct {
	BytesToAdd    int64
	BytesToRemove int64
	BytesToUpdate int64
	NetChange     int64
}

// Plan is the complete output of one diff run: the mutations the executor
// will perform, partitioned by kind, plus the informational sections a UI
// displays but the executor ignores.
type Plan struct {
	Adds            []Action
	Removes         []Action
	FileUpdates     []Action
	MetadataUpdates []Action
	ArtworkUpdates  []Action
	PlayCountSyncs  []Action
	RatingSyncs     []Action

	// Informational; never acted on.
	IntegrityFixes       []string
	FingerprintErrors    []string
	DuplicateGroups      [][]string
	UnresolvedCollisions []Collision
	MissingArtwork       []uint64

	// RewriteArtwork instructs the executor to regenerate the entire
	// artwork database, not just changed images.
	RewriteArtwork bool

	Storage StorageSummary
}

// Empty reports whether the plan contains no actions of any kind. Two
// back-to-back syncs of an unchanged library must produce an empty second
// plan.
func (p *Plan) Empty() bool {
	return len(p.Adds) == 0 && len(p.Removes) == 0 && len(p.FileUpdates) == 0 &&
		len(p.MetadataUpdates) == 0 && len(p.ArtworkUpdates) == 0 &&
		len(p.PlayCountSyncs) == 0 && len(p.RatingSyncs) == 0
}

// ActionCount is the total number of planned mutations.
func (p *Plan) ActionCount() int {
	return len(p.Adds) + len(p.Removes) + len(p.FileUpdates) +
		len(p.MetadataUpdates) + len(p.ArtworkUpdates) +
		len(p.PlayCountSyncs) + len(p.RatingSyncs)
}
