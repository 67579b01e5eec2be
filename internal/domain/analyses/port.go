package analyses

import "context"

// Repository port (interface untuk persistence)
type Repository interface {
	// CreateAnalysis validates the input, allocates an analysis id plus one
	// item id per input item and persists everything as a single unit of
	// work. A failed call leaves no partial record visible.
	CreateAnalysis(ctx context.Context, in NewAnalysis) (*Analysis, error)

	// GetAnalysis returns the record with all owned items, or ErrNotFound.
	GetAnalysis(ctx context.Context, id AnalysisID) (*Analysis, error)

	// ListAnalysis returns all records, or only those matching snapshotID
	// when it is non-nil, ordered by created_at desc then id desc.
	ListAnalysis(ctx context.Context, snapshotID *int64) ([]*Analysis, error)

	// Clear removes every record and resets both id counters to 1.
	Clear(ctx context.Context) error

	// ExportState produces a self-contained copy of the store, counters
	// included, sufficient for ImportState to reconstruct it exactly.
	ExportState(ctx context.Context) (*State, error)

	// ImportState atomically replaces the whole store with the given state.
	// Malformed state is rejected with ErrInvalidState before any mutation.
	ImportState(ctx context.Context, state *State) error

	Close() error
}

// StateArchive port (interface untuk offsite state backups)
type StateArchive interface {
	UploadState(ctx context.Context, key string, state *State) (string, error)
	DownloadState(ctx context.Context, key string) (*State, error)
}
