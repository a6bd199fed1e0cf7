package domain

import (
	"fmt"
	"time"
)

// AssetKind enumerates stored file categories.
type AssetKind string

const (
	AssetKindOriginal     AssetKind = "original"
	AssetKindPreprocessed AssetKind = "preprocessed"
	AssetKindEdgeMap      AssetKind = "edge_map"
	AssetKindPDF          AssetKind = "pdf"
)

// Asset represents a stored file correlated to a job by its storage path.
// Assets are immutable once created.
type Asset struct {
	ID          string
	UserID      string
	JobID       string
	Kind        AssetKind
	StoragePath string
	ByteSize    int64
	Width       int
	Height      int
	CreatedAt   time.Time
}

// Storage paths are deterministic: {user_id}/{job_id}/<fixed name>. Any asset
// can be located from (user_id, job_id, kind) without a secondary index, and
// the exact names below are relied upon by path-based lookups.

// EdgeImagePath is the location of a job's generated line-art image.
func EdgeImagePath(userID, jobID string) string {
	return fmt.Sprintf("%s/%s/edge.png", userID, jobID)
}

// PDFPath is the location of a job's rendered coloring-page document.
func PDFPath(userID, jobID string) string {
	return fmt.Sprintf("%s/%s/coloring-page.pdf", userID, jobID)
}
