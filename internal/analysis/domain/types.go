package domain

import (
	"errors"
	"time"
)

// Analysis is one completed license analysis: the user's instructions, the
// hosted model's raw text reply and enough metadata for history and auditing.
// ResultText is opaque display-ready markdown; it is never parsed.
type Analysis struct {
	ID           string    `db:"id" json:"id"`
	Instructions string    `db:"instructions" json:"instructions"`
	ResultText   string    `db:"result_text" json:"result_text"`
	Model        string    `db:"model" json:"model"`
	ImageSHA256  string    `db:"image_sha256" json:"image_sha256"`
	DurationMs   int64     `db:"duration_ms" json:"duration_ms"`
	Cached       bool      `db:"cached" json:"cached"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// DownloadFilename is the name of the exported text artifact.
const DownloadFilename = "license_analysis.txt"

// DownloadText renders the downloadable text artifact. The analysis body is
// reproduced verbatim under a fixed header block.
func (a *Analysis) DownloadText() string {
	return "Driver's License Analysis Results\n" +
		"--------------------------------\n\n" +
		a.ResultText + "\n"
}

// Domain errors. The caller decides how each surfaces at the HTTP boundary.
var (
	// ErrNoImage means the upload did not decode to a displayable bitmap.
	// This is the "no image" outcome, not a server fault.
	ErrNoImage = errors.New("uploaded data does not decode to an image")

	// ErrEmptyInstructions means no analysis instructions were provided.
	ErrEmptyInstructions = errors.New("analysis instructions must not be empty")

	// ErrNotFound means no analysis exists with the requested ID.
	ErrNotFound = errors.New("analysis not found")
)
