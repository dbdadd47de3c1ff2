// Package ledger records file metadata on an append/remove-only ledger
// keyed by owner address.
//
// Sizes and scores are stored as integers scaled by ScaleFactor so that two
// decimal places survive any backend's numeric type. Dates use DateLayout
// (DD-MM-YYYY).
package ledger

import (
	"math"
	"time"
)

const (
	// ScaleFactor is the fixed-point multiplier for FileSize and Score.
	ScaleFactor = 100

	// DateLayout is the Go layout for DD-MM-YYYY.
	DateLayout = "02-01-2006"

	bytesPerMB = 1024 * 1024
)

// FileRecord is the metadata stored per uploaded file.
type FileRecord struct {
	Owner              string
	CID                string
	FileName           string
	FileType           string
	FileSize           int64 // megabytes x ScaleFactor
	ContentDescription string
	Date               string // DateLayout
	Score              int64  // score x ScaleFactor

	// Index is the record's position in the owner's list at read time.
	// It shifts after any removal and is never persisted.
	Index int
}

// SizeMB returns FileSize with the scale divided out.
func (r FileRecord) SizeMB() float64 { return Unscale(r.FileSize) }

// ScoreValue returns Score with the scale divided out.
func (r FileRecord) ScoreValue() float64 { return Unscale(r.Score) }

// Receipt identifies the ledger transaction that carried a write.
type Receipt struct {
	TxID string

	// Confirmed is false while the write is not yet durable on the ledger.
	Confirmed bool
}

// Scale converts v to fixed point, rounding to the nearest integer.
func Scale(v float64) int64 {
	return int64(math.Round(v * ScaleFactor))
}

// Scalable reports whether v converts to fixed point without overflowing.
func Scalable(v float64) bool {
	return !math.IsNaN(v) && math.Abs(v*ScaleFactor) < math.MaxInt64
}

// Unscale converts a fixed-point integer back to a float.
func Unscale(n int64) float64 {
	return float64(n) / ScaleFactor
}

// SizeMB converts a byte count to megabytes rounded to two decimals.
func SizeMB(nbytes int) float64 {
	return math.Round(float64(nbytes)/bytesPerMB*ScaleFactor) / ScaleFactor
}

// FormatDate renders t in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// withIndexes assigns read-time positions.
func withIndexes(recs []FileRecord) []FileRecord {
	for i := range recs {
		recs[i].Index = i
	}
	return recs
}
