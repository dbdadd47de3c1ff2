// Package catalog resolves a selector against an owner's record listing.
package catalog

import (
	"fmt"

	"github.com/bitfsorg/filevault-go/ledger"
)

// Selector names one record, either by listing position or by CID.
type Selector struct {
	index int
	cid   string
	byCID bool
}

// ByIndex selects the record at position i in the current listing.
func ByIndex(i int) Selector { return Selector{index: i} }

// ByCID selects the most recently appended record with the given CID.
func ByCID(cid string) Selector { return Selector{cid: cid, byCID: true} }

// IsCID reports whether s selects by CID.
func (s Selector) IsCID() bool { return s.byCID }

func (s Selector) String() string {
	if s.byCID {
		return "cid " + s.cid
	}
	return fmt.Sprintf("index %d", s.index)
}

// Find returns the position in records that s selects.
//
// For ByCID the last match wins, since a later upload of the same content
// supersedes earlier metadata. Out-of-range or negative indexes are absent.
func Find(records []ledger.FileRecord, s Selector) (int, bool) {
	if s.byCID {
		for i := len(records) - 1; i >= 0; i-- {
			if records[i].CID == s.cid {
				return i, true
			}
		}
		return -1, false
	}
	if s.index < 0 || s.index >= len(records) {
		return -1, false
	}
	return s.index, true
}

// Resolve returns the record s selects.
func Resolve(records []ledger.FileRecord, s Selector) (ledger.FileRecord, bool) {
	i, ok := Find(records, s)
	if !ok {
		return ledger.FileRecord{}, false
	}
	return records[i], true
}
