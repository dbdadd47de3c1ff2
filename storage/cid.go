package storage

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ComputeCID returns the CIDv1 (raw codec, sha2-256) string for data.
func ComputeCID(data []byte) (string, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("storage: multihash: %w", err)
	}
	return cid.NewCidV1(cid.Raw, sum).String(), nil
}

// ParseCID validates s and returns it in canonical string form.
func ParseCID(s string) (string, error) {
	id, err := cid.Decode(s)
	if err != nil || !id.Defined() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCID, s)
	}
	return id.String(), nil
}

// VerifyCID checks that data hashes to want.
func VerifyCID(want string, data []byte) error {
	got, err := ComputeCID(data)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: want %s, got %s", ErrCIDMismatch, want, got)
	}
	return nil
}
