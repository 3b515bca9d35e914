package vector

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// ID is an opaque 32-byte content identifier, totally ordered and
// hashable so it can key Go maps directly.
type ID [32]byte

// NewID mints a fresh random id: a v4 UUID folded through blake3 into
// the 32-byte id space, so random and content-derived ids share one
// representation.
func NewID() ID {
	u := uuid.New()
	return blake3.Sum256(u[:])
}

// IDFromString derives a deterministic id from an arbitrary string by
// content hash, so the same input always yields the same id.
func IDFromString(s string) ID {
	return blake3.Sum256([]byte(s))
}

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Compare returns -1, 0 or 1 for a total order over ids, used for
// tie-breaking in search results and deterministic vacuum ordering.
func (id ID) Compare(other ID) int {
	return bytes.Compare(id[:], other[:])
}

func (id ID) Less(other ID) bool {
	return id.Compare(other) < 0
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(b) != len(id) {
		return fmt.Errorf("vector: invalid id %q: decoded to %d bytes, want %d", text, len(b), len(id))
	}
	copy(id[:], b)
	return nil
}
