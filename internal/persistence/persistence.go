// Package persistence snapshots the HNSW, IVF, and hybrid indices onto
// a storage.Driver as chunked CBOR blobs, following the layout in §6 of
// the design: one metadata.cbor per component carrying a version
// integer and component-specific header fields, plus fixed-size bulk
// chunks. Chunk payloads are optionally zstd-compressed; the metadata
// header itself never is, since it must be readable to decide how to
// decode everything else.
package persistence

import (
	"context"
	"fmt"
	"path"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/vecthorn/vecthorn/internal/errs"
	"github.com/vecthorn/vecthorn/internal/storage"
)

// CurrentVersion is the highest metadata version this build accepts.
// Loading a component whose metadata reports a higher version fails
// with PersistenceIncompatibleVersion rather than attempting to
// interpret an unknown layout.
const CurrentVersion = 1

// DefaultChunkSize is the number of nodes/entries packed per chunk file.
const DefaultChunkSize = 1000

// Options tunes how a persister lays out and encodes its chunk files.
type Options struct {
	ChunkSize int
	Compress  bool
}

// DefaultOptions chunks at DefaultChunkSize with compression off.
func DefaultOptions() Options {
	return Options{ChunkSize: DefaultChunkSize, Compress: false}
}

func (o Options) chunkSize() int {
	if o.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return o.ChunkSize
}

func encodeCBOR(v interface{}, compress bool) ([]byte, error) {
	raw, err := cbor.Marshal(v)
	if err != nil {
		return nil, err
	}
	if !compress {
		return raw, nil
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(raw, make([]byte, 0, len(raw))), nil
}

func decodeCBOR(data []byte, compress bool, v interface{}) error {
	raw := data
	if compress {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return err
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return err
		}
		raw = out
	}
	return cbor.Unmarshal(raw, v)
}

func chunkPath(root string, index int) string {
	return path.Join(root, "chunk_"+pad4(index)+".cbor")
}

// pad4 zero-pads n to at least 4 digits, matching the chunk_NNNN naming
// in §6 without pulling in fmt's width verbs at every call site.
func pad4(n int) string {
	s := fmt.Sprintf("%d", n)
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}

func getRequired(ctx context.Context, driver storage.Driver, op, p string) ([]byte, error) {
	data, found, err := driver.Get(ctx, p)
	if err != nil {
		return nil, errs.PersistenceErr(errs.PersistenceStorage, op, fmt.Errorf("get %s: %w", p, err))
	}
	if !found {
		return nil, errs.PersistenceErr(errs.PersistenceMissingComponent, op, fmt.Errorf("missing %s", p))
	}
	return data, nil
}

func put(ctx context.Context, driver storage.Driver, op, p string, data []byte) error {
	if err := driver.Put(ctx, p, data); err != nil {
		return errs.PersistenceErr(errs.PersistenceStorage, op, fmt.Errorf("put %s: %w", p, err))
	}
	return nil
}

// checkVersion rejects any persisted version greater than CurrentVersion.
func checkVersion(op string, version int) error {
	if version > CurrentVersion {
		return errs.IncompatibleVersionErr(op, CurrentVersion, version)
	}
	return nil
}

// IntegrityReport describes the outcome of comparing a component's
// declared count against the chunks actually present on the driver.
type IntegrityReport struct {
	ExpectedChunks int
	FoundChunks    int
	MissingChunks  []string
	OK             bool
}

func checkChunkIntegrity(ctx context.Context, driver storage.Driver, root string, expectedChunks int) (IntegrityReport, error) {
	present, err := driver.List(ctx, path.Join(root, "chunk_"))
	if err != nil {
		return IntegrityReport{}, errs.PersistenceErr(errs.PersistenceStorage, "persistence.CheckIntegrity", err)
	}
	found := make(map[string]struct{}, len(present))
	for _, p := range present {
		found[p] = struct{}{}
	}

	var missing []string
	for i := 0; i < expectedChunks; i++ {
		p := chunkPath(root, i)
		if _, ok := found[p]; !ok {
			missing = append(missing, p)
		}
	}

	return IntegrityReport{
		ExpectedChunks: expectedChunks,
		FoundChunks:    len(present),
		MissingChunks:  missing,
		OK:             len(missing) == 0,
	}, nil
}
