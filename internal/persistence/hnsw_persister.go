package persistence

import (
	"context"
	"path"

	"github.com/vecthorn/vecthorn/internal/errs"
	"github.com/vecthorn/vecthorn/internal/hnsw"
	"github.com/vecthorn/vecthorn/internal/storage"
	"github.com/vecthorn/vecthorn/internal/vector"
)

// hnswMetadataWire is the on-disk header for a recent-tier snapshot.
type hnswMetadataWire struct {
	Version    int
	Config     hnsw.Config
	NodeCount  int
	Dimension  int
	EntryPoint *string
	ChunkSize  int
	Compressed bool
	Chunks     int
	// ChunkOf maps each node's hex id to the chunk file index holding
	// it, so an incremental save can find and rewrite only the chunks
	// touched by a dirty set instead of the whole node set.
	ChunkOf map[string]int
}

// nodeWire is the CBOR-facing shape of hnsw.Node: ids are hex strings
// (map keys and all), mirroring vector.Chunk's wire encoding so the
// format never depends on CBOR's non-string-map-key support.
type nodeWire struct {
	ID        string
	Embedding vector.Embedding
	ChunkPath *string
	ChunkID   *string
	Level     int
	Neighbors [][]string
	Deleted   bool
}

func toNodeWire(n *hnsw.Node) nodeWire {
	w := nodeWire{
		ID:        n.ID.String(),
		Embedding: n.Embedding,
		Level:     n.Level,
		Deleted:   n.Deleted,
		Neighbors: make([][]string, len(n.Neighbors)),
	}
	if n.ChunkRef != nil {
		cp := n.ChunkRef.ChunkPath
		cid := n.ChunkRef.ID.String()
		w.ChunkPath = &cp
		w.ChunkID = &cid
	}
	for layer, set := range n.Neighbors {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id.String())
		}
		w.Neighbors[layer] = ids
	}
	return w
}

func fromNodeWire(w nodeWire) (*hnsw.Node, error) {
	var id vector.ID
	if err := id.UnmarshalText([]byte(w.ID)); err != nil {
		return nil, err
	}
	n := &hnsw.Node{
		ID:        id,
		Embedding: w.Embedding,
		Level:     w.Level,
		Deleted:   w.Deleted,
		Neighbors: make([]map[vector.ID]struct{}, len(w.Neighbors)),
	}
	if w.ChunkPath != nil && w.ChunkID != nil {
		var cid vector.ID
		if err := cid.UnmarshalText([]byte(*w.ChunkID)); err != nil {
			return nil, err
		}
		n.ChunkRef = &vector.ChunkRef{ChunkPath: *w.ChunkPath, ID: cid}
	}
	for layer, ids := range w.Neighbors {
		set := make(map[vector.ID]struct{}, len(ids))
		for _, s := range ids {
			var nid vector.ID
			if err := nid.UnmarshalText([]byte(s)); err != nil {
				return nil, err
			}
			set[nid] = struct{}{}
		}
		n.Neighbors[layer] = set
	}
	return n, nil
}

// SaveHNSW writes ix's full node set (including tombstones) as
// <root>/metadata.cbor plus <root>/nodes/chunk_NNNN.cbor chunk files.
func SaveHNSW(ctx context.Context, driver storage.Driver, root string, ix *hnsw.Index, opts Options) error {
	const op = "persistence.SaveHNSW"

	nodes := ix.AllNodes()
	chunkSize := opts.chunkSize()

	nodesRoot := path.Join(root, "nodes")
	numChunks := 0
	chunkOf := make(map[string]int, len(nodes))
	for i := 0; i < len(nodes); i += chunkSize {
		end := i + chunkSize
		if end > len(nodes) {
			end = len(nodes)
		}
		wire := make([]nodeWire, 0, end-i)
		for _, n := range nodes[i:end] {
			wire = append(wire, toNodeWire(n))
			chunkOf[n.ID.String()] = numChunks
		}
		data, err := encodeCBOR(wire, opts.Compress)
		if err != nil {
			return errs.PersistenceErr(errs.PersistenceSerialization, op, err)
		}
		if err := put(ctx, driver, op, chunkPath(nodesRoot, numChunks), data); err != nil {
			return err
		}
		numChunks++
	}

	dim, _ := ix.Dimension()
	var entryPoint *string
	if ep, ok := ix.EntryPoint(); ok {
		s := ep.String()
		entryPoint = &s
	}

	meta := hnswMetadataWire{
		Version:    CurrentVersion,
		Config:     ix.Config(),
		NodeCount:  len(nodes),
		Dimension:  dim,
		EntryPoint: entryPoint,
		ChunkSize:  chunkSize,
		Compressed: opts.Compress,
		Chunks:     numChunks,
		ChunkOf:    chunkOf,
	}
	data, err := encodeCBOR(meta, false)
	if err != nil {
		return errs.PersistenceErr(errs.PersistenceSerialization, op, err)
	}
	return put(ctx, driver, op, path.Join(root, "metadata.cbor"), data)
}

// LoadHNSW rehydrates a full index from a snapshot written by SaveHNSW.
func LoadHNSW(ctx context.Context, driver storage.Driver, root string) (*hnsw.Index, error) {
	const op = "persistence.LoadHNSW"

	metaBytes, err := getRequired(ctx, driver, op, path.Join(root, "metadata.cbor"))
	if err != nil {
		return nil, err
	}
	var meta hnswMetadataWire
	if err := decodeCBOR(metaBytes, false, &meta); err != nil {
		return nil, errs.PersistenceErr(errs.PersistenceSerialization, op, err)
	}
	if err := checkVersion(op, meta.Version); err != nil {
		return nil, err
	}

	ix := hnsw.New(meta.Config)

	nodesRoot := path.Join(root, "nodes")
	for i := 0; i < meta.Chunks; i++ {
		data, err := getRequired(ctx, driver, op, chunkPath(nodesRoot, i))
		if err != nil {
			return nil, err
		}
		var wire []nodeWire
		if err := decodeCBOR(data, meta.Compressed, &wire); err != nil {
			return nil, errs.PersistenceErr(errs.PersistenceSerialization, op, err)
		}
		for _, w := range wire {
			n, err := fromNodeWire(w)
			if err != nil {
				return nil, errs.PersistenceErr(errs.PersistenceSerialization, op, err)
			}
			ix.RestoreNode(n)
		}
	}

	if meta.EntryPoint != nil {
		var ep vector.ID
		if err := ep.UnmarshalText([]byte(*meta.EntryPoint)); err != nil {
			return nil, errs.PersistenceErr(errs.PersistenceSerialization, op, err)
		}
		ix.SetEntryPoint(ep)
	}

	return ix, nil
}

// CheckHNSWIntegrity compares the metadata's declared chunk count
// against the chunk files actually present under root/nodes.
func CheckHNSWIntegrity(ctx context.Context, driver storage.Driver, root string) (IntegrityReport, error) {
	const op = "persistence.CheckHNSWIntegrity"
	metaBytes, err := getRequired(ctx, driver, op, path.Join(root, "metadata.cbor"))
	if err != nil {
		return IntegrityReport{}, err
	}
	var meta hnswMetadataWire
	if err := decodeCBOR(metaBytes, false, &meta); err != nil {
		return IntegrityReport{}, errs.PersistenceErr(errs.PersistenceSerialization, op, err)
	}
	return checkChunkIntegrity(ctx, driver, path.Join(root, "nodes"), meta.Chunks)
}
