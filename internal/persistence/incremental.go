package persistence

import (
	"context"
	"path"

	"github.com/vecthorn/vecthorn/internal/errs"
	"github.com/vecthorn/vecthorn/internal/hnsw"
	"github.com/vecthorn/vecthorn/internal/storage"
	"github.com/vecthorn/vecthorn/internal/vector"
)

// SaveHNSWIncremental rewrites only the chunks touched by dirty,
// per §4.8's incremental-save rule: each affected chunk is read,
// the dirty nodes within it replaced or appended, and the chunk
// (and the metadata header) written back. A prior full SaveHNSW must
// have been run against root; this does not create a new layout.
func SaveHNSWIncremental(ctx context.Context, driver storage.Driver, root string, ix *hnsw.Index, dirty []vector.ID, opts Options) error {
	const op = "persistence.SaveHNSWIncremental"

	metaBytes, err := getRequired(ctx, driver, op, path.Join(root, "metadata.cbor"))
	if err != nil {
		return err
	}
	var meta hnswMetadataWire
	if err := decodeCBOR(metaBytes, false, &meta); err != nil {
		return errs.PersistenceErr(errs.PersistenceSerialization, op, err)
	}
	if meta.ChunkOf == nil {
		meta.ChunkOf = make(map[string]int)
	}

	chunkSize := meta.ChunkSize
	if chunkSize <= 0 {
		chunkSize = opts.chunkSize()
	}
	nodesRoot := path.Join(root, "nodes")

	affected := make(map[int][]vector.ID)
	lastChunkSize := meta.NodeCount - (meta.Chunks-1)*chunkSize
	if meta.Chunks == 0 {
		lastChunkSize = 0
	}

	for _, id := range dirty {
		key := id.String()
		if idx, ok := meta.ChunkOf[key]; ok {
			affected[idx] = append(affected[idx], id)
			continue
		}
		// New node: append to the current tail chunk if it has room,
		// otherwise start a fresh one.
		target := meta.Chunks - 1
		if target < 0 || lastChunkSize >= chunkSize {
			target = meta.Chunks
			meta.Chunks++
			lastChunkSize = 0
		}
		meta.ChunkOf[key] = target
		lastChunkSize++
		affected[target] = append(affected[target], id)
	}

	for idx, ids := range affected {
		p := chunkPath(nodesRoot, idx)
		var wire []nodeWire
		if data, found, err := driver.Get(ctx, p); err != nil {
			return errs.PersistenceErr(errs.PersistenceStorage, op, err)
		} else if found {
			if err := decodeCBOR(data, meta.Compressed, &wire); err != nil {
				return errs.PersistenceErr(errs.PersistenceSerialization, op, err)
			}
		}

		byID := make(map[string]int, len(wire))
		for i, w := range wire {
			byID[w.ID] = i
		}
		for _, id := range ids {
			node, ok := ix.GetNode(id)
			if !ok {
				continue
			}
			w := toNodeWire(node)
			if i, exists := byID[w.ID]; exists {
				wire[i] = w
			} else {
				byID[w.ID] = len(wire)
				wire = append(wire, w)
			}
		}

		data, err := encodeCBOR(wire, opts.Compress)
		if err != nil {
			return errs.PersistenceErr(errs.PersistenceSerialization, op, err)
		}
		if err := put(ctx, driver, op, p, data); err != nil {
			return err
		}
	}

	meta.NodeCount = len(ix.AllNodes())
	dim, _ := ix.Dimension()
	meta.Dimension = dim
	if ep, ok := ix.EntryPoint(); ok {
		s := ep.String()
		meta.EntryPoint = &s
	}

	newMetaBytes, err := encodeCBOR(meta, false)
	if err != nil {
		return errs.PersistenceErr(errs.PersistenceSerialization, op, err)
	}
	return put(ctx, driver, op, path.Join(root, "metadata.cbor"), newMetaBytes)
}
