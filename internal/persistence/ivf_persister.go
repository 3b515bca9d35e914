package persistence

import (
	"context"
	"path"

	"github.com/vecthorn/vecthorn/internal/errs"
	"github.com/vecthorn/vecthorn/internal/ivf"
	"github.com/vecthorn/vecthorn/internal/storage"
	"github.com/vecthorn/vecthorn/internal/vector"
)

// ivfMetadataWire is the on-disk header for a historical-tier snapshot.
type ivfMetadataWire struct {
	Version     int
	Config      ivf.Config
	Dimension   int
	TotalCount  int
	ClusterIDs  []int
	ChunkSize   int
	Compressed  bool
	ChunksByCID map[int]int // cluster id -> number of chunk files for that cluster
}

// centroidWire is the CBOR-facing shape of ivf.Centroid.
type centroidWire struct {
	ID     int
	Vector vector.Embedding
}

// entryWire is the CBOR-facing shape of one inverted-list member.
type entryWire struct {
	ID        string
	Vector    vector.Embedding
	ChunkPath *string
	ChunkID   *string
	Deleted   bool
}

func toEntryWire(e ivf.Entry) entryWire {
	w := entryWire{ID: e.ID.String(), Vector: e.Embedding, Deleted: e.Deleted}
	if e.ChunkRef != nil {
		cp := e.ChunkRef.ChunkPath
		cid := e.ChunkRef.ID.String()
		w.ChunkPath = &cp
		w.ChunkID = &cid
	}
	return w
}

func fromEntryWire(w entryWire) (vector.ID, vector.Embedding, *vector.ChunkRef, error) {
	var id vector.ID
	if err := id.UnmarshalText([]byte(w.ID)); err != nil {
		return id, nil, nil, err
	}
	var ref *vector.ChunkRef
	if w.ChunkPath != nil && w.ChunkID != nil {
		var cid vector.ID
		if err := cid.UnmarshalText([]byte(*w.ChunkID)); err != nil {
			return id, nil, nil, err
		}
		ref = &vector.ChunkRef{ChunkPath: *w.ChunkPath, ID: cid}
	}
	return id, w.Vector, ref, nil
}

func clusterDir(root string, cid ivf.ClusterID) string {
	return path.Join(root, "inverted_lists", "cluster_"+pad6(int(cid)))
}

func pad6(n int) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := ""
	for {
		s = string(rune('0'+n%10)) + s
		n /= 10
		if n == 0 {
			break
		}
	}
	for len(s) < 6 {
		s = "0" + s
	}
	if neg {
		s = "-" + s
	}
	return s
}

// SaveIVF writes ix's centroids and inverted lists: centroids at
// <root>/centroids.cbor, each cluster's members chunked under
// <root>/inverted_lists/cluster_NNNNNN/chunk_NNNN.cbor.
func SaveIVF(ctx context.Context, driver storage.Driver, root string, ix *ivf.Index, opts Options) error {
	const op = "persistence.SaveIVF"

	centroids := ix.Centroids()
	cw := make([]centroidWire, len(centroids))
	for i, c := range centroids {
		cw[i] = centroidWire{ID: int(c.ID), Vector: c.Vector}
	}
	centroidBytes, err := encodeCBOR(cw, opts.Compress)
	if err != nil {
		return errs.PersistenceErr(errs.PersistenceSerialization, op, err)
	}
	if err := put(ctx, driver, op, path.Join(root, "centroids.cbor"), centroidBytes); err != nil {
		return err
	}

	chunkSize := opts.chunkSize()
	entries := ix.AllEntries()
	chunksByCID := make(map[int]int, len(entries))
	clusterIDs := make([]int, 0, len(entries))
	total := 0

	for cid, list := range entries {
		clusterIDs = append(clusterIDs, int(cid))
		total += len(list)
		dir := clusterDir(root, cid)
		numChunks := 0
		for i := 0; i < len(list); i += chunkSize {
			end := i + chunkSize
			if end > len(list) {
				end = len(list)
			}
			wire := make([]entryWire, 0, end-i)
			for _, e := range list[i:end] {
				wire = append(wire, toEntryWire(e))
			}
			data, err := encodeCBOR(wire, opts.Compress)
			if err != nil {
				return errs.PersistenceErr(errs.PersistenceSerialization, op, err)
			}
			if err := put(ctx, driver, op, chunkPath(dir, numChunks), data); err != nil {
				return err
			}
			numChunks++
		}
		chunksByCID[int(cid)] = numChunks
	}

	dim, _ := ix.Dimension()
	meta := ivfMetadataWire{
		Version:     CurrentVersion,
		Config:      ix.Config(),
		Dimension:   dim,
		TotalCount:  total,
		ClusterIDs:  clusterIDs,
		ChunkSize:   chunkSize,
		Compressed:  opts.Compress,
		ChunksByCID: chunksByCID,
	}
	metaBytes, err := encodeCBOR(meta, false)
	if err != nil {
		return errs.PersistenceErr(errs.PersistenceSerialization, op, err)
	}
	return put(ctx, driver, op, path.Join(root, "metadata.cbor"), metaBytes)
}

// LoadIVF rehydrates a full index from a snapshot written by SaveIVF.
func LoadIVF(ctx context.Context, driver storage.Driver, root string) (*ivf.Index, error) {
	const op = "persistence.LoadIVF"

	metaBytes, err := getRequired(ctx, driver, op, path.Join(root, "metadata.cbor"))
	if err != nil {
		return nil, err
	}
	var meta ivfMetadataWire
	if err := decodeCBOR(metaBytes, false, &meta); err != nil {
		return nil, errs.PersistenceErr(errs.PersistenceSerialization, op, err)
	}
	if err := checkVersion(op, meta.Version); err != nil {
		return nil, err
	}

	centroidBytes, err := getRequired(ctx, driver, op, path.Join(root, "centroids.cbor"))
	if err != nil {
		return nil, err
	}
	var cw []centroidWire
	if err := decodeCBOR(centroidBytes, meta.Compressed, &cw); err != nil {
		return nil, errs.PersistenceErr(errs.PersistenceSerialization, op, err)
	}
	centroids := make([]ivf.Centroid, len(cw))
	for i, c := range cw {
		centroids[i] = ivf.Centroid{ID: ivf.ClusterID(c.ID), Vector: c.Vector}
	}

	ix := ivf.New(meta.Config)
	ix.SetTrained(centroids, meta.Dimension)

	for _, cidInt := range meta.ClusterIDs {
		cid := ivf.ClusterID(cidInt)
		dir := clusterDir(root, cid)
		numChunks := meta.ChunksByCID[cidInt]
		for i := 0; i < numChunks; i++ {
			data, err := getRequired(ctx, driver, op, chunkPath(dir, i))
			if err != nil {
				return nil, err
			}
			var wire []entryWire
			if err := decodeCBOR(data, meta.Compressed, &wire); err != nil {
				return nil, errs.PersistenceErr(errs.PersistenceSerialization, op, err)
			}
			for _, w := range wire {
				id, emb, ref, err := fromEntryWire(w)
				if err != nil {
					return nil, errs.PersistenceErr(errs.PersistenceSerialization, op, err)
				}
				ix.RestoreEntry(cid, id, emb, ref, w.Deleted)
			}
		}
	}

	return ix, nil
}

// CheckIVFIntegrity compares the metadata's declared per-cluster chunk
// counts against the chunk files actually present.
func CheckIVFIntegrity(ctx context.Context, driver storage.Driver, root string) (IntegrityReport, error) {
	const op = "persistence.CheckIVFIntegrity"
	metaBytes, err := getRequired(ctx, driver, op, path.Join(root, "metadata.cbor"))
	if err != nil {
		return IntegrityReport{}, err
	}
	var meta ivfMetadataWire
	if err := decodeCBOR(metaBytes, false, &meta); err != nil {
		return IntegrityReport{}, errs.PersistenceErr(errs.PersistenceSerialization, op, err)
	}

	report := IntegrityReport{OK: true}
	for _, cidInt := range meta.ClusterIDs {
		cid := ivf.ClusterID(cidInt)
		dir := clusterDir(root, cid)
		sub, err := checkChunkIntegrity(ctx, driver, dir, meta.ChunksByCID[cidInt])
		if err != nil {
			return IntegrityReport{}, err
		}
		report.ExpectedChunks += sub.ExpectedChunks
		report.FoundChunks += sub.FoundChunks
		report.MissingChunks = append(report.MissingChunks, sub.MissingChunks...)
		report.OK = report.OK && sub.OK
	}
	return report, nil
}
