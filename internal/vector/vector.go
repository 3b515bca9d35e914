package vector

import "github.com/fxamacker/cbor/v2"

// Metadata is a schemaless JSON-shaped document attached to a Vector.
// Values are whatever encoding/json decodes a JSON object's values into:
// string, float64, bool, nil, []interface{}, map[string]interface{}.
type Metadata map[string]interface{}

// Vector is the unit of insertion: an id, its embedding, and optional
// metadata consulted by the filter predicate tree.
type Vector struct {
	ID       ID
	Embedding Embedding
	Metadata  Metadata
}

// ChunkRef points at an embedding deferred to a named, immutable chunk
// rather than held inline, resolved lazily through the chunk loader.
type ChunkRef struct {
	ChunkPath string
	ID        ID
}

// Chunk is a named, immutable bundle of embeddings serialised as one
// blob. Chunks are never mutated in place; an update produces a new chunk.
type Chunk struct {
	ChunkID    string
	StartIndex int
	EndIndex   int
	Vectors    map[ID]Embedding
}

// chunkWire is the CBOR-facing shape of Chunk. IDs are hex strings
// rather than array keys so the encoding never depends on the CBOR
// library's map-key-type support for non-string key types.
type chunkWire struct {
	ChunkID    string
	StartIndex int
	EndIndex   int
	Vectors    map[string]Embedding
}

func (c Chunk) MarshalCBOR() ([]byte, error) {
	w := chunkWire{
		ChunkID:    c.ChunkID,
		StartIndex: c.StartIndex,
		EndIndex:   c.EndIndex,
		Vectors:    make(map[string]Embedding, len(c.Vectors)),
	}
	for id, emb := range c.Vectors {
		w.Vectors[id.String()] = emb
	}
	return cbor.Marshal(w)
}

func (c *Chunk) UnmarshalCBOR(data []byte) error {
	var w chunkWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return err
	}
	c.ChunkID = w.ChunkID
	c.StartIndex = w.StartIndex
	c.EndIndex = w.EndIndex
	c.Vectors = make(map[ID]Embedding, len(w.Vectors))
	for s, emb := range w.Vectors {
		var id ID
		if err := id.UnmarshalText([]byte(s)); err != nil {
			return err
		}
		c.Vectors[id] = emb
	}
	return nil
}
