package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/vecthorn/vecthorn/internal/config"
	"github.com/vecthorn/vecthorn/internal/hybrid"
	"github.com/vecthorn/vecthorn/internal/vector"
)

// metadataPath is where the CLI keeps the metadata side-table. It sits
// alongside the index snapshot rather than inside it: §4.8's persisted
// layout has no slot for per-vector metadata, since the core library
// leaves metadata storage to the caller (§4.6 consumes a MetadataLookup,
// it does not own one).
func metadataPath(cfg *config.Config) string {
	return filepath.Join(resolveUnderDataDir(cfg.Storage.Dir), "metadata.json")
}

// loadMetadataTable reads the metadata side-table, returning an empty
// table if none has been written yet.
func loadMetadataTable(cfg *config.Config) (hybrid.MetadataTable, error) {
	path := metadataPath(cfg)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return hybrid.MetadataTable{}, nil
	}
	if err != nil {
		return nil, err
	}

	var wire map[string]vector.Metadata
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}

	table := make(hybrid.MetadataTable, len(wire))
	for idHex, meta := range wire {
		var id vector.ID
		if err := id.UnmarshalText([]byte(idHex)); err != nil {
			continue
		}
		table[id] = meta
	}
	return table, nil
}

// saveMetadataTable writes the metadata side-table back to disk.
func saveMetadataTable(cfg *config.Config, table hybrid.MetadataTable) error {
	wire := make(map[string]vector.Metadata, len(table))
	for id, meta := range table {
		wire[id.String()] = meta
	}

	data, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(metadataPath(cfg), data, 0o644)
}
