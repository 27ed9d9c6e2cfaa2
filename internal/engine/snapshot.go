package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/vmoffice/capgraph/internal/catalog"
	"github.com/vmoffice/capgraph/internal/config"
	"github.com/vmoffice/capgraph/internal/graph"
	"github.com/vmoffice/capgraph/internal/store"
)

// SnapshotMeta records what a local snapshot holds and where it came from.
type SnapshotMeta struct {
	CreatedAt     time.Time `json:"created_at"`
	SourceURI     string    `json:"source_uri"`
	Nodes         int       `json:"nodes"`
	Relationships int       `json:"relationships"`
}

// Exporter is the source side of a snapshot pull.
type Exporter interface {
	ExportNodes(ctx context.Context) ([]*graph.Entity, error)
	ExportRelationships(ctx context.Context) ([]*graph.Relationship, error)
}

// WriteSnapshot pulls every node and relationship from the exporter into
// a fresh local store under cfg.Home and records meta.json beside it. The
// previous snapshot contents are dropped first.
func WriteSnapshot(ctx context.Context, from Exporter, cfg *config.Config, log *zap.Logger) (*SnapshotMeta, error) {
	if log == nil {
		log = zap.NewNop()
	}

	nodes, err := from.ExportNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("export nodes: %w", err)
	}
	rels, err := from.ExportRelationships(ctx)
	if err != nil {
		return nil, fmt.Errorf("export relationships: %w", err)
	}

	local, err := store.OpenLocal(cfg.SnapshotDir(), false, log)
	if err != nil {
		return nil, err
	}
	if err := local.Import(ctx, nodes, rels); err != nil {
		local.Close()
		return nil, err
	}
	if err := local.Close(); err != nil {
		return nil, fmt.Errorf("close snapshot: %w", err)
	}

	meta := &SnapshotMeta{
		CreatedAt:     time.Now().UTC(),
		SourceURI:     cfg.Neo4jURI,
		Nodes:         len(nodes),
		Relationships: len(rels),
	}
	if err := writeMeta(cfg.MetaPath(), meta); err != nil {
		return nil, err
	}

	log.Info("snapshot written",
		zap.String("dir", cfg.SnapshotDir()),
		zap.Int("nodes", meta.Nodes),
		zap.Int("relationships", meta.Relationships))
	return meta, nil
}

// ReadMeta loads meta.json. A missing file returns nil without error.
func ReadMeta(path string) (*SnapshotMeta, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot meta: %w", err)
	}
	var meta SnapshotMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse snapshot meta %s: %w", path, err)
	}
	return &meta, nil
}

func writeMeta(path string, meta *SnapshotMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot meta: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot meta: %w", err)
	}
	return nil
}

// Status reports what the process can currently reach.
type Status struct {
	Neo4jURI      string        `json:"neo4j_uri"`
	Neo4jUp       bool          `json:"neo4j_reachable"`
	Snapshot      *SnapshotMeta `json:"snapshot,omitempty"`
	HydrationPath string        `json:"hydration_path"`
	HydrationRows int           `json:"hydration_rows"`
}

// ProbeStatus checks Neo4j reachability, the local snapshot metadata and
// the hydration side table without building an engine.
func ProbeStatus(ctx context.Context, cfg *config.Config, log *zap.Logger) *Status {
	st := &Status{Neo4jURI: cfg.Neo4jURI, HydrationPath: cfg.MetadataPath}

	if neo, err := store.NewNeo4jStore(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase, log); err == nil {
		if neo.Ping(ctx) == nil {
			st.Neo4jUp = true
		}
		neo.Close()
	}

	if meta, err := ReadMeta(cfg.MetaPath()); err == nil {
		st.Snapshot = meta
	}

	hyd := catalog.NewHydration(cfg.MetadataPath, log)
	if err := hyd.Reload(); err == nil {
		st.HydrationRows = hyd.Len()
	}

	return st
}
