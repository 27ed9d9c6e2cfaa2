package engine

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/vmoffice/capgraph/internal/config"
	"github.com/vmoffice/capgraph/internal/store"
)

// Store modes accepted by SelectStore.
const (
	StoreAuto  = "auto"
	StoreNeo4j = "neo4j"
	StoreLocal = "local"
)

// SelectStore opens the graph store for the given mode and returns it with
// the kind actually selected. Auto prefers a reachable Neo4j and falls
// back to the local snapshot.
func SelectStore(ctx context.Context, mode string, cfg *config.Config, log *zap.Logger) (store.GraphStore, string, error) {
	if log == nil {
		log = zap.NewNop()
	}

	switch mode {
	case StoreNeo4j:
		st, err := openNeo4j(ctx, cfg, log)
		if err != nil {
			return nil, "", err
		}
		return st, StoreNeo4j, nil

	case StoreLocal:
		st, err := openLocal(cfg, log)
		if err != nil {
			return nil, "", err
		}
		return st, StoreLocal, nil

	case "", StoreAuto:
		st, neoErr := openNeo4j(ctx, cfg, log)
		if neoErr == nil {
			return st, StoreNeo4j, nil
		}
		log.Warn("neo4j unreachable, trying local snapshot", zap.Error(neoErr))

		local, localErr := openLocal(cfg, log)
		if localErr != nil {
			return nil, "", fmt.Errorf("no reachable store: %v; %w", neoErr, localErr)
		}
		return local, StoreLocal, nil
	}

	return nil, "", fmt.Errorf("unknown store mode %q: must be one of auto, neo4j, local", mode)
}

func openNeo4j(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.GraphStore, error) {
	st, err := store.NewNeo4jStore(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase, log)
	if err != nil {
		return nil, err
	}
	if err := st.Ping(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func openLocal(cfg *config.Config, log *zap.Logger) (store.GraphStore, error) {
	dir := cfg.SnapshotDir()
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("no snapshot found at %s. Run 'capgraph snapshot' first", dir)
	}
	return store.OpenLocal(dir, true, log)
}
