// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Defaults for tunable matching and output limits. All of them can be
// overridden through the environment.
const (
	DefaultFuzzyThreshold   = 85
	DefaultNgramThreshold   = 90
	DefaultSuggestThreshold = 50
	DefaultMaxDepth         = 5
	DefaultContextBudget    = 100000

	// SuggestionLimit caps the fuzzy suggestions returned when no anchor
	// resolves. CatalogSample caps the catalog excerpt in the same response.
	SuggestionLimit = 3
	CatalogSample   = 10
)

// Config holds every externally tunable setting. Values are read once at
// startup; commands receive the struct and never consult the environment
// again.
type Config struct {
	// Neo4j connection.
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	// OpenAI answer generation (only used with `ask --answer`).
	OpenAIKey   string
	OpenAIModel string

	// Home is the capgraph data directory (snapshot, cached catalog, meta).
	Home string
	// MetadataPath points at the hydration side table (JSON keyed by name).
	MetadataPath string
	// Vertical names the business domain used in generated prompts.
	Vertical string

	// Matching thresholds on the 0-100 similarity scale.
	FuzzyThreshold   int
	NgramThreshold   int
	SuggestThreshold int

	// MaxDepth is the traversal hard cap. ContextBudget is the character
	// limit on serialized graph context.
	MaxDepth      int
	ContextBudget int
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present; real environment
// variables win over it.
func Load() *Config {
	_ = godotenv.Load()

	home := os.Getenv("CAPGRAPH_HOME")
	if home == "" {
		if dir, err := os.UserHomeDir(); err == nil {
			home = filepath.Join(dir, ".capgraph")
		} else {
			home = ".capgraph"
		}
	}

	return &Config{
		Neo4jURI:      envOr("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:     envOr("NEO4J_USERNAME", "neo4j"),
		Neo4jPassword: os.Getenv("NEO4J_PASSWORD"),
		Neo4jDatabase: envOr("NEO4J_DATABASE", "neo4j"),

		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel: envOr("OPENAI_MODEL", "gpt-4o-mini"),

		Home:         home,
		MetadataPath: envOr("CAPGRAPH_METADATA", filepath.Join(home, "metadata.json")),
		Vertical:     envOr("CAPGRAPH_VERTICAL", "Investment Management"),

		FuzzyThreshold:   envInt("CAPGRAPH_FUZZY_THRESHOLD", DefaultFuzzyThreshold),
		NgramThreshold:   envInt("CAPGRAPH_NGRAM_THRESHOLD", DefaultNgramThreshold),
		SuggestThreshold: envInt("CAPGRAPH_SUGGEST_THRESHOLD", DefaultSuggestThreshold),
		MaxDepth:         envInt("CAPGRAPH_MAX_DEPTH", DefaultMaxDepth),
		ContextBudget:    envInt("CAPGRAPH_CONTEXT_BUDGET", DefaultContextBudget),
	}
}

// SnapshotDir is where the local Badger snapshot lives.
func (c *Config) SnapshotDir() string {
	return filepath.Join(c.Home, "badger")
}

// MetaPath is the snapshot metadata file written by `capgraph snapshot`.
func (c *Config) MetaPath() string {
	return filepath.Join(c.Home, "meta.json")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
