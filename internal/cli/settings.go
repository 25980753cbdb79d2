package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/contractrag/internal/catalog"
	"github.com/ppiankov/contractrag/internal/model"
	"github.com/ppiankov/contractrag/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// optionalKeys are omitempty in YAML, so they never appear in the marshaled defaults
var optionalKeys = []string{
	"input.s3_region", "input.s3_endpoint",
	"embedding.model", "embedding.api_key", "embedding.base_url",
	"index.path", "index.url", "index.api_key",
	"llm.api_key", "llm.base_url", "llm.http_proxy", "llm.https_proxy", "llm.no_proxy",
	"cache.dir", "output.path", "output.store_path",
}

// loadConfig layers the config file and environment over the defaults
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()

	defaults, err := configMap(cfg)
	if err != nil {
		return nil, err
	}
	// Registered defaults let AutomaticEnv see nested keys
	setDefaults(v, "", defaults)
	for _, key := range optionalKeys {
		v.SetDefault(key, "")
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Output.Verbose = v.GetBool("verbose")
	return cfg, nil
}

func configMap(cfg *model.Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal defaults: %w", err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal defaults: %w", err)
	}
	return m, nil
}

func setDefaults(v *viper.Viper, prefix string, m map[string]any) {
	for key, val := range m {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			setDefaults(v, full, nested)
			continue
		}
		v.SetDefault(full, val)
	}
}

// engineFlags are the per-run overrides shared by extract and batch
type engineFlags struct {
	docType     string
	catalogPath string
	fields      []string
	llmProvider string
	llmModel    string
	embedder    string
	backend     string
	workers     int
	storePath   string
	noCache     bool
}

func (f *engineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.docType, "type", "t", "sow", "built-in field catalog ("+strings.Join(catalog.BuiltinTypes(), ", ")+")")
	cmd.Flags().StringVar(&f.catalogPath, "catalog", "", "custom field catalog YAML (overrides --type)")
	cmd.Flags().StringSliceVar(&f.fields, "fields", nil, "only extract these fields (comma separated)")
	cmd.Flags().StringVar(&f.llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama, gemini)")
	cmd.Flags().StringVar(&f.llmModel, "llm-model", "", "LLM model name")
	cmd.Flags().StringVar(&f.embedder, "embedding-provider", "", "embedding provider (hashing, openai, ollama, gemini)")
	cmd.Flags().StringVar(&f.backend, "index", "", "vector index backend (memory, sqlite, qdrant)")
	cmd.Flags().IntVar(&f.workers, "field-workers", 0, "fields resolved concurrently per document")
	cmd.Flags().StringVar(&f.storePath, "store", "", "save reports to this SQLite database")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable the embedding cache")
}

// apply copies flags that were set onto cfg
func (f *engineFlags) apply(cfg *model.Config) {
	if f.llmProvider != "" {
		cfg.LLM.Provider = f.llmProvider
	}
	if f.llmModel != "" {
		cfg.LLM.Model = f.llmModel
	}
	if f.embedder != "" {
		cfg.Embedding.Provider = f.embedder
	}
	if f.backend != "" {
		cfg.Index.Backend = f.backend
	}
	if f.workers > 0 {
		cfg.Extraction.Workers = f.workers
	}
	if f.storePath != "" {
		cfg.Output.StorePath = f.storePath
	}
	if f.noCache {
		cfg.Cache.Enabled = false
	}
}

// catalog resolves the field set: custom file or built-in type, then --fields
func (f *engineFlags) catalog() (*catalog.Catalog, error) {
	var (
		cat *catalog.Catalog
		err error
	)
	if f.catalogPath != "" {
		cat, err = catalog.LoadFile(f.catalogPath)
	} else {
		cat, err = catalog.Builtin(f.docType)
	}
	if err != nil {
		return nil, err
	}
	if len(f.fields) > 0 {
		return cat.Select(f.fields)
	}
	return cat, nil
}

// openStore opens the result store when one is configured
func openStore(cfg *model.Config) (*store.ResultStore, error) {
	if cfg.Output.StorePath == "" {
		return nil, nil
	}
	s, err := store.Open(cfg.Output.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}
	return s, nil
}

func stderrf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format, a...)
}
