// Package config loads and validates the ingestion configuration
// document: CURIE prefix bindings, ontology sources with their reasoner
// settings, property and category mapping tables, and runtime knobs.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/twinfer/ontograph"
	"github.com/twinfer/ontograph/curie"
	"github.com/twinfer/ontograph/mapping"
	"github.com/twinfer/ontograph/ontology"
	"github.com/twinfer/ontograph/reasoner"
)

// Defaults applied by Validate. Concurrency and Timeout default when
// unset or non-positive. Retries defaults only for negative values: an
// omitted or explicit zero means no retries.
const (
	DefaultConcurrency = 4
	DefaultRetries     = 2
	DefaultTimeout     = Duration(30 * time.Second)
)

// Config is the full configuration document.
type Config struct {
	// Curies binds CURIE prefixes to URI namespaces. Duplicate prefixes
	// are preserved in document order; the resolver applies last-wins.
	Curies CurieBindings `yaml:"curies"`
	// Sources lists the ontology documents to ingest.
	Sources []ontology.Source `yaml:"sources"`
	// Categories maps class URIs to human-readable category labels.
	Categories map[string][]string `yaml:"categories"`
	// Properties groups raw property URIs under canonical names.
	Properties map[string][]string `yaml:"properties"`
	// IndexedProperties and ClosurePredicates override the store defaults
	// when set.
	IndexedProperties []string `yaml:"indexed_properties"`
	ClosurePredicates []string `yaml:"closure_predicates"`

	Concurrency int      `yaml:"concurrency"`
	Timeout     Duration `yaml:"timeout"`
	Retries     int      `yaml:"retries"`
}

// CurieBindings decodes a YAML mapping while preserving duplicate keys.
// A plain map decode would either reject duplicates or silently drop
// them; real-world prefix tables do contain duplicates (the same prefix
// registered against two namespaces) and the resolver wants to see both
// so it can warn.
type CurieBindings []curie.Binding

// UnmarshalYAML implements yaml.Unmarshaler over the raw mapping node.
func (b *CurieBindings) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("curies: expected a mapping, got %s at line %d", nodeKind(node.Kind), node.Line)
	}
	out := make(CurieBindings, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		var prefix, namespace string
		if err := key.Decode(&prefix); err != nil {
			return fmt.Errorf("curies: bad prefix at line %d: %w", key.Line, err)
		}
		if err := value.Decode(&namespace); err != nil {
			return fmt.Errorf("curies: bad namespace for %q at line %d: %w", prefix, value.Line, err)
		}
		out = append(out, curie.Binding{Prefix: prefix, Namespace: namespace})
	}
	*b = out
	return nil
}

func nodeKind(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}

// Duration decodes Go duration strings ("30s", "2m") from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q at line %d: %w", s, node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate applies defaults and rejects documents that would break the
// ingestion run: unknown reasoner factories, ambiguous property maps,
// sources without a URL.
func (c *Config) Validate() error {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Retries < 0 {
		c.Retries = DefaultRetries
	}

	for i, src := range c.Sources {
		if src.URL == "" {
			return fmt.Errorf("sources[%d]: missing url", i)
		}
		if f := src.Reasoner.Factory; f != "" && !reasoner.Known(f) {
			return fmt.Errorf("sources[%d]: unknown reasoner factory %q", i, f)
		}
	}

	if err := c.PropertyMapper().Validate(); err != nil {
		return fmt.Errorf("properties: %w", err)
	}
	return nil
}

// Resolver builds the CURIE resolver from the bindings, warning on
// duplicate prefixes through logger.
func (c *Config) Resolver(logger *slog.Logger) *curie.Resolver {
	return curie.New(c.Curies, logger)
}

// PropertyMapper builds the canonical property mapper.
func (c *Config) PropertyMapper() *mapping.PropertyMapper {
	return mapping.NewPropertyMapper(c.Properties)
}

// CategoryAssigner builds the category rule table.
func (c *Config) CategoryAssigner() *mapping.CategoryAssigner {
	return mapping.NewCategoryAssigner(c.Categories)
}

// StoreOptions translates the overrides into store options.
func (c *Config) StoreOptions() []ontograph.StoreOption {
	var opts []ontograph.StoreOption
	if len(c.IndexedProperties) > 0 {
		opts = append(opts, ontograph.WithIndexedProperties(c.IndexedProperties...))
	}
	if len(c.ClosurePredicates) > 0 {
		opts = append(opts, ontograph.WithClosurePredicates(c.ClosurePredicates...))
	}
	return opts
}
