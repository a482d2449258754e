package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// Defaults applied when dispatch fields are omitted.
const (
	DefaultMaxFilesPerGroup = 10
	DefaultRetryAttempts    = 3
	DefaultRetryDelay       = 5 * time.Second
	DefaultGroupPacing      = 1 * time.Second
	DefaultParseMode        = "HTML"
	DefaultWatchDebounce    = 2 * time.Second
)

// Load reads and strictly decodes a config file. A .yaml/.yml file is
// re-encoded as JSON first so both formats go through the same
// DisallowUnknownFields decoder.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		if b, err = yamlToJSON(b); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg as indented JSON. Used by --save-config.
func Save(path string, cfg *Config) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o600)
}

// Validate checks the fields required before a run can start. Defaults are
// applied by the callers that consume the values (see ApplyDefaults).
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Telegram.Token) == "" {
		missing = append(missing, "telegram.token")
	}
	if c.Dispatch.ChatID == 0 {
		missing = append(missing, "dispatch.chat_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Dispatch.MaxFilesPerGroup < 0 {
		return fmt.Errorf("dispatch.max_files_per_group must be >= 1")
	}
	if c.Dispatch.RetryAttempts != nil && *c.Dispatch.RetryAttempts < 1 {
		return fmt.Errorf("dispatch.retry_attempts must be >= 1 (got %d)", *c.Dispatch.RetryAttempts)
	}
	if _, err := ParseDurationField("dispatch.retry_delay", c.Dispatch.RetryDelay); err != nil {
		return err
	}
	if _, err := ParseDurationField("dispatch.group_pacing", c.Dispatch.GroupPacing); err != nil {
		return err
	}
	if c.Watch != nil {
		if _, err := ParseDurationField("watch.debounce", c.Watch.Debounce); err != nil {
			return err
		}
	}
	return nil
}

// ApplyDefaults fills zero-valued dispatch fields in place.
func (c *Config) ApplyDefaults() {
	if c.Dispatch.MaxFilesPerGroup == 0 {
		c.Dispatch.MaxFilesPerGroup = DefaultMaxFilesPerGroup
	}
	if c.Dispatch.RetryAttempts == nil {
		attempts := DefaultRetryAttempts
		c.Dispatch.RetryAttempts = &attempts
	}
	if strings.TrimSpace(c.Dispatch.RetryDelay) == "" {
		c.Dispatch.RetryDelay = DefaultRetryDelay.String()
	}
	if strings.TrimSpace(c.Dispatch.GroupPacing) == "" {
		c.Dispatch.GroupPacing = DefaultGroupPacing.String()
	}
	if strings.TrimSpace(c.Dispatch.ParseMode) == "" {
		c.Dispatch.ParseMode = DefaultParseMode
	}
}

// yamlToJSON re-encodes a YAML document as JSON bytes.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	out, err := json.Marshal(stringifyKeys(doc))
	if err != nil {
		return nil, fmt.Errorf("re-encode as json: %w", err)
	}
	return out, nil
}

// stringifyKeys rewrites map keys to strings throughout the document.
// YAML permits non-string mapping keys which json.Marshal refuses.
func stringifyKeys(v any) any {
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			node[k] = stringifyKeys(child)
		}
		return node
	case map[any]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			out[fmt.Sprint(k)] = stringifyKeys(child)
		}
		return out
	case []any:
		for i, child := range node {
			node[i] = stringifyKeys(child)
		}
		return node
	}
	return v
}
