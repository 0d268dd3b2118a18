package factory

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DeepMerge returns base with overrides applied. Nested maps merge key by
// key; every other value, arrays included, replaces the base value. Neither
// input is modified.
func DeepMerge(base, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		if src, ok := v.(map[string]any); ok {
			if dst, ok := out[k].(map[string]any); ok {
				out[k] = DeepMerge(dst, src)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// LoadOverrides reads a YAML override document.
func LoadOverrides(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overrides: %w", err)
	}
	m := map[string]any{}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse overrides %s: %w", path, err)
	}
	return m, nil
}

// toMap renders a config as a generic map through its yaml form.
func toMap(cfg BotConfig) (map[string]any, error) {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	m := map[string]any{}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode config map: %w", err)
	}
	return m, nil
}

// fromMap decodes a merged map strictly; unknown keys are an error.
func fromMap(m map[string]any) (BotConfig, error) {
	b, err := yaml.Marshal(m)
	if err != nil {
		return BotConfig{}, fmt.Errorf("encode merged config: %w", err)
	}
	var cfg BotConfig
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return BotConfig{}, fmt.Errorf("decode merged config: %w", err)
	}
	return cfg, nil
}
