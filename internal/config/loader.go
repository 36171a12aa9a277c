package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"
)

// includeKey lists other files merged underneath the current one.
// Later includes override earlier ones, and the including file wins over all.
const includeKey = "$include"

type fileFormat int

const (
	formatYAML fileFormat = iota
	formatJSON5
)

func formatOf(path string) fileFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".json5":
		return formatJSON5
	default:
		return formatYAML
	}
}

// readLayers reads path and everything it includes into one merged map.
// ${VAR} references are expanded before parsing.
func readLayers(path string) (map[string]any, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("config path is required")
	}
	return readLayer(path, map[string]bool{})
}

func readLayer(path string, visiting map[string]bool) (map[string]any, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if visiting[absPath] {
		return nil, fmt.Errorf("include cycle at %s", absPath)
	}
	visiting[absPath] = true
	defer delete(visiting, absPath)

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}
	layer, err := parseLayer([]byte(os.ExpandEnv(string(data))), formatOf(absPath))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}

	includes, err := takeIncludes(layer)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}

	merged := map[string]any{}
	for _, inc := range includes {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(absPath), inc)
		}
		base, err := readLayer(inc, visiting)
		if err != nil {
			return nil, err
		}
		merged = mergeMaps(merged, base)
	}
	return mergeMaps(merged, layer), nil
}

func parseLayer(data []byte, format fileFormat) (map[string]any, error) {
	var layer map[string]any

	switch format {
	case formatJSON5:
		if err := json5.Unmarshal(data, &layer); err != nil {
			return nil, err
		}
	default:
		if err := decodeSingleYAML(data, &layer, false); err != nil {
			return nil, err
		}
	}

	if layer == nil {
		layer = map[string]any{}
	}
	return layer, nil
}

// takeIncludes removes the include directive from layer and returns its paths.
func takeIncludes(layer map[string]any) ([]string, error) {
	value, ok := layer[includeKey]
	if !ok {
		return nil, nil
	}
	delete(layer, includeKey)

	switch typed := value.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(typed) == "" {
			return nil, nil
		}
		return []string{typed}, nil
	case []any:
		paths := make([]string, 0, len(typed))
		for _, entry := range typed {
			path, ok := entry.(string)
			if !ok {
				return nil, fmt.Errorf("%s entries must be strings", includeKey)
			}
			if strings.TrimSpace(path) != "" {
				paths = append(paths, path)
			}
		}
		return paths, nil
	default:
		return nil, fmt.Errorf("%s must be a string or list of strings", includeKey)
	}
}

// mergeMaps overlays src onto dst, recursing into nested sections so a
// layer can override discord.channel_id without restating discord.token.
func mergeMaps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for key, value := range src {
		if section, ok := value.(map[string]any); ok {
			if existing, ok := dst[key].(map[string]any); ok {
				dst[key] = mergeMaps(existing, section)
				continue
			}
		}
		dst[key] = value
	}
	return dst
}

// decodeLayers turns the merged map into a Config, rejecting unknown keys.
func decodeLayers(layers map[string]any) (*Config, error) {
	payload, err := yaml.Marshal(layers)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize config: %w", err)
	}
	var cfg Config
	if err := decodeSingleYAML(payload, &cfg, true); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func decodeSingleYAML(data []byte, out any, strict bool) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(strict)
	if err := decoder.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("expected a single YAML document")
	}
	return nil
}
