package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"mihac/internal/models"
)

// Profile decoding errors
var (
	ErrEmptyBody       = errors.New("request body is empty")
	ErrUnsupportedBody = errors.New("body must be a JSON object or an array of objects")
)

// DecodeProfilesJSON decodes one JSON object or an array of objects. Numbers
// are kept as json.Number so money values are never rounded through float64.
// The bool reports whether the body was an array.
func DecodeProfilesJSON(data []byte) ([]models.RawProfile, bool, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, false, ErrEmptyBody
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	switch data[0] {
	case '{':
		var p models.RawProfile
		if err := dec.Decode(&p); err != nil {
			return nil, false, fmt.Errorf("invalid JSON profile: %w", err)
		}
		return []models.RawProfile{p}, false, nil
	case '[':
		var ps []models.RawProfile
		if err := dec.Decode(&ps); err != nil {
			return nil, true, fmt.Errorf("invalid JSON profile list: %w", err)
		}
		return ps, true, nil
	default:
		return nil, false, ErrUnsupportedBody
	}
}

// DecodeProfilesYAML decodes one YAML mapping or a sequence of mappings.
func DecodeProfilesYAML(data []byte) ([]models.RawProfile, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyBody
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("invalid YAML profile: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, ErrEmptyBody
	}

	switch node.Content[0].Kind {
	case yaml.MappingNode:
		var p models.RawProfile
		if err := node.Decode(&p); err != nil {
			return nil, fmt.Errorf("invalid YAML profile: %w", err)
		}
		return []models.RawProfile{p}, nil
	case yaml.SequenceNode:
		var ps []models.RawProfile
		if err := node.Decode(&ps); err != nil {
			return nil, fmt.Errorf("invalid YAML profile list: %w", err)
		}
		return ps, nil
	default:
		return nil, ErrUnsupportedBody
	}
}

// DecodeProfileFile picks a decoder from the file extension: .yaml/.yml,
// .csv, otherwise JSON. CSV row errors are returned with the rows that parsed.
func DecodeProfileFile(name string, data []byte) ([]models.RawProfile, []error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		ps, err := DecodeProfilesYAML(data)
		if err != nil {
			return nil, []error{err}
		}
		return ps, nil
	case ".csv":
		return NewCSVParser().ParseProfiles(string(data))
	default:
		ps, _, err := DecodeProfilesJSON(data)
		if err != nil {
			return nil, []error{err}
		}
		return ps, nil
	}
}
