// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package places

import (
	"bytes"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/mapasync/internal/models"
	"github.com/tomtom215/mapasync/internal/validation"
)

// LoadSeedFile reads initial places from path.
//
// Two layouts are accepted: a bare JSON array (the GET /mapa response body)
// or a YAML/JSON document with a top-level "places" list. Every place is
// validated and ids must be unique.
func LoadSeedFile(path string) ([]models.Place, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var places []models.Place
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &places); err != nil {
			return nil, fmt.Errorf("decode seed file %s: %w", path, err)
		}
	} else {
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse seed file %s: %w", path, err)
		}
		if err := k.UnmarshalWithConf("places", &places, koanf.UnmarshalConf{Tag: "json"}); err != nil {
			return nil, fmt.Errorf("decode seed file %s: %w", path, err)
		}
	}

	if err := validation.ValidatePlaces(places); err != nil {
		return nil, fmt.Errorf("seed file %s: %w", path, err)
	}
	return places, nil
}
