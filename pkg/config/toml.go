// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"bytes"
	"context"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&TOMLParser{})
}

// 🔧 TOMLParser implements the Parser interface for TOML files
type TOMLParser struct{}

// tomlConfig mirrors Config; assets stay loose so the flat options table can be
// checked key by key
type tomlConfig struct {
	Src         []string       `toml:"src"`
	Dest        string         `toml:"dest"`
	Cwd         string         `toml:"cwd"`
	Concurrency int            `toml:"concurrency"`
	Assets      map[string]any `toml:"assets"`
}

// 🔍 CanParse checks if this parser can handle the given file
func (p *TOMLParser) CanParse(filename string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(filename)), ".toml")
}

// 📝 Parse parses the config from TOML bytes
func (p *TOMLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	var raw tomlConfig
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&raw); err != nil {
		return nil, errors.Errorf("parsing TOML: %w", err)
	}

	assets, err := optionsFromMap(raw.Assets)
	if err != nil {
		return nil, errors.Errorf("parsing TOML: %w", err)
	}

	cfg := Config{
		Src:         raw.Src,
		Dest:        raw.Dest,
		Cwd:         raw.Cwd,
		Concurrency: raw.Concurrency,
		Assets:      assets,
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
