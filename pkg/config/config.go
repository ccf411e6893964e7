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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// DefaultConcurrency bounds the nested asset reads when the config does not
const DefaultConcurrency = 4

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// 📚 Config represents a complete cssassets project
type Config struct {
	Src         []string `json:"src" yaml:"src"`                                     // Source globs, relative to Cwd
	Dest        string   `json:"dest" yaml:"dest"`                                   // Destination directory, relative to Cwd
	Cwd         string   `json:"cwd,omitempty" yaml:"cwd,omitempty"`                 // Working directory, relative to the config file
	Concurrency int      `json:"concurrency,omitempty" yaml:"concurrency,omitempty"` // Nested read fan-out limit
	Assets      Options  `json:"assets" yaml:"assets"`                               // Stage options

	location string
}

// 🎯 Load loads the configuration from a file
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	cfg, err := parse(ctx, path, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	cfg.location = path
	if err := cfg.resolvePaths(filepath.Dir(path)); err != nil {
		return nil, errors.Errorf("resolving paths: %w", err)
	}

	logger.Debug().Str("config", cfg.String()).Msg("configuration loaded")

	return cfg, nil
}

// parse picks a parser by file name. The rc file tries YAML, then HCL.
func parse(ctx context.Context, path string, data []byte) (*Config, error) {
	if p := GetParser(path); p != nil {
		return p.Parse(ctx, data)
	}

	if filepath.Ext(filepath.Base(path)) != "" && filepath.Base(path) != RCFile {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	var errs []string
	for _, p := range []Parser{&YAMLParser{}, &HCLParser{}} {
		cfg, err := p.Parse(ctx, data)
		if err == nil {
			return cfg, nil
		}
		errs = append(errs, err.Error())
	}
	return nil, errors.Errorf("no parser accepted %s: %s", path, strings.Join(errs, "; "))
}

// RCFile is the extensionless config name tried by every parser
const RCFile = ".cssassets"

// 🔍 Validate checks if the configuration is valid and fills in defaults
func (cfg *Config) Validate() error {
	if len(cfg.Src) == 0 {
		return errors.Errorf("src is required")
	}
	for i, s := range cfg.Src {
		if strings.TrimSpace(s) == "" {
			return errors.Errorf("src[%d] is empty", i)
		}
	}
	if cfg.Dest == "" {
		return errors.Errorf("dest is required")
	}
	if cfg.Concurrency < 0 {
		return errors.Errorf("concurrency must not be negative")
	}
	for name, folder := range cfg.Assets.Folders {
		if folder == "" {
			return errors.Errorf("assets[%q]: folder is required", name)
		}
	}

	cfg.Dest = filepath.Clean(cfg.Dest)
	if cfg.Cwd != "" {
		cfg.Cwd = filepath.Clean(cfg.Cwd)
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	return nil
}

// resolvePaths anchors Cwd at dir and Dest at Cwd
func (cfg *Config) resolvePaths(dir string) error {
	cwd := cfg.Cwd
	if cwd == "" {
		cwd = dir
	} else if !filepath.IsAbs(cwd) {
		cwd = filepath.Join(dir, cwd)
	}

	abs, err := filepath.Abs(cwd)
	if err != nil {
		return errors.Errorf("getting absolute cwd: %w", err)
	}
	cfg.Cwd = abs

	if !filepath.IsAbs(cfg.Dest) {
		cfg.Dest = filepath.Join(cfg.Cwd, cfg.Dest)
	}

	return nil
}

// Location returns the file the config was loaded from
func (cfg *Config) Location() string {
	return cfg.location
}

// 📝 String returns a string representation of the config
func (cfg *Config) String() string {
	return fmt.Sprintf("%s -> %s (%d stylesheets, process all: %t)",
		strings.Join(cfg.Src, ","), cfg.Dest, len(cfg.Assets.Folders), cfg.Assets.ProcessAllFiles)
}
