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
	"encoding/json"
	"sort"

	"github.com/walteh/cssassets/pkg/assets"
	"github.com/walteh/cssassets/pkg/file"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// ProcessAllKey is the options key that turns on processing for every stylesheet
const ProcessAllKey = "processAllFile"

// 🔧 Options configures which stylesheets get their assets relocated and where.
//
// On the wire it is a flat object: every key except ProcessAllKey is a stylesheet
// base filename mapped to its folder token.
//
//	{"base.css": "base", "deep.css": "deep", "processAllFile": true}
type Options struct {
	Folders         map[string]string // Stylesheet base filename => folder token
	ProcessAllFiles bool              // Process every stylesheet, defaulting the folder to its stem
}

// 🎯 IsEligible reports whether f is a stylesheet the stage should rewrite
func (o Options) IsEligible(f *file.File) bool {
	if !assets.IsStylesheet(f.Relative()) {
		return false
	}
	_, ok := o.FolderFor(f)
	return ok
}

// 📁 FolderFor returns the folder token for f. An explicit entry wins; with
// ProcessAllFiles set the stylesheet stem is used. Empty tokens count as unset.
func (o Options) FolderFor(f *file.File) (string, bool) {
	if folder := o.Folders[f.Basename()]; folder != "" {
		return folder, true
	}
	if o.ProcessAllFiles {
		return f.Stem(), true
	}
	return "", false
}

// UnmarshalJSON implements json.Unmarshaler for the flat options object
func (o *Options) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Errorf("decoding options: %w", err)
	}

	out := Options{Folders: make(map[string]string, len(raw))}
	for key, value := range raw {
		if key == ProcessAllKey {
			if err := json.Unmarshal(value, &out.ProcessAllFiles); err != nil {
				return errors.Errorf("%s must be a boolean: %w", ProcessAllKey, err)
			}
			continue
		}

		var folder string
		dec := json.NewDecoder(bytes.NewReader(value))
		if err := dec.Decode(&folder); err != nil {
			return errors.Errorf("folder for %q must be a string: %w", key, err)
		}
		out.Folders[key] = folder
	}

	*o = out
	return nil
}

// MarshalJSON implements json.Marshaler
func (o Options) MarshalJSON() ([]byte, error) {
	raw := make(map[string]any, len(o.Folders)+1)
	for k, v := range o.Folders {
		raw[k] = v
	}
	if o.ProcessAllFiles {
		raw[ProcessAllKey] = true
	}
	return json.Marshal(raw)
}

// UnmarshalYAML implements yaml.Unmarshaler for the flat options mapping
func (o *Options) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return errors.Errorf("line %d: options must be a mapping", node.Line)
	}

	out := Options{Folders: make(map[string]string, len(node.Content)/2)}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]

		if key.Value == ProcessAllKey {
			if err := value.Decode(&out.ProcessAllFiles); err != nil {
				return errors.Errorf("line %d: %s must be a boolean: %w", value.Line, ProcessAllKey, err)
			}
			continue
		}

		if value.Kind != yaml.ScalarNode || value.Tag != "!!str" {
			return errors.Errorf("line %d: folder for %q must be a string", value.Line, key.Value)
		}
		out.Folders[key.Value] = value.Value
	}

	*o = out
	return nil
}

// optionsFromMap builds Options from an already decoded flat table
func optionsFromMap(raw map[string]any) (Options, error) {
	out := Options{Folders: make(map[string]string, len(raw))}
	for key, value := range raw {
		if key == ProcessAllKey {
			all, ok := value.(bool)
			if !ok {
				return Options{}, errors.Errorf("%s must be a boolean, got %T", ProcessAllKey, value)
			}
			out.ProcessAllFiles = all
			continue
		}

		folder, ok := value.(string)
		if !ok {
			return Options{}, errors.Errorf("folder for %q must be a string, got %T", key, value)
		}
		out.Folders[key] = folder
	}
	return out, nil
}

// Stylesheets returns the explicitly configured stylesheet names, sorted
func (o Options) Stylesheets() []string {
	names := make([]string, 0, len(o.Folders))
	for name := range o.Folders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
