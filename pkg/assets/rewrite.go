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

package assets

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// urlPattern matches url( [quote] raw [quote] ). The quote, when present, has to
// match on both sides, so each quoting style gets its own alternative.
var urlPattern = regexp.MustCompile(`url\s*\(\s*(?:"(.*?)"|'(.*?)'|(.*?))\s*\)`)

// 🔗 Reference is a single url(...) occurrence found in stylesheet text
type Reference struct {
	Raw    string // Path as written by the author
	Offset int    // Byte offset of the occurrence in the original text
	End    int    // Byte offset just past the closing parenthesis
}

// 📦 Result holds the rewritten text and the asset mapping for one stylesheet.
// It is built fresh for every stylesheet and never shared.
type Result struct {
	Text string

	// Mapping maps a cleaned absolute source path to a cleaned destination-relative path
	Mapping map[string]string

	// Sources lists the keys of Mapping in first-reference order
	Sources []string

	// Replacements counts rewritten occurrences, duplicates included
	Replacements int

	// Skipped holds references whose meaningful suffix could not be determined
	Skipped []Reference
}

// 🔄 Rewrite replaces every url(...) occurrence in text with url(./<folder>/<suffix>)
// and records where each referenced resource lives and where it has to go.
// Empty references are left alone, malformed ones are left alone and logged.
func Rewrite(ctx context.Context, text, stylesheetDir, folder string) *Result {
	logger := zerolog.Ctx(ctx)

	res := &Result{
		Mapping: make(map[string]string),
	}

	var out strings.Builder
	out.Grow(len(text))
	last := 0

	for _, ref := range Scan(text) {
		dest, err := DestinationRelative(ref.Raw, folder)
		if err != nil {
			logger.Warn().Err(err).Str("reference", ref.Raw).Int("offset", ref.Offset).Msg("leaving reference untouched")
			res.Skipped = append(res.Skipped, ref)
			continue
		}

		src := ResolveAbsoluteSource(stylesheetDir, ref.Raw)
		if _, seen := res.Mapping[src]; !seen {
			res.Sources = append(res.Sources, src)
		}
		res.Mapping[src] = StripSuffix(dest)

		out.WriteString(text[last:ref.Offset])
		out.WriteString("url(./")
		out.WriteString(dest)
		out.WriteString(")")
		last = ref.End
		res.Replacements++

		logger.Trace().Str("reference", ref.Raw).Str("source", src).Str("destination", dest).Msg("rewrote reference")
	}

	out.WriteString(text[last:])
	res.Text = out.String()

	return res
}

// 🔍 Scan returns every non-empty reference in text, in encounter order
func Scan(text string) []Reference {
	var refs []Reference
	for _, m := range urlPattern.FindAllStringSubmatchIndex(text, -1) {
		raw, ok := rawValue(text, m)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		refs = append(refs, Reference{Raw: raw, Offset: m[0], End: m[1]})
	}
	return refs
}

// rawValue returns whichever of the three capture groups participated in match m
func rawValue(text string, m []int) (string, bool) {
	for g := 1; g <= 3; g++ {
		if start, end := m[2*g], m[2*g+1]; start >= 0 {
			return text[start:end], true
		}
	}
	return "", false
}
