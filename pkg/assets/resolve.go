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
	"path"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// StylesheetExt is the extension of files the stage rewrites
const StylesheetExt = ".css"

// ErrMalformedReference is returned when a reference has no meaningful suffix
var ErrMalformedReference = errors.Base("malformed reference")

// 🔍 IsStylesheet reports whether path has the stylesheet extension, ignoring case
func IsStylesheet(p string) bool {
	return strings.EqualFold(filepath.Ext(p), StylesheetExt)
}

// ✂️ StripSuffix removes a trailing query or fragment. The cut happens at the first
// '?' or '#', so "a.eot?#iefix" and "a.svg#x?y" both reduce to the bare path.
func StripSuffix(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		return p[:i]
	}
	return p
}

// 📍 ResolveAbsoluteSource joins the stylesheet directory with the raw reference and
// strips any query or fragment.
func ResolveAbsoluteSource(stylesheetDir, raw string) string {
	return StripSuffix(filepath.Join(stylesheetDir, filepath.FromSlash(raw)))
}

// 📍 DestinationRelative returns folder joined with the meaningful suffix of raw,
// using '/' separators. Leading navigation segments ("..", "." and empty ones from
// a leading '/') are discarded; whatever follows is kept whole, so "img.png",
// "imgs/a.png" and "-icons/a.png" keep every directory they name. The query or
// fragment, if any, is preserved.
func DestinationRelative(raw, folder string) (string, error) {
	raw = filepath.ToSlash(raw)

	suffix, ok := meaningfulSuffix(raw)
	if !ok {
		return "", errors.Errorf("%w: %q", ErrMalformedReference, raw)
	}

	return path.Join(filepath.ToSlash(folder), suffix), nil
}

// meaningfulSuffix drops the leading navigation segments of raw. It fails when
// nothing but navigation, a query or a fragment remains.
func meaningfulSuffix(raw string) (string, bool) {
	segs := strings.Split(raw, "/")

	i := 0
	for i < len(segs) && (segs[i] == "" || segs[i] == "." || segs[i] == "..") {
		i++
	}
	if i == len(segs) {
		return "", false
	}

	suffix := strings.Join(segs[i:], "/")
	if strings.HasPrefix(suffix, "?") || strings.HasPrefix(suffix, "#") {
		return "", false
	}
	return suffix, true
}
