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
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) context.Context {
	return zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
}

func TestRewrite(t *testing.T) {
	dir := filepath.FromSlash("/proj/src/css")

	tests := []struct {
		name         string
		text         string
		folder       string
		want         string
		wantMapping  map[string]string
		wantSources  []string
		wantReplaced int
		wantSkipped  int
	}{
		{
			name:         "unquoted",
			text:         `body { background: url(../imgs/base-bg.png) no-repeat; }`,
			folder:       "base",
			want:         `body { background: url(./base/imgs/base-bg.png) no-repeat; }`,
			wantMapping:  map[string]string{"/proj/src/imgs/base-bg.png": "base/imgs/base-bg.png"},
			wantSources:  []string{"/proj/src/imgs/base-bg.png"},
			wantReplaced: 1,
		},
		{
			name:         "double_quoted_with_spaces",
			text:         `a { background: url( "../imgs/a.png" ); }`,
			folder:       "x",
			want:         `a { background: url(./x/imgs/a.png); }`,
			wantMapping:  map[string]string{"/proj/src/imgs/a.png": "x/imgs/a.png"},
			wantSources:  []string{"/proj/src/imgs/a.png"},
			wantReplaced: 1,
		},
		{
			name:         "single_quoted",
			text:         `a{background:url('../imgs/a.png')}`,
			folder:       "x",
			want:         `a{background:url(./x/imgs/a.png)}`,
			wantMapping:  map[string]string{"/proj/src/imgs/a.png": "x/imgs/a.png"},
			wantSources:  []string{"/proj/src/imgs/a.png"},
			wantReplaced: 1,
		},
		{
			name:         "space_before_paren",
			text:         `a{background:url ('../imgs/a.png')}`,
			folder:       "x",
			want:         `a{background:url(./x/imgs/a.png)}`,
			wantMapping:  map[string]string{"/proj/src/imgs/a.png": "x/imgs/a.png"},
			wantSources:  []string{"/proj/src/imgs/a.png"},
			wantReplaced: 1,
		},
		{
			name: "dedup_suffixes",
			text: `@font-face {
  src: url('../fonts/test-font.eot');
  src: url('../fonts/test-font.eot?#iefix') format('embedded-opentype'),
       url("../fonts/test-font.svg#glyphicons_halflingsregular") format('svg');
}`,
			folder: "deep",
			want: `@font-face {
  src: url(./deep/fonts/test-font.eot);
  src: url(./deep/fonts/test-font.eot?#iefix) format('embedded-opentype'),
       url(./deep/fonts/test-font.svg#glyphicons_halflingsregular) format('svg');
}`,
			wantMapping: map[string]string{
				"/proj/src/fonts/test-font.eot": "deep/fonts/test-font.eot",
				"/proj/src/fonts/test-font.svg": "deep/fonts/test-font.svg",
			},
			wantSources:  []string{"/proj/src/fonts/test-font.eot", "/proj/src/fonts/test-font.svg"},
			wantReplaced: 3,
		},
		{
			name:        "empty_placeholders",
			text:        `a{background:url()} b{background:url("")} c{background:url(  )}`,
			folder:      "x",
			want:        `a{background:url()} b{background:url("")} c{background:url(  )}`,
			wantMapping: map[string]string{},
		},
		{
			name:        "malformed_left_alone",
			text:        `a{fill:url(#gradient)} b{background:url(../)}`,
			folder:      "x",
			want:        `a{fill:url(#gradient)} b{background:url(../)}`,
			wantMapping: map[string]string{},
			wantSkipped: 2,
		},
		{
			name:        "no_references",
			text:        "a { color: red; }\n",
			folder:      "x",
			want:        "a { color: red; }\n",
			wantMapping: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Rewrite(testContext(t), tt.text, dir, tt.folder)

			wantMapping := make(map[string]string, len(tt.wantMapping))
			for k, v := range tt.wantMapping {
				wantMapping[filepath.FromSlash(k)] = v
			}
			var wantSources []string
			for _, s := range tt.wantSources {
				wantSources = append(wantSources, filepath.FromSlash(s))
			}

			assert.Equal(t, tt.want, res.Text, "rewritten text should match")
			assert.Equal(t, wantMapping, res.Mapping, "mapping should match")
			assert.Equal(t, wantSources, res.Sources, "sources should keep first-reference order")
			assert.Equal(t, tt.wantReplaced, res.Replacements, "replacement count should match")
			assert.Len(t, res.Skipped, tt.wantSkipped, "skipped count should match")
		})
	}
}

func TestRewriteDistinctReferences(t *testing.T) {
	dir := filepath.FromSlash("/proj/src/css/a/b")
	rewritten := regexp.MustCompile(`url\(\./icons/[^)]+\)`)

	for _, n := range []int{1, 2, 7, 25} {
		t.Run(fmt.Sprintf("n_%d", n), func(t *testing.T) {
			var sb strings.Builder
			for i := 0; i < n; i++ {
				fmt.Fprintf(&sb, ".i%d { background: url(\"../../../img/icon-%d.png\"); }\n", i, i)
			}

			res := Rewrite(testContext(t), sb.String(), dir, "icons")

			assert.Equal(t, n, res.Replacements)
			assert.Len(t, rewritten.FindAllString(res.Text, -1), n, "every reference should be rewritten")
			assert.Len(t, res.Sources, n, "distinct sources should all be recorded")
			assert.Len(t, res.Mapping, n)
			for i := 0; i < n; i++ {
				assert.Contains(t, res.Text, fmt.Sprintf("url(./icons/img/icon-%d.png)", i))
			}
		})
	}
}

func TestRewriteDedupSharesDestination(t *testing.T) {
	text := `x{src:url(../f/a.eot)} y{src:url(../f/a.eot?#iefix)}`
	res := Rewrite(testContext(t), text, filepath.FromSlash("/p/css"), "deep")

	require.Len(t, res.Sources, 1, "same resource should be recorded once")
	assert.Equal(t, "deep/f/a.eot", res.Mapping[res.Sources[0]])

	refs := Scan(res.Text)
	require.Len(t, refs, 2)
	assert.Equal(t, StripSuffix(refs[0].Raw), StripSuffix(refs[1].Raw), "both references should point at the same file")
	assert.Equal(t, "./deep/f/a.eot", StripSuffix(refs[1].Raw))
}

func TestScan(t *testing.T) {
	text := `a{b:url(x.png)} c{d:url( "y.png" )} e{f:url()} g{h:url('z.png')}`
	refs := Scan(text)

	require.Len(t, refs, 3)
	assert.Equal(t, "x.png", refs[0].Raw)
	assert.Equal(t, "y.png", refs[1].Raw)
	assert.Equal(t, "z.png", refs[2].Raw)
	assert.Equal(t, strings.Index(text, "url(x.png)"), refs[0].Offset)
	assert.Equal(t, strings.Index(text, "url(x.png)")+len("url(x.png)"), refs[0].End)
}
