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

/*
Package config manages project configuration and stage options for cssassets.

	            +-------------+
	            |   Config    |
	            | src / dest  |
	            +------+------+
	                   |
	   +----------+----+-----+----------+
	   |          |          |          |
	+--+---+  +---+---+  +---+---+  +---+---+
	| YAML |  | JSON  |  | TOML  |  |  HCL  |
	+------+  +-------+  +-------+  +-------+
	                   |
	            +------+------+
	            |   Options   |
	            | file=>folder|
	            +-------------+

🎯 Purpose:
- Loads a project file (src globs, dest, cwd, fan-out limit)
- Decodes the stage options in their flat wire shape
- Decides per stylesheet whether it is eligible and which folder token applies

🔄 Flow:
1. Load picks a parser by extension (".cssassets" tries YAML, then HCL)
2. The parser decodes and validates, filling in defaults
3. Load anchors cwd at the config file and dest at cwd

📝 Options wire shape:

	{"base.css": "base", "deep.css": "deep", "processAllFile": true}

Every key except processAllFile is a stylesheet base filename. With
processAllFile set, stylesheets without an entry use their own stem
("ignore.css" => "ignore"). Folder tokens are opaque path segments and are
never checked against the filesystem.

🔍 Example:

	cfg, err := config.Load(ctx, ".cssassets.yaml")
	if err != nil {
		return err
	}

	if cfg.Assets.IsEligible(f) {
		folder, _ := cfg.Assets.FolderFor(f)
		...
	}
*/
package config
