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
Package dest writes pipeline records into a destination directory.

	   pipeline.Sink
	         |
	   +-----+------+
	   |   Writer   |
	   +-----+------+
	         |
	 +-------+--------+
	 |                |
	+----+----+   +---+-----+
	|  Files  |   | Console |
	| (disk)  |   | (log)   |
	+---------+   +---------+

🎯 Purpose:
  - Place every record at <dir>/<Relative()>
  - Track what each write did (new, modified, unchanged)
  - Report each write through the console logger

🔄 Flow:
 1. Refuse records whose relative path escapes the destination
 2. Create directories for null records
 3. Drain streams, compare against the existing file
 4. Write changed content through a temp file and rename

Unchanged files are never rewritten, so a second build over the same
sources leaves modification times alone.
*/
package dest
