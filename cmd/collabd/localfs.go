// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/agentsync/collab/internal/fsext"
)

// localFS implements controller.FileReader/FileWriter directly against
// the process's own filesystem. This is the raw disk I/O the Agent
// Session Controller's shared-buffer cache (internal/controller) reads
// through and persists to; line slicing, snapshot diffing, and anchor
// bookkeeping all live in the controller, not here, since the real
// CRDT-backed buffer content is out of scope (spec.md §1) and this type
// only stands in for the disk underneath it.
type localFS struct{}

func (localFS) ReadTextFile(ctx context.Context, path string) (string, error) {
	if !fsext.Exists(path) {
		return "", fmt.Errorf("read_text_file: %s: %w", fsext.PrettyPath(path), os.ErrNotExist)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read_text_file %s: %w", path, err)
	}
	content, _ := fsext.ToUnixLineEndings(string(raw))
	return content, nil
}

func (localFS) WriteTextFile(ctx context.Context, path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
