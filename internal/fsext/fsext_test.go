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
package fsext

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExistsAndIsDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.True(t, Exists(dir))
	assert.True(t, Exists(file))
	assert.False(t, Exists(filepath.Join(dir, "missing")))

	assert.True(t, IsDir(dir))
	assert.False(t, IsDir(file))
	assert.False(t, IsDir(filepath.Join(dir, "missing")))
}

func TestExtBaseDir(t *testing.T) {
	p := filepath.Join("a", "b", "c.go")
	assert.Equal(t, ".go", Ext(p))
	assert.Equal(t, "c.go", Base(p))
	assert.Equal(t, filepath.Join("a", "b"), Dir(p))
}

func TestDirTrimShortensLongPaths(t *testing.T) {
	short := "/a/b"
	assert.Equal(t, short, DirTrim(short, 10))

	long := "/a/very/long/nested/path/file.go"
	trimmed := DirTrim(long, 10)
	assert.True(t, len(trimmed) <= 10)
	assert.Contains(t, trimmed, "...")
}

func TestToUnixLineEndingsStripsCR(t *testing.T) {
	out, ok := ToUnixLineEndings("a\r\nb\r\n")
	assert.True(t, ok)
	assert.Equal(t, "a\nb\n", out)
}

func TestListDirectoryRespectsLimit(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, string(rune('a'+i))), []byte("x"), 0o644))
	}

	files, truncated, err := ListDirectory(dir, nil, 1, 3)
	require.NoError(t, err)
	assert.Len(t, files, 3)
	assert.True(t, truncated)
}
