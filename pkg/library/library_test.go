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

package library_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/bootpack/pkg/library"
	"github.com/walteh/bootpack/pkg/testutils"
)

func TestParseScope(t *testing.T) {
	tests := []struct {
		in      string
		want    library.Scope
		wantErr bool
	}{
		{in: "", want: library.ScopeCompile},
		{in: "compile", want: library.ScopeCompile},
		{in: "system", want: library.ScopeCompile},
		{in: "Runtime", want: library.ScopeRuntime},
		{in: "provided", want: library.ScopeProvided},
		{in: " custom ", want: library.ScopeCustom},
		{in: "test", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := library.ParseScope(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, library.ErrUnknownScope)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPartition(t *testing.T) {
	dir := t.TempDir()
	ctx := testutils.Context(t)

	a := testutils.WriteJar(t, filepath.Join(dir, "a.jar"), testutils.File("a", "a"))
	b := testutils.WriteJar(t, filepath.Join(dir, "b.jar"), testutils.File("b", "b"))
	c := testutils.WriteJar(t, filepath.Join(dir, "c.jar"), testutils.File("c", "c"))
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("plain text"), 0o644))

	libs := []library.Library{
		library.New(a, library.ScopeCompile, false),
		library.New(notes, library.ScopeCompile, false),
		library.New(b, library.ScopeRuntime, true),
		library.New(filepath.Join(dir, "missing.jar"), library.ScopeCompile, false),
		library.New(c, library.ScopeCompile, false),
	}

	set := library.Partition(ctx, libs)

	require.Len(t, set.Unpack, 1)
	assert.Equal(t, "b.jar", set.Unpack[0].Name)
	require.Len(t, set.Standard, 2)
	assert.Equal(t, "a.jar", set.Standard[0].Name)
	assert.Equal(t, "c.jar", set.Standard[1].Name)
	assert.Equal(t, 3, set.Len())

	var order []string
	for _, l := range set.All() {
		order = append(order, l.Name)
	}
	assert.Equal(t, []string{"b.jar", "a.jar", "c.jar"}, order, "unpack group comes first")
}

func TestGlob(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"libs/z.jar", "libs/a.jar", "libs/nested/n.jar", "extra/e.jar", "libs/readme.md"} {
		full := filepath.Join(dir, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "libs", "dir.jar"), 0o755))

	libs, err := library.Glob(dir, []string{"extra/*.jar", "libs/**/*.jar", "libs/a.jar"}, library.ScopeRuntime)
	require.NoError(t, err)

	var names []string
	for _, l := range libs {
		names = append(names, l.Name)
		assert.Equal(t, library.ScopeRuntime, l.Scope)
		assert.True(t, filepath.IsAbs(l.File))
	}
	assert.Equal(t, []string{"e.jar", "a.jar", "n.jar", "z.jar"}, names)

	_, err = library.Glob(dir, []string{"libs/[.jar"}, library.ScopeCompile)
	require.Error(t, err)
}
