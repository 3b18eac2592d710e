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

package repackage

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/bootpack/pkg/jar"
	"github.com/walteh/bootpack/pkg/layout"
	"github.com/walteh/bootpack/pkg/library"
	"github.com/walteh/bootpack/pkg/manifest"
	"github.com/walteh/bootpack/pkg/testutils"
)

const loaderClass = "org/springframework/boot/loader/JarLauncher.class"

// 🧪 testEnv holds a scratch directory with a source archive and a loader archive
type testEnv struct {
	dir    string
	source string
	loader string
}

func newTestEnv(t *testing.T, entries ...testutils.Entry) *testEnv {
	t.Helper()
	dir := t.TempDir()
	if len(entries) == 0 {
		entries = []testutils.Entry{
			testutils.Manifest("Main-Class", "com.example.App"),
			testutils.ClassEntry("", testutils.Class{Name: "com.example.App", Main: true}),
			testutils.File("application.properties", "server.port=8080"),
		}
	}
	return &testEnv{
		dir:    dir,
		source: testutils.WriteJar(t, filepath.Join(dir, "app.jar"), entries...),
		loader: testutils.WriteJar(t, filepath.Join(dir, "loader", "loader.jar"),
			testutils.Manifest(),
			testutils.File(loaderClass, "launcher"),
		),
	}
}

func (e *testEnv) lib(t *testing.T, name string) string {
	t.Helper()
	return testutils.WriteJar(t, filepath.Join(e.dir, "repo", name), testutils.File(name+".txt", name))
}

func readManifest(t *testing.T, path string) *manifest.Manifest {
	t.Helper()
	m, err := jar.ReadManifest(path)
	require.NoError(t, err)
	require.NotNil(t, m, "archive %s has no manifest", path)
	return m
}

func TestRepackageInPlaceEmbedded(t *testing.T) {
	tests := []struct {
		name       string
		backup     bool
		wantBackup bool
	}{
		{name: "keep_backup", backup: true, wantBackup: true},
		{name: "drop_backup", backup: false, wantBackup: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := testutils.Context(t)
			original, err := os.ReadFile(env.source)
			require.NoError(t, err)

			result, err := Repackage(ctx, Options{
				Source:        env.source,
				BackupSource:  tt.backup,
				Version:       "1.5.22.RELEASE",
				LoaderArchive: env.loader,
			})
			require.NoError(t, err)
			assert.False(t, result.AlreadyRepackaged)
			assert.Equal(t, env.source, result.Destination)
			assert.Equal(t, "com.example.App", result.StartClass)

			m := readManifest(t, env.source)
			assert.Equal(t, "com.example.App", m.Main.Get(manifest.StartClass))
			assert.Equal(t, layout.JarLauncher, m.Main.Get(manifest.MainClass))
			assert.Equal(t, "1.5.22.RELEASE", m.Main.Get(manifest.BootVersion))
			assert.Equal(t, "BOOT-INF/classes/", m.Main.Get(manifest.BootClasses))
			assert.Equal(t, "BOOT-INF/lib/", m.Main.Get(manifest.BootLib))
			assert.False(t, m.Main.Has(manifest.ClassPath))

			names, contents := testutils.ReadJar(t, env.source)
			assert.Equal(t, "META-INF/MANIFEST.MF", names[1], "manifest comes right after its directory")
			assert.Contains(t, names, "BOOT-INF/classes/com/example/App.class")
			assert.Equal(t, "server.port=8080", string(contents["BOOT-INF/classes/application.properties"]))
			assert.Equal(t, loaderClass, names[len(names)-1], "loader classes come last")

			backup := env.source + BackupSuffix
			if tt.wantBackup {
				assert.Equal(t, backup, result.Backup)
				kept, err := os.ReadFile(backup)
				require.NoError(t, err)
				assert.Equal(t, original, kept, "backup holds the original bytes")
			} else {
				assert.Empty(t, result.Backup)
				assert.NoFileExists(t, backup)
			}
		})
	}
}

func TestRepackageIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutils.Context(t)
	lib := env.lib(t, "a.jar")

	opts := Options{
		Source:        env.source,
		Libraries:     []library.Library{library.New(lib, library.ScopeCompile, false)},
		LoaderArchive: env.loader,
		Version:       "1.0",
	}

	first, err := Repackage(ctx, opts)
	require.NoError(t, err)
	require.Len(t, first.Libraries, 1)
	after, err := os.ReadFile(env.source)
	require.NoError(t, err)

	second, err := Repackage(ctx, opts)
	require.NoError(t, err)
	assert.True(t, second.AlreadyRepackaged)
	assert.Empty(t, second.Libraries, "second run places no libraries")

	again, err := os.ReadFile(env.source)
	require.NoError(t, err)
	assert.Equal(t, after, again, "second run must not rewrite the archive")
	assert.Equal(t, "1.0", readManifest(t, env.source).Main.Get(manifest.BootVersion))
}

func TestRepackageDuplicateLibrary(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutils.Context(t)
	one := env.lib(t, "a.jar")
	other := testutils.WriteJar(t, filepath.Join(env.dir, "elsewhere", "a.jar"), testutils.File("x", "x"))
	original, err := os.ReadFile(env.source)
	require.NoError(t, err)

	libs := []library.Library{
		library.New(one, library.ScopeCompile, true),
		library.New(other, library.ScopeCompile, false),
	}

	tests := []struct {
		name        string
		mode        Mode
		destination string
	}{
		{name: "embedded_separate_destination", mode: ModeEmbedded, destination: filepath.Join(env.dir, "out", "app.jar")},
		{name: "embedded_in_place", mode: ModeEmbedded},
		{name: "exploded", mode: ModeExploded, destination: filepath.Join(env.dir, "out", "app.jar")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Repackage(ctx, Options{
				Source:        env.source,
				Destination:   tt.destination,
				Libraries:     libs,
				Mode:          tt.mode,
				LoaderArchive: env.loader,
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDuplicateLibrary)
			assert.Contains(t, err.Error(), "a.jar")

			if tt.destination != "" {
				assert.NoFileExists(t, tt.destination, "no destination archive is written")
				assert.NoDirExists(t, filepath.Join(filepath.Dir(tt.destination), "lib"))
			}
			assert.NoFileExists(t, env.source+BackupSuffix)
			current, err := os.ReadFile(env.source)
			require.NoError(t, err)
			assert.Equal(t, original, current)
		})
	}
}

func TestRepackageExploded(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutils.Context(t)
	a := env.lib(t, "a.jar")
	b := env.lib(t, "b.jar")
	notes := filepath.Join(env.dir, "repo", "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("not an archive"), 0o644))

	dest := filepath.Join(env.dir, "target", "app.jar")
	result, err := Repackage(ctx, Options{
		Source:      env.source,
		Destination: dest,
		Mode:        ModeExploded,
		Libraries: []library.Library{
			library.New(a, library.ScopeCompile, false),
			library.New(notes, library.ScopeCompile, false),
			library.New(b, library.ScopeCompile, true),
		},
		LoaderArchive: env.loader,
	})
	require.NoError(t, err)

	libDir := filepath.Join(env.dir, "target", "lib")
	assert.Equal(t, libDir, result.LibraryDir)
	assert.FileExists(t, filepath.Join(libDir, "a.jar"))
	assert.FileExists(t, filepath.Join(libDir, "b.jar"))
	assert.NoFileExists(t, filepath.Join(libDir, "notes.txt"), "non-archives are skipped")
	assert.FileExists(t, a, "libraries are copied, not moved")

	m := readManifest(t, dest)
	assert.Equal(t, "lib/b.jar lib/a.jar", m.Main.Get(manifest.ClassPath))
	assert.Equal(t, "lib/b.jar lib/a.jar", result.ClassPath)
	assert.Equal(t, UnknownVersion, m.Main.Get(manifest.BootVersion))

	names, _ := testutils.ReadJar(t, dest)
	for _, n := range names {
		assert.False(t, strings.HasPrefix(n, "BOOT-INF/lib/"), "exploded mode nests nothing: %s", n)
	}
	assert.FileExists(t, env.source, "source is left alone when the destination differs")
}

func TestRepackageClassPathRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutils.Context(t)

	var libs []library.Library
	var want []string
	for i, name := range []string{"c.jar", "a.jar", "d.jar", "b.jar"} {
		libs = append(libs, library.New(env.lib(t, name), library.ScopeRuntime, i%2 == 1))
	}
	// unpack group first, then standard, each in input order
	want = []string{"lib/a.jar", "lib/b.jar", "lib/c.jar", "lib/d.jar"}

	dest := filepath.Join(env.dir, "target", "app.jar")
	_, err := Repackage(ctx, Options{Source: env.source, Destination: dest, Mode: ModeExploded, Libraries: libs, LoaderArchive: env.loader})
	require.NoError(t, err)

	assert.Equal(t, want, strings.Fields(readManifest(t, dest).Main.Get(manifest.ClassPath)))
}

func TestRepackageEmbeddedLibraries(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutils.Context(t)
	a := env.lib(t, "a.jar")
	b := env.lib(t, "b.jar")
	notes := filepath.Join(env.dir, "repo", "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("not an archive"), 0o644))

	dest := filepath.Join(env.dir, "target", "app.jar")
	result, err := Repackage(ctx, Options{
		Source:      env.source,
		Destination: dest,
		Libraries: []library.Library{
			library.New(a, library.ScopeCompile, false),
			library.New(notes, library.ScopeCompile, false),
			library.New(b, library.ScopeCompile, true),
		},
		LoaderArchive: env.loader,
	})
	require.NoError(t, err)
	require.Len(t, result.Libraries, 2)
	assert.Equal(t, "BOOT-INF/lib/b.jar", result.Libraries[0].Path)
	assert.Equal(t, "BOOT-INF/lib/a.jar", result.Libraries[1].Path)

	zr, err := zip.OpenReader(dest)
	require.NoError(t, err)
	defer zr.Close()

	index := map[string]int{}
	comments := map[string]string{}
	for i, f := range zr.File {
		index[f.Name] = i
		comments[f.Name] = f.Comment
	}

	require.Contains(t, index, "BOOT-INF/lib/a.jar")
	require.Contains(t, index, "BOOT-INF/lib/b.jar")
	assert.NotContains(t, index, "BOOT-INF/lib/notes.txt")

	app := index["BOOT-INF/classes/com/example/App.class"]
	assert.Less(t, index["BOOT-INF/lib/b.jar"], app, "unpack libraries precede application entries")
	assert.Greater(t, index["BOOT-INF/lib/a.jar"], app, "standard libraries follow application entries")
	assert.True(t, strings.HasPrefix(comments["BOOT-INF/lib/b.jar"], jar.UnpackCommentPrefix))
	assert.Empty(t, comments["BOOT-INF/lib/a.jar"])
}

func TestRepackageFindsMainClass(t *testing.T) {
	env := newTestEnv(t,
		testutils.Manifest(),
		testutils.ClassEntry("", testutils.Class{Name: "com.example.Helper"}),
		testutils.ClassEntry("", testutils.Class{Name: "com.example.Tool", Main: true}),
		testutils.ClassEntry("", testutils.Class{Name: "com.example.app.Application", Main: true, Annotations: []string{"org.springframework.boot.autoconfigure.SpringBootApplication"}}),
	)
	ctx := testutils.Context(t)

	calls := 0
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	orig := now
	t.Cleanup(func() { now = orig })
	now = func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(11 * time.Second)
	}

	var warned time.Duration
	var warnedClass string
	result, err := Repackage(ctx, Options{
		Source:        env.source,
		Destination:   filepath.Join(env.dir, "out.jar"),
		LoaderArchive: env.loader,
		TimeoutWarning: func(elapsed time.Duration, mainClass string) {
			warned = elapsed
			warnedClass = mainClass
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "com.example.app.Application", result.StartClass)
	assert.Equal(t, 11*time.Second, warned)
	assert.Equal(t, "com.example.app.Application", warnedClass)
}

func TestRepackageNoWarningForFastScan(t *testing.T) {
	env := newTestEnv(t,
		testutils.ClassEntry("", testutils.Class{Name: "com.example.App", Main: true}),
	)
	ctx := testutils.Context(t)

	fired := false
	result, err := Repackage(ctx, Options{
		Source:         env.source,
		Destination:    filepath.Join(env.dir, "out.jar"),
		LoaderArchive:  env.loader,
		MainClass:      "",
		TimeoutWarning: func(time.Duration, string) { fired = true },
	})
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Equal(t, "com.example.App", result.StartClass)
	assert.Equal(t, "1.0", readManifest(t, filepath.Join(env.dir, "out.jar")).Main.Get(manifest.ManifestVersion), "manifest is synthesized")
}

func TestRepackageStartClassPriority(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutils.Context(t)

	dest := filepath.Join(env.dir, "out.jar")
	result, err := Repackage(ctx, Options{Source: env.source, Destination: dest, MainClass: "com.example.Override", LoaderArchive: env.loader})
	require.NoError(t, err)
	assert.Equal(t, "com.example.Override", result.StartClass)
	assert.Equal(t, "com.example.Override", readManifest(t, dest).Main.Get(manifest.StartClass))
}

func TestRepackageMainClassNotFound(t *testing.T) {
	env := newTestEnv(t,
		testutils.Manifest(),
		testutils.ClassEntry("", testutils.Class{Name: "com.example.Helper"}),
	)
	ctx := testutils.Context(t)
	original, err := os.ReadFile(env.source)
	require.NoError(t, err)

	_, err = Repackage(ctx, Options{Source: env.source, LoaderArchive: env.loader})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMainClassNotFound)

	current, err := os.ReadFile(env.source)
	require.NoError(t, err, "in place source is restored")
	assert.Equal(t, original, current)
	assert.NoFileExists(t, env.source+BackupSuffix)
}

func TestRepackageExplodedFailureRemovesCopiedLibraries(t *testing.T) {
	tests := []struct {
		name     string
		existing bool
	}{
		{name: "fresh_library_dir"},
		{name: "existing_library_dir", existing: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := testutils.Context(t)
			libDir := filepath.Join(env.dir, DefaultLibraryDir)
			if tt.existing {
				require.NoError(t, os.MkdirAll(libDir, 0o755))
				require.NoError(t, os.WriteFile(filepath.Join(libDir, "keep.jar"), []byte("keep"), 0o644))
			}
			brokenLoader := filepath.Join(env.dir, "loader", "broken.jar")
			require.NoError(t, os.WriteFile(brokenLoader, []byte("not a zip"), 0o644))

			original, err := os.ReadFile(env.source)
			require.NoError(t, err)

			_, err = Repackage(ctx, Options{
				Source:        env.source,
				Mode:          ModeExploded,
				Libraries:     []library.Library{library.New(env.lib(t, "a.jar"), library.ScopeCompile, false)},
				LoaderArchive: brokenLoader,
			})
			require.Error(t, err)

			current, err := os.ReadFile(env.source)
			require.NoError(t, err)
			assert.Equal(t, original, current, "in place source is restored")
			assert.NoFileExists(t, filepath.Join(libDir, "a.jar"))
			if tt.existing {
				assert.FileExists(t, filepath.Join(libDir, "keep.jar"), "files that were already there stay")
			} else {
				assert.NoDirExists(t, libDir)
			}
		})
	}
}

func TestRepackageLayouts(t *testing.T) {
	tests := []struct {
		name        string
		source      string
		layout      *layout.Layout
		entries     []testutils.Entry
		wantMain    string
		wantStart   string
		wantClasses string
		wantLib     string
		wantEntries []string
		notEntries  []string
	}{
		{
			name:   "war",
			source: "site.war",
			entries: []testutils.Entry{
				testutils.ClassEntry("WEB-INF/classes/", testutils.Class{Name: "com.example.Site", Main: true}),
				testutils.File("index.html", "<html/>"),
			},
			wantMain:    layout.WarLauncher,
			wantStart:   "com.example.Site",
			wantClasses: "WEB-INF/classes/",
			wantLib:     "WEB-INF/lib/",
			wantEntries: []string{"WEB-INF/classes/com/example/Site.class", "index.html", "WEB-INF/lib/compile.jar", "WEB-INF/lib-provided/provided.jar"},
		},
		{
			name:   "module",
			source: "mod.jar",
			layout: layout.Module(),
			entries: []testutils.Entry{
				testutils.ClassEntry("", testutils.Class{Name: "com.example.Mod", Main: true}),
			},
			wantMain:    "com.example.Mod",
			wantClasses: "",
			wantLib:     "lib/",
			wantEntries: []string{"com/example/Mod.class", "lib/compile.jar"},
			notEntries:  []string{"lib/provided.jar", loaderClass},
		},
		{
			name:   "none",
			source: "plain.jar",
			layout: layout.None(),
			entries: []testutils.Entry{
				testutils.ClassEntry("", testutils.Class{Name: "com.example.Plain", Main: true}),
			},
			wantMain:    "com.example.Plain",
			wantClasses: "BOOT-INF/classes/",
			wantLib:     "BOOT-INF/lib/",
			wantEntries: []string{"BOOT-INF/classes/com/example/Plain.class", "BOOT-INF/lib/compile.jar", "BOOT-INF/lib/provided.jar"},
			notEntries:  []string{loaderClass},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := testutils.Context(t)
			source := testutils.WriteJar(t, filepath.Join(env.dir, tt.source), tt.entries...)
			dest := filepath.Join(env.dir, "out", tt.source)

			_, err := Repackage(ctx, Options{
				Source:      source,
				Destination: dest,
				Layout:      tt.layout,
				Libraries: []library.Library{
					{File: env.lib(t, "c.jar"), Name: "compile.jar", Scope: library.ScopeCompile},
					{File: env.lib(t, "p.jar"), Name: "provided.jar", Scope: library.ScopeProvided},
				},
				LoaderArchive: env.loader,
			})
			require.NoError(t, err)

			m := readManifest(t, dest)
			assert.Equal(t, tt.wantMain, m.Main.Get(manifest.MainClass))
			assert.Equal(t, tt.wantStart, m.Main.Get(manifest.StartClass))
			assert.Equal(t, tt.wantClasses, m.Main.Get(manifest.BootClasses))
			assert.Equal(t, tt.wantLib, m.Main.Get(manifest.BootLib))

			names, _ := testutils.ReadJar(t, dest)
			for _, e := range tt.wantEntries {
				assert.Contains(t, names, e)
			}
			for _, e := range tt.notEntries {
				assert.NotContains(t, names, e)
			}
		})
	}
}

func TestRepackageOutputDir(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutils.Context(t)
	a := env.lib(t, "a.jar")

	out := filepath.Join(env.dir, "dist")
	stale := filepath.Join(out, "lib", "stale.jar")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	result, err := Repackage(ctx, Options{
		Source:        env.source,
		Mode:          ModeExploded,
		Libraries:     []library.Library{library.New(a, library.ScopeCompile, false)},
		BackupSource:  true,
		OutputDir:     out,
		LoaderArchive: env.loader,
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(out, "app.jar"), result.Destination)
	assert.Equal(t, filepath.Join(out, "lib"), result.LibraryDir)
	assert.Equal(t, filepath.Join(out, "app.jar"+BackupSuffix), result.Backup)
	assert.Equal(t, filepath.Join(out, "lib", "a.jar"), result.Libraries[0].Path)

	assert.FileExists(t, filepath.Join(out, "app.jar"))
	assert.FileExists(t, filepath.Join(out, "lib", "a.jar"))
	assert.NoFileExists(t, stale, "prior library contents are replaced")
	assert.FileExists(t, filepath.Join(out, "app.jar"+BackupSuffix))

	assert.NoFileExists(t, env.source)
	assert.NoDirExists(t, filepath.Join(env.dir, "lib"))
}

func TestRepackageLaunchScript(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutils.Context(t)
	dest := filepath.Join(env.dir, "app.run")

	_, err := Repackage(ctx, Options{
		Source:        env.source,
		Destination:   dest,
		Layout:        layout.Jar(),
		LaunchScript:  scriptBytes("#!/bin/sh\nexec java -jar \"$0\" \"$@\"\n"),
		LoaderArchive: env.loader,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("#!/bin/sh\n")))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	assert.Equal(t, "com.example.App", readManifest(t, dest).Main.Get(manifest.StartClass))
}

type scriptBytes string

func (s scriptBytes) Bytes() []byte { return []byte(s) }

func TestRepackageWithoutLoaderArchive(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutils.Context(t)
	dest := filepath.Join(env.dir, "out.jar")

	result, err := Repackage(ctx, Options{Source: env.source, Destination: dest})
	require.NoError(t, err)
	assert.True(t, result.MissingLoader)

	names, _ := testutils.ReadJar(t, dest)
	assert.NotContains(t, names, loaderClass)

	result, err = Repackage(ctx, Options{Source: env.source, Destination: filepath.Join(env.dir, "module.jar"), Layout: layout.Module()})
	require.NoError(t, err)
	assert.False(t, result.MissingLoader, "layouts without a launcher need no loader classes")

	result, err = Repackage(ctx, Options{Source: env.source, Destination: filepath.Join(env.dir, "loaded.jar"), LoaderArchive: env.loader})
	require.NoError(t, err)
	assert.False(t, result.MissingLoader)
}

type recordingLoader struct{ called bool }

func (r *recordingLoader) WriteLoaderClasses(w *jar.Writer) error {
	r.called = true
	return w.WriteEntry("custom/Loader.class", strings.NewReader("custom"), testutils.Epoch)
}

func TestRepackageCustomLoader(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutils.Context(t)
	dest := filepath.Join(env.dir, "out.jar")
	loader := &recordingLoader{}

	_, err := Repackage(ctx, Options{
		Source:        env.source,
		Destination:   dest,
		Layout:        &layout.Layout{Kind: layout.KindJar, Loader: loader},
		LoaderArchive: env.loader,
	})
	require.NoError(t, err)
	assert.True(t, loader.called)

	names, _ := testutils.ReadJar(t, dest)
	assert.Contains(t, names, "custom/Loader.class")
	assert.NotContains(t, names, loaderClass, "custom loader replaces the default one")
}

func TestRepackageInvalidInputs(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutils.Context(t)

	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{name: "no_source", opts: Options{}, wantErr: ErrInvalidSource},
		{name: "missing_source", opts: Options{Source: filepath.Join(env.dir, "missing.jar")}, wantErr: ErrInvalidSource},
		{name: "source_is_directory", opts: Options{Source: env.dir}, wantErr: ErrInvalidSource},
		{name: "destination_is_directory", opts: Options{Source: env.source, Destination: env.dir}, wantErr: ErrInvalidDestination},
		{name: "unknown_layout", opts: Options{Source: testutils.WriteJar(t, filepath.Join(env.dir, "app.ear"), testutils.Manifest())}, wantErr: layout.ErrUnknownLayout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Repackage(ctx, tt.opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVersionDetection(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutils.Context(t)
	boot := env.lib(t, "spring-boot-1.5.9.RELEASE.jar")
	other := env.lib(t, "spring-boot-autoconfigure-2.0.0.jar")

	tests := []struct {
		name    string
		version string
		want    string
	}{
		{name: "detected", want: "1.5.9.RELEASE"},
		{name: "explicit_wins", version: "3.0.0", want: "3.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := filepath.Join(env.dir, tt.name, "app.jar")
			_, err := Repackage(ctx, Options{
				Source:      env.source,
				Destination: dest,
				Mode:        ModeExploded,
				Version:     tt.version,
				Libraries: []library.Library{
					library.New(boot, library.ScopeCompile, false),
					library.New(other, library.ScopeCompile, false),
				},
				LoaderArchive: env.loader,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, readManifest(t, dest).Main.Get(manifest.BootVersion))
		})
	}

	assert.Equal(t, "1.5.9.RELEASE", versionToken("spring-boot-1.5.9.RELEASE.jar"))
	assert.Equal(t, "", versionToken("nohyphen.jar"))
}

func TestRelocate(t *testing.T) {
	tr := relocate("BOOT-INF/classes/")

	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{in: "META-INF/INDEX.LIST", wantOK: false},
		{in: "META-INF/MANIFEST.MF", want: "META-INF/MANIFEST.MF", wantOK: true},
		{in: "META-INF/", want: "META-INF/", wantOK: true},
		{in: "META-INF/aop.xml", want: "BOOT-INF/classes/META-INF/aop.xml", wantOK: true},
		{in: "BOOT-INF/lib/x.jar", want: "BOOT-INF/lib/x.jar", wantOK: true},
		{in: "com/example/App.class", want: "BOOT-INF/classes/com/example/App.class", wantOK: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := tr.Transform(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
