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

// Package repackage rewrites a plain java archive into one that can be started
// with java -jar, either with its libraries nested inside or copied next to it.
package repackage

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/bootpack/pkg/classfile"
	"github.com/walteh/bootpack/pkg/fsutil"
	"github.com/walteh/bootpack/pkg/jar"
	"github.com/walteh/bootpack/pkg/layout"
	"github.com/walteh/bootpack/pkg/library"
	"github.com/walteh/bootpack/pkg/manifest"
)

// now is swapped by tests to simulate a slow main class scan.
var now = time.Now

// 📦 operation is the state of a single Repackage call
type operation struct {
	opts        Options
	source      string
	destination string
	layout      *layout.Layout
	libraryDir  string
	inPlace     bool
	backup      string
	unpack      []Placement
	standard    []Placement
	classPath   string
	version     string
	logger      zerolog.Logger

	// copied lists library files written in exploded mode, removed again on rollback
	copied            []string
	createdLibraryDir bool
	missingLoader     bool
}

// 🏃 Repackage rewrites opts.Source into opts.Destination. A source that is
// already repackaged is left alone and reported through Result.AlreadyRepackaged.
func Repackage(ctx context.Context, opts Options) (*Result, error) {
	op, err := newOperation(ctx, opts)
	if err != nil {
		return nil, err
	}
	return op.run(ctx)
}

func newOperation(ctx context.Context, opts Options) (*operation, error) {
	if opts.Source == "" {
		return nil, errors.Errorf("%w: source is required", ErrInvalidSource)
	}
	source, err := filepath.Abs(opts.Source)
	if err != nil {
		return nil, errors.Errorf("%w: %q: %v", ErrInvalidSource, opts.Source, err)
	}
	info, err := os.Stat(source)
	if err != nil {
		return nil, errors.Errorf("%w: %q does not exist", ErrInvalidSource, source)
	}
	if !info.Mode().IsRegular() {
		return nil, errors.Errorf("%w: %q is not a regular file", ErrInvalidSource, source)
	}

	destination := source
	if opts.Destination != "" {
		if destination, err = filepath.Abs(opts.Destination); err != nil {
			return nil, errors.Errorf("%w: %q: %v", ErrInvalidDestination, opts.Destination, err)
		}
	}
	if info, err := os.Stat(destination); err == nil && info.IsDir() {
		return nil, errors.Errorf("%w: %q is a directory", ErrInvalidDestination, destination)
	}

	inPlace, err := fsutil.SamePath(source, destination)
	if err != nil {
		return nil, errors.Errorf("comparing source and destination: %w", err)
	}

	libraryDir := opts.LibraryDir
	if libraryDir == "" {
		libraryDir = DefaultLibraryDir
	}

	return &operation{
		opts:        opts,
		source:      source,
		destination: destination,
		layout:      opts.Layout,
		libraryDir:  libraryDir,
		inPlace:     inPlace,
		logger: zerolog.Ctx(ctx).With().
			Str("source", source).
			Str("destination", destination).
			Str("mode", opts.Mode.String()).
			Logger(),
	}, nil
}

func (op *operation) run(ctx context.Context) (*Result, error) {
	ctx = op.logger.WithContext(ctx)

	done, err := op.alreadyRepackaged()
	if err != nil {
		return nil, err
	}
	if done {
		op.logger.Info().Msg("source is already repackaged, nothing to do")
		return &Result{AlreadyRepackaged: true, Destination: op.source}, nil
	}

	if op.layout == nil {
		if op.layout, err = layout.ForFile(op.source); err != nil {
			return nil, err
		}
	}

	// placement is planned up front so a collision fails before anything is touched
	set := library.Partition(ctx, op.opts.Libraries)
	if err := op.plan(set); err != nil {
		return nil, err
	}

	working, err := op.prepareDestination()
	if err != nil {
		return nil, err
	}

	startClass, err := op.write(ctx, working)
	if err != nil {
		op.rollback(ctx)
		return nil, err
	}

	result := &Result{
		Destination: op.destination,
		StartClass:  startClass,
		Libraries:   append(append([]Placement(nil), op.unpack...), op.standard...),
		ClassPath:   op.classPath,
		Layout:      op.layout,

		MissingLoader: op.missingLoader,
	}
	if op.opts.Mode == ModeExploded && len(result.Libraries) > 0 {
		result.LibraryDir = op.siblingLibraryDir()
	}

	if err := op.deliver(result); err != nil {
		return nil, err
	}
	op.cleanup(ctx, result)

	op.logger.Info().
		Str("layout", op.layout.String()).
		Str("start_class", startClass).
		Int("libraries", len(result.Libraries)).
		Msg("repackaged archive")

	return result, nil
}

func (op *operation) alreadyRepackaged() (bool, error) {
	m, err := jar.ReadManifest(op.source)
	if err != nil {
		return false, errors.Errorf("reading source manifest: %w", err)
	}
	return m != nil && m.Main.Has(manifest.BootVersion), nil
}

// 🗂️ plan resolves the destination of every library and the exploded class path.
func (op *operation) plan(set library.Set) error {
	seen := map[string]struct{}{}

	place := func(libs []library.Library) ([]Placement, error) {
		var out []Placement
		for _, lib := range libs {
			var key, target string
			if op.opts.Mode == ModeExploded {
				key = op.libraryDir + "/" + lib.Name
				target = filepath.Join(op.siblingLibraryDir(), lib.Name)
			} else {
				dir := op.layout.LibraryDestination(lib.Name, lib.Scope)
				if dir == "" {
					op.logger.Debug().Str("library", lib.Name).Str("scope", lib.Scope.String()).Msg("layout has no destination for library")
					continue
				}
				key = dir + lib.Name
				target = key
			}
			if _, dup := seen[key]; dup {
				return nil, errors.Errorf("%w: %s", ErrDuplicateLibrary, lib.Name)
			}
			seen[key] = struct{}{}
			out = append(out, Placement{Library: lib, Path: target})
		}
		return out, nil
	}

	var err error
	if op.unpack, err = place(set.Unpack); err != nil {
		return err
	}
	if op.standard, err = place(set.Standard); err != nil {
		return err
	}

	if op.opts.Mode == ModeExploded {
		entries := make([]string, 0, len(op.unpack)+len(op.standard))
		for _, p := range append(append([]Placement(nil), op.unpack...), op.standard...) {
			entries = append(entries, op.libraryDir+"/"+p.Library.Name)
			if op.version == "" && strings.HasPrefix(p.Library.Name, versionPrefix) {
				op.version = versionToken(p.Library.Name)
			}
		}
		op.classPath = strings.Join(entries, " ")
	}
	return nil
}

// versionToken takes the text between the last hyphen and the extension.
func versionToken(name string) string {
	base := strings.TrimSuffix(name, path.Ext(name))
	i := strings.LastIndex(base, "-")
	if i < 0 {
		return ""
	}
	return base[i+1:]
}

// prepareDestination frees the destination path and returns the archive to read from.
func (op *operation) prepareDestination() (string, error) {
	working := op.source
	if op.inPlace {
		op.backup = op.source + BackupSuffix
		if err := os.Remove(op.backup); err != nil && !os.IsNotExist(err) {
			return "", errors.Errorf("removing stale backup %q: %w", op.backup, err)
		}
		if err := os.Rename(op.source, op.backup); err != nil {
			op.backup = ""
			return "", errors.Errorf("unable to rename %q to backup: %w", op.source, err)
		}
		working = op.backup
	}
	if err := os.Remove(op.destination); err != nil && !os.IsNotExist(err) {
		return "", errors.Errorf("removing existing destination %q: %w", op.destination, err)
	}
	return working, nil
}

// ✍️ write builds the destination archive from working and returns the start class.
func (op *operation) write(ctx context.Context, working string) (startClass string, err error) {
	r, err := jar.Open(working)
	if err != nil {
		return "", err
	}
	defer r.Close()

	m, startClass, err := op.buildManifest(r)
	if err != nil {
		return "", err
	}

	var script []byte
	if op.opts.LaunchScript != nil {
		script = op.opts.LaunchScript.Bytes()
	}

	w, err := jar.Create(op.destination, script)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := w.WriteManifest(m); err != nil {
		return "", err
	}

	if op.opts.Mode == ModeExploded && len(op.unpack)+len(op.standard) > 0 {
		if _, err := os.Lstat(op.siblingLibraryDir()); os.IsNotExist(err) {
			op.createdLibraryDir = true
		}
	}

	if err := op.placeLibraries(ctx, w, op.unpack); err != nil {
		return "", err
	}

	var transformer jar.EntryTransformer = jar.Identity
	if loc, ok := op.layout.RepackagedClassesLocation(); ok {
		transformer = relocate(loc)
	}
	if err := w.WriteEntries(r, transformer); err != nil {
		return "", err
	}

	if err := op.placeLibraries(ctx, w, op.standard); err != nil {
		return "", err
	}

	if err := op.writeLoaderClasses(w); err != nil {
		return "", err
	}
	return startClass, nil
}

// relocate moves application entries below loc. Metadata and anything already
// below BOOT-INF stay where they are and INDEX.LIST is dropped.
func relocate(loc string) jar.EntryTransformer {
	return jar.EntryTransformerFunc(func(name string) (string, bool) {
		if name == "META-INF/INDEX.LIST" {
			return "", false
		}
		if (strings.HasPrefix(name, "META-INF/") && name != "META-INF/aop.xml") || strings.HasPrefix(name, "BOOT-INF/") {
			return name, true
		}
		return loc + name, true
	})
}

func (op *operation) buildManifest(r *jar.Reader) (*manifest.Manifest, string, error) {
	src, err := r.Manifest()
	if err != nil {
		return nil, "", err
	}
	m := manifest.New()
	if src != nil {
		m = src.Clone()
	}

	startClass := op.opts.MainClass
	if startClass == "" {
		startClass = m.Main.Get(manifest.MainClass)
	}
	if startClass == "" {
		if startClass, err = op.findMainClass(r); err != nil {
			return nil, "", err
		}
	}

	if launcher := op.layout.LauncherClass(); launcher != "" {
		m.Main.Set(manifest.MainClass, launcher)
		if startClass == "" {
			return nil, "", errors.Errorf("%w in %q", ErrMainClassNotFound, op.source)
		}
		m.Main.Set(manifest.StartClass, startClass)
	} else if startClass != "" {
		m.Main.Set(manifest.MainClass, startClass)
	}

	if op.classPath != "" {
		m.Main.Set(manifest.ClassPath, op.classPath)
	}

	version := op.opts.Version
	if version == "" {
		version = op.version
	}
	if version == "" {
		version = UnknownVersion
	}
	m.Main.Set(manifest.BootVersion, version)

	classes := op.layout.ClassesLocation()
	if loc, ok := op.layout.RepackagedClassesLocation(); ok {
		classes = loc
	}
	m.Main.Set(manifest.BootClasses, classes)

	if lib := op.layout.LibraryDestination("", library.ScopeCompile); lib != "" {
		m.Main.Set(manifest.BootLib, lib)
	}
	return m, startClass, nil
}

// 🔎 findMainClass scans the source classes. A slow scan still completes; it only
// triggers the timeout warning.
func (op *operation) findMainClass(r *jar.Reader) (string, error) {
	start := now()
	mainClass, err := classfile.FindSingleMainClass(r.Files(), op.layout.ClassesLocation(), classfile.BootApplication)
	elapsed := now().Sub(start)
	if err != nil {
		return "", errors.Errorf("searching for main class: %w", err)
	}

	if elapsed > findWarningTimeout {
		op.logger.Warn().Dur("elapsed", elapsed).Str("main_class", mainClass).Msg("searching for the main class is taking a long time")
		if op.opts.TimeoutWarning != nil {
			op.opts.TimeoutWarning(elapsed, mainClass)
		}
	}
	return mainClass, nil
}

func (op *operation) placeLibraries(ctx context.Context, w *jar.Writer, placements []Placement) error {
	for _, p := range placements {
		if op.opts.Mode == ModeExploded {
			if err := fsutil.CopyFile(p.Library.File, p.Path); err != nil {
				return errors.Errorf("copying library %s: %w", p.Library.Name, err)
			}
			op.copied = append(op.copied, p.Path)
		} else {
			dir := strings.TrimSuffix(p.Path, p.Library.Name)
			if err := w.WriteNestedLibrary(dir, p.Library.Name, p.Library.File, p.Library.UnpackRequired); err != nil {
				return errors.Errorf("writing library %s: %w", p.Library.Name, err)
			}
		}
		zerolog.Ctx(ctx).Debug().Str("library", p.Library.Name).Str("path", p.Path).Bool("unpack", p.Library.UnpackRequired).Msg("placed library")
	}
	return nil
}

func (op *operation) writeLoaderClasses(w *jar.Writer) error {
	switch {
	case op.layout.Loader != nil:
		return op.layout.Loader.WriteLoaderClasses(w)
	case op.layout.Executable() && op.opts.LoaderArchive != "":
		return layout.LoaderArchive(op.opts.LoaderArchive).WriteLoaderClasses(w)
	case op.layout.Executable():
		op.missingLoader = true
		op.logger.Warn().Str("layout", op.layout.String()).Msg("no loader archive configured, launcher classes were not written")
	}
	return nil
}

func (op *operation) siblingLibraryDir() string {
	return filepath.Join(filepath.Dir(op.destination), op.libraryDir)
}

// 🚚 deliver moves the finished archive, and in exploded mode its library
// directory, into the output directory.
func (op *operation) deliver(result *Result) error {
	if op.opts.OutputDir == "" {
		return nil
	}
	outputDir, err := filepath.Abs(op.opts.OutputDir)
	if err != nil {
		return errors.Errorf("resolving output directory %q: %w", op.opts.OutputDir, err)
	}
	if same, err := fsutil.SamePath(outputDir, filepath.Dir(op.destination)); err != nil || same {
		return err
	}

	if err := fsutil.MoveFileIntoDirectory(op.destination, outputDir); err != nil {
		return errors.Errorf("moving archive into output directory: %w", err)
	}
	result.Destination = filepath.Join(outputDir, filepath.Base(op.destination))

	if result.LibraryDir == "" {
		return nil
	}
	target := filepath.Join(outputDir, op.libraryDir)
	if err := fsutil.DeleteDirectoryRecursive(target); err != nil {
		return errors.Errorf("clearing %q: %w", target, err)
	}
	if err := fsutil.MoveDirectory(result.LibraryDir, target); err != nil {
		return errors.Errorf("moving libraries into output directory: %w", err)
	}
	result.LibraryDir = target
	for i := range result.Libraries {
		result.Libraries[i].Path = filepath.Join(target, result.Libraries[i].Library.Name)
	}
	return nil
}

// 🧹 cleanup settles the backup. Nothing here can fail the run.
func (op *operation) cleanup(ctx context.Context, result *Result) {
	if op.backup == "" {
		return
	}
	result.Backup = op.backup

	switch {
	case !op.opts.BackupSource:
		if fsutil.BestEffort(ctx, "delete backup", func() error {
			if !fsutil.DeleteQuietly(op.backup) {
				return errors.Errorf("unable to delete %q", op.backup)
			}
			return nil
		}) {
			result.Backup = ""
		}
	case op.opts.OutputDir != "":
		if fsutil.BestEffort(ctx, "move backup", func() error {
			outputDir, err := filepath.Abs(op.opts.OutputDir)
			if err != nil {
				return err
			}
			if same, err := fsutil.SamePath(outputDir, filepath.Dir(op.backup)); err != nil || same {
				return err
			}
			return fsutil.MoveFileIntoDirectory(op.backup, outputDir)
		}) {
			outputDir, _ := filepath.Abs(op.opts.OutputDir)
			result.Backup = filepath.Join(outputDir, filepath.Base(op.backup))
		}
	}
}

// rollback removes a partial destination and any libraries copied next to it,
// then puts an in-place source back.
func (op *operation) rollback(ctx context.Context) {
	if len(op.copied) > 0 || op.createdLibraryDir {
		fsutil.BestEffort(ctx, "remove copied libraries", func() error {
			if op.createdLibraryDir {
				return fsutil.DeleteDirectoryRecursive(op.siblingLibraryDir())
			}
			for _, path := range op.copied {
				if !fsutil.DeleteQuietly(path) {
					return errors.Errorf("unable to delete %q", path)
				}
			}
			return nil
		})
	}
	fsutil.BestEffort(ctx, "remove partial destination", func() error {
		if _, err := os.Lstat(op.destination); os.IsNotExist(err) {
			return nil
		}
		if !fsutil.DeleteQuietly(op.destination) {
			return errors.Errorf("unable to delete %q", op.destination)
		}
		return nil
	})
	if op.backup != "" {
		fsutil.BestEffort(ctx, "restore source", func() error {
			return os.Rename(op.backup, op.source)
		})
	}
}
