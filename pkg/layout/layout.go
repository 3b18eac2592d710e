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

// Package layout describes where a repackaged archive keeps its classes and
// libraries and which launcher starts it.
package layout

import (
	"os"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/bootpack/pkg/jar"
	"github.com/walteh/bootpack/pkg/library"
)

var ErrUnknownLayout = errors.Base("unknown layout")

const (
	JarLauncher        = "org.springframework.boot.loader.JarLauncher"
	WarLauncher        = "org.springframework.boot.loader.WarLauncher"
	PropertiesLauncher = "org.springframework.boot.loader.PropertiesLauncher"
)

type Kind int

const (
	KindJar Kind = iota
	KindWar
	// KindExpanded is the zip/dir layout.
	KindExpanded
	KindNone
	KindModule
)

func (k Kind) String() string {
	switch k {
	case KindJar:
		return "jar"
	case KindWar:
		return "war"
	case KindExpanded:
		return "zip"
	case KindNone:
		return "none"
	case KindModule:
		return "module"
	}
	return "unknown"
}

// LoaderWriter writes the launcher classes into the archive being built.
type LoaderWriter interface {
	WriteLoaderClasses(w *jar.Writer) error
}

// LoaderArchive writes every non META-INF entry of the archive at its path.
type LoaderArchive string

func (p LoaderArchive) WriteLoaderClasses(w *jar.Writer) error {
	return w.WriteLoaderClassesFrom(string(p))
}

// Layout is one of the supported archive layouts. Loader, when set, replaces
// the default loader classes.
type Layout struct {
	Kind   Kind
	Loader LoaderWriter
}

func Jar() *Layout      { return &Layout{Kind: KindJar} }
func War() *Layout      { return &Layout{Kind: KindWar} }
func Expanded() *Layout { return &Layout{Kind: KindExpanded} }
func None() *Layout     { return &Layout{Kind: KindNone} }
func Module() *Layout   { return &Layout{Kind: KindModule} }

// 🔍 ForFile infers the layout from the archive's file name. Directories use the
// expanded layout.
func ForFile(path string) (*Layout, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return Expanded(), nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jar":
		return Jar(), nil
	case ".war":
		return War(), nil
	case ".zip":
		return Expanded(), nil
	}
	return nil, errors.Errorf("%w: unable to deduce layout for %q", ErrUnknownLayout, path)
}

// Parse resolves a configured layout name: jar, war, zip, dir, module or none.
func Parse(name string) (*Layout, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "jar":
		return Jar(), nil
	case "war":
		return War(), nil
	case "zip", "dir":
		return Expanded(), nil
	case "module":
		return Module(), nil
	case "none":
		return None(), nil
	}
	return nil, errors.Errorf("%w: %q", ErrUnknownLayout, name)
}

func (l *Layout) String() string {
	return l.Kind.String()
}

// Executable reports whether the archive gets a launcher and loader classes.
func (l *Layout) Executable() bool {
	switch l.Kind {
	case KindJar, KindWar, KindExpanded:
		return true
	}
	return false
}

// LauncherClass is the Main-Class for the archive, or "" when the layout has none.
func (l *Layout) LauncherClass() string {
	switch l.Kind {
	case KindJar:
		return JarLauncher
	case KindWar:
		return WarLauncher
	case KindExpanded:
		return PropertiesLauncher
	}
	return ""
}

// ClassesLocation is where the application's own classes live in the source.
func (l *Layout) ClassesLocation() string {
	if l.Kind == KindWar {
		return "WEB-INF/classes/"
	}
	return ""
}

// RepackagedClassesLocation is where application classes are moved to, if the
// layout relocates them at all.
func (l *Layout) RepackagedClassesLocation() (string, bool) {
	switch l.Kind {
	case KindJar, KindExpanded, KindNone:
		return "BOOT-INF/classes/", true
	}
	return "", false
}

// 📚 LibraryDestination is the directory a library of the given scope is stored
// in. An empty result means the library is left out.
func (l *Layout) LibraryDestination(name string, scope library.Scope) string {
	switch l.Kind {
	case KindJar, KindExpanded, KindNone:
		return "BOOT-INF/lib/"
	case KindWar:
		switch scope {
		case library.ScopeCompile, library.ScopeRuntime, library.ScopeCustom:
			return "WEB-INF/lib/"
		case library.ScopeProvided:
			return "WEB-INF/lib-provided/"
		}
	case KindModule:
		switch scope {
		case library.ScopeCompile, library.ScopeRuntime, library.ScopeCustom:
			return "lib/"
		}
	}
	return ""
}
