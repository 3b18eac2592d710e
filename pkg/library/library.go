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

package library

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/bootpack/pkg/jar"
)

// Scope is the dependency scope a library was resolved with.
type Scope int

const (
	ScopeCompile Scope = iota
	ScopeRuntime
	ScopeProvided
	ScopeCustom
)

var ErrUnknownScope = errors.Base("unknown library scope")

func (s Scope) String() string {
	switch s {
	case ScopeCompile:
		return "compile"
	case ScopeRuntime:
		return "runtime"
	case ScopeProvided:
		return "provided"
	case ScopeCustom:
		return "custom"
	}
	return "unknown"
}

// ParseScope maps a build tool scope name onto a Scope. "system" libraries are
// treated like compile ones and an empty name means compile.
func ParseScope(name string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "compile", "system":
		return ScopeCompile, nil
	case "runtime":
		return ScopeRuntime, nil
	case "provided":
		return ScopeProvided, nil
	case "custom":
		return ScopeCustom, nil
	}
	return 0, errors.Errorf("%w: %q", ErrUnknownScope, name)
}

// Library is a dependency to embed in, or place next to, the repackaged archive.
type Library struct {
	// File is the library on disk.
	File string
	// Name is the entry or file name used at the destination.
	Name           string
	Scope          Scope
	UnpackRequired bool
}

// 📚 New describes the file at path, named after its base name.
func New(path string, scope Scope, unpack bool) Library {
	return Library{File: path, Name: filepath.Base(path), Scope: scope, UnpackRequired: unpack}
}

// Set holds the libraries that survived classification, split by unpack requirement.
type Set struct {
	Unpack   []Library
	Standard []Library
}

// All returns the unpack group followed by the standard group.
func (s Set) All() []Library {
	out := make([]Library, 0, len(s.Unpack)+len(s.Standard))
	out = append(out, s.Unpack...)
	return append(out, s.Standard...)
}

func (s Set) Len() int {
	return len(s.Unpack) + len(s.Standard)
}

// 🗂️ Partition keeps only libraries whose file is a zip archive and splits them
// into the unpack and standard groups, each in input order. Anything else is
// dropped without error.
func Partition(ctx context.Context, libs []Library) Set {
	var set Set
	for _, lib := range libs {
		if !jar.IsZip(lib.File) {
			zerolog.Ctx(ctx).Debug().Str("library", lib.File).Msg("skipping library that is not a zip archive")
			continue
		}
		if lib.UnpackRequired {
			set.Unpack = append(set.Unpack, lib)
		} else {
			set.Standard = append(set.Standard, lib)
		}
	}
	return set
}

// 🔍 Glob expands each pattern below root and returns one library per regular
// file, in pattern order. Matches within a pattern are sorted and a file matched
// by an earlier pattern is not repeated.
func Glob(root string, patterns []string, scope Scope) ([]Library, error) {
	seen := map[string]struct{}{}
	var libs []Library

	for _, pattern := range patterns {
		if !doublestar.ValidatePathPattern(pattern) {
			return nil, errors.Errorf("invalid library pattern %q", pattern)
		}
		full := pattern
		if !filepath.IsAbs(pattern) {
			full = filepath.Join(root, pattern)
		}

		matches, err := doublestar.FilepathGlob(full)
		if err != nil {
			return nil, errors.Errorf("expanding library pattern %q: %w", pattern, err)
		}
		sort.Strings(matches)

		for _, m := range matches {
			if _, dup := seen[m]; dup {
				continue
			}
			info, err := os.Stat(m)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			seen[m] = struct{}{}
			libs = append(libs, New(m, scope, false))
		}
	}
	return libs, nil
}
