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

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/bootpack/pkg/layout"
	"github.com/walteh/bootpack/pkg/library"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.Base("invalid config")

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// 📚 LibraryConfig names a single library file
type LibraryConfig struct {
	Path string `json:"path" yaml:"path" hcl:"path"`
	// Name overrides the file's base name at the destination.
	Name   string `json:"name,omitempty" yaml:"name,omitempty" hcl:"name,optional"`
	Scope  string `json:"scope,omitempty" yaml:"scope,omitempty" hcl:"scope,optional"`
	Unpack bool   `json:"unpack,omitempty" yaml:"unpack,omitempty" hcl:"unpack,optional"`
}

// 🔍 GlobConfig expands to every regular file matching its patterns
type GlobConfig struct {
	Patterns []string `json:"patterns" yaml:"patterns" hcl:"patterns"`
	Scope    string   `json:"scope,omitempty" yaml:"scope,omitempty" hcl:"scope,optional"`
	Unpack   bool     `json:"unpack,omitempty" yaml:"unpack,omitempty" hcl:"unpack,optional"`
}

// 📦 Artifact is one archive to repackage
type Artifact struct {
	Name         string `json:"name,omitempty" yaml:"name,omitempty" hcl:"name,label"`
	Source       string `json:"source" yaml:"source" hcl:"source"`
	Destination  string `json:"destination,omitempty" yaml:"destination,omitempty" hcl:"destination,optional"`
	MainClass    string `json:"main_class,omitempty" yaml:"main_class,omitempty" hcl:"main_class,optional"`
	BackupSource *bool  `json:"backup_source,omitempty" yaml:"backup_source,omitempty" hcl:"backup_source,optional"`
	Layout       string `json:"layout,omitempty" yaml:"layout,omitempty" hcl:"layout,optional"`
	// AllInOne nests libraries inside the archive. When false they are copied next to it.
	AllInOne   *bool  `json:"all_in_one,omitempty" yaml:"all_in_one,omitempty" hcl:"all_in_one,optional"`
	OutputDir  string `json:"output_dir,omitempty" yaml:"output_dir,omitempty" hcl:"output_dir,optional"`
	LibraryDir string `json:"library_dir,omitempty" yaml:"library_dir,omitempty" hcl:"library_dir,optional"`
	Version    string `json:"version,omitempty" yaml:"version,omitempty" hcl:"version,optional"`

	Executable       bool              `json:"executable,omitempty" yaml:"executable,omitempty" hcl:"executable,optional"`
	LaunchScript     string            `json:"launch_script,omitempty" yaml:"launch_script,omitempty" hcl:"launch_script,optional"`
	LaunchProperties map[string]string `json:"launch_properties,omitempty" yaml:"launch_properties,omitempty" hcl:"launch_properties,optional"`
	LoaderArchive    string            `json:"loader_archive,omitempty" yaml:"loader_archive,omitempty" hcl:"loader_archive,optional"`

	Libraries    []LibraryConfig `json:"libraries,omitempty" yaml:"libraries,omitempty" hcl:"library,block"`
	LibraryGlobs []GlobConfig    `json:"library_globs,omitempty" yaml:"library_globs,omitempty" hcl:"library_glob,block"`
}

// 📚 Config represents the complete configuration
type Config struct {
	// Async repackages independent artifacts concurrently.
	Async     bool       `json:"async,omitempty" yaml:"async,omitempty" hcl:"async,optional"`
	Artifacts []Artifact `json:"artifacts" yaml:"artifacts" hcl:"artifact,block"`

	location string
}

// Location is the file the config was loaded from, if any.
func (cfg *Config) Location() string {
	return cfg.location
}

// BaseDir is the directory relative paths are resolved against.
func (cfg *Config) BaseDir() string {
	if cfg.location == "" {
		return "."
	}
	return filepath.Dir(cfg.location)
}

// 🔍 Validate checks the configuration and fills in defaults
func (cfg *Config) Validate() error {
	if len(cfg.Artifacts) == 0 {
		return errors.Errorf("%w: at least one artifact is required", ErrInvalidConfig)
	}

	names := map[string]struct{}{}
	for i := range cfg.Artifacts {
		a := &cfg.Artifacts[i]
		if err := a.Validate(); err != nil {
			return errors.Errorf("artifact %d: %w", i, err)
		}
		if _, dup := names[a.Name]; dup {
			return errors.Errorf("%w: artifact name %q is used twice", ErrInvalidConfig, a.Name)
		}
		names[a.Name] = struct{}{}
	}
	return nil
}

// Validate checks a single artifact and fills in its defaults.
func (a *Artifact) Validate() error {
	if strings.TrimSpace(a.Source) == "" {
		return errors.Errorf("%w: source is required", ErrInvalidConfig)
	}
	a.Source = filepath.Clean(a.Source)
	if a.Destination != "" {
		a.Destination = filepath.Clean(a.Destination)
	}
	if a.Name == "" {
		a.Name = filepath.Base(a.Source)
	}

	if a.Layout != "" {
		if _, err := layout.Parse(a.Layout); err != nil {
			return errors.Errorf("%w: %s", ErrInvalidConfig, err.Error())
		}
	}

	for _, l := range a.Libraries {
		if l.Path == "" {
			return errors.Errorf("%w: library path is required", ErrInvalidConfig)
		}
		if _, err := library.ParseScope(l.Scope); err != nil {
			return errors.Errorf("%w: library %q: %s", ErrInvalidConfig, l.Path, err.Error())
		}
	}
	for _, g := range a.LibraryGlobs {
		if len(g.Patterns) == 0 {
			return errors.Errorf("%w: library glob needs at least one pattern", ErrInvalidConfig)
		}
		if _, err := library.ParseScope(g.Scope); err != nil {
			return errors.Errorf("%w: library glob: %s", ErrInvalidConfig, err.Error())
		}
	}

	if a.BackupSource == nil {
		a.BackupSource = ptr(true)
	}
	if a.AllInOne == nil {
		a.AllInOne = ptr(true)
	}
	return nil
}

// 📝 String returns a string representation of the artifact
func (a *Artifact) String() string {
	dest := a.Destination
	if dest == "" {
		dest = a.Source
	}
	mode := "embedded"
	if a.AllInOne != nil && !*a.AllInOne {
		mode = "exploded"
	}
	return fmt.Sprintf("%s: %s -> %s (%s)", a.Name, a.Source, dest, mode)
}

func ptr[T any](v T) *T {
	return &v
}
