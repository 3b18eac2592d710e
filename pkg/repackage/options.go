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
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/bootpack/pkg/launch"
	"github.com/walteh/bootpack/pkg/layout"
	"github.com/walteh/bootpack/pkg/library"
)

var (
	ErrInvalidSource      = errors.Base("invalid source")
	ErrInvalidDestination = errors.Base("invalid destination")
	ErrMainClassNotFound  = errors.Base("unable to find main class")
	ErrDuplicateLibrary   = errors.Base("duplicate library")
)

// Mode selects where libraries end up.
type Mode int

const (
	// ModeEmbedded nests every library inside the archive.
	ModeEmbedded Mode = iota
	// ModeExploded copies libraries into a directory next to the archive and
	// references them through Class-Path.
	ModeExploded
)

func (m Mode) String() string {
	if m == ModeExploded {
		return "exploded"
	}
	return "embedded"
}

const (
	// DefaultLibraryDir is the sibling directory used in exploded mode.
	DefaultLibraryDir = "lib"
	// UnknownVersion is stamped when neither an explicit nor a detected version exists.
	UnknownVersion = "unknown"
	// BackupSuffix is appended to the source name when repackaging in place.
	BackupSuffix = ".original"

	findWarningTimeout = 10 * time.Second
	versionPrefix      = "spring-boot-"
)

// Options configures one repackage run. The zero value of every optional field
// picks the default behavior.
type Options struct {
	// Source is the archive to repackage.
	Source string
	// Destination defaults to Source, in which case the source is kept as a backup
	// while it is rewritten.
	Destination string
	Libraries   []library.Library
	// Layout is inferred from the source file name when nil.
	Layout *layout.Layout
	Mode   Mode
	// LaunchScript is written ahead of the archive when set.
	LaunchScript launch.Script
	MainClass    string
	BackupSource bool
	OutputDir    string
	// Version is stamped as Spring-Boot-Version. When empty, the version is taken
	// from the first spring-boot-* library in exploded mode.
	Version string
	// TimeoutWarning is called when the main class scan is slow. The scan is never cut short.
	TimeoutWarning func(elapsed time.Duration, mainClass string)
	LibraryDir     string
	// LoaderArchive holds the default launcher classes for executable layouts.
	LoaderArchive string
}

// Placement records where one library ended up.
type Placement struct {
	Library library.Library
	// Path is the entry name in embedded mode and the file path in exploded mode.
	Path string
}

// Result describes a finished run.
type Result struct {
	// AlreadyRepackaged is set when the source carried the version marker and
	// nothing was written.
	AlreadyRepackaged bool
	Destination       string
	// LibraryDir is the directory holding libraries in exploded mode.
	LibraryDir string
	// Backup is the path of the retained original, if any.
	Backup     string
	StartClass string
	Libraries  []Placement
	ClassPath  string
	Layout     *layout.Layout
	// MissingLoader is set when an executable layout was written without
	// launcher classes, so the archive does not start until they are added.
	MissingLoader bool
}
