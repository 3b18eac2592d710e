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

package main

import (
	"io/fs"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/bootpack/pkg/classfile"
	"github.com/walteh/bootpack/pkg/config"
	"github.com/walteh/bootpack/pkg/fsutil"
	"github.com/walteh/bootpack/pkg/layout"
	"github.com/walteh/bootpack/pkg/library"
	"github.com/walteh/bootpack/pkg/repackage"
	"github.com/walteh/bootpack/pkg/runner"
)

// Exit codes
const (
	exitSuccess    = 0
	exitGeneral    = 1
	exitConfig     = 2
	exitCollision  = 3
	exitFileSystem = 4
)

var (
	configErrors = []error{
		config.ErrInvalidConfig,
		repackage.ErrInvalidSource,
		repackage.ErrInvalidDestination,
		repackage.ErrMainClassNotFound,
		classfile.ErrMultipleMainClasses,
		layout.ErrUnknownLayout,
		library.ErrUnknownScope,
		runner.ErrConflictingJobs,
	}
	fileSystemErrors = []error{
		fsutil.ErrFileExists,
		fsutil.ErrIntegrity,
		fsutil.ErrSubdirectory,
		fsutil.ErrSameFile,
		fs.ErrNotExist,
		fs.ErrPermission,
		fs.ErrExist,
	}
)

// exitCode maps an error onto the process exit status
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	if errors.Is(err, repackage.ErrDuplicateLibrary) {
		return exitCollision
	}
	for _, target := range configErrors {
		if errors.Is(err, target) {
			return exitConfig
		}
	}
	for _, target := range fileSystemErrors {
		if errors.Is(err, target) {
			return exitFileSystem
		}
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return exitFileSystem
	}
	return exitGeneral
}

// describeExitCode returns a human-readable description of the exit code
func describeExitCode(code int) string {
	switch code {
	case exitSuccess:
		return "success"
	case exitGeneral:
		return "general error"
	case exitConfig:
		return "configuration error"
	case exitCollision:
		return "library name collision"
	case exitFileSystem:
		return "file system error"
	default:
		return "unknown error"
	}
}
