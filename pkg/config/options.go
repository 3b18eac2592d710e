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
	"path/filepath"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/bootpack/pkg/launch"
	"github.com/walteh/bootpack/pkg/layout"
	"github.com/walteh/bootpack/pkg/library"
	"github.com/walteh/bootpack/pkg/repackage"
)

// 🔄 Options converts a validated artifact into engine options. Relative paths
// are resolved against baseDir. Explicit libraries come first, then every glob
// in order.
func (a *Artifact) Options(ctx context.Context, baseDir string) (repackage.Options, error) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}

	opts := repackage.Options{
		Source:        resolve(a.Source),
		Destination:   resolve(a.Destination),
		MainClass:     a.MainClass,
		BackupSource:  a.BackupSource == nil || *a.BackupSource,
		OutputDir:     resolve(a.OutputDir),
		Version:       a.Version,
		LibraryDir:    a.LibraryDir,
		LoaderArchive: resolve(a.LoaderArchive),
	}
	if a.AllInOne != nil && !*a.AllInOne {
		opts.Mode = repackage.ModeExploded
	}

	if a.Layout != "" {
		l, err := layout.Parse(a.Layout)
		if err != nil {
			return repackage.Options{}, errors.Errorf("%w: %s", ErrInvalidConfig, err.Error())
		}
		opts.Layout = l
	}

	if a.Executable || a.LaunchScript != "" {
		script, err := launch.New(ctx, resolve(a.LaunchScript), a.LaunchProperties)
		if err != nil {
			return repackage.Options{}, err
		}
		opts.LaunchScript = script
	}

	for _, lc := range a.Libraries {
		scope, err := library.ParseScope(lc.Scope)
		if err != nil {
			return repackage.Options{}, errors.Errorf("%w: %s", ErrInvalidConfig, err.Error())
		}
		lib := library.New(resolve(lc.Path), scope, lc.Unpack)
		if lc.Name != "" {
			lib.Name = lc.Name
		}
		opts.Libraries = append(opts.Libraries, lib)
	}

	for _, g := range a.LibraryGlobs {
		scope, err := library.ParseScope(g.Scope)
		if err != nil {
			return repackage.Options{}, errors.Errorf("%w: %s", ErrInvalidConfig, err.Error())
		}
		libs, err := library.Glob(baseDir, g.Patterns, scope)
		if err != nil {
			return repackage.Options{}, errors.Errorf("%w: %s", ErrInvalidConfig, err.Error())
		}
		for i := range libs {
			libs[i].UnpackRequired = g.Unpack
		}
		zerolog.Ctx(ctx).Debug().Strs("patterns", g.Patterns).Int("matches", len(libs)).Msg("expanded library glob")
		opts.Libraries = append(opts.Libraries, libs...)
	}

	return opts, nil
}
