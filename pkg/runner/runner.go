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

// Package runner executes independent repackage jobs one after another or
// concurrently, and reports each result on the console.
package runner

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/walteh/bootpack/pkg/log"
	"github.com/walteh/bootpack/pkg/repackage"
)

// ErrConflictingJobs is returned when two jobs touch the same archive.
var ErrConflictingJobs = errors.Base("jobs share an archive")

// 📦 Job is one archive to repackage
type Job struct {
	Name    string
	Options repackage.Options
}

func (j Job) name() string {
	if j.Name != "" {
		return j.Name
	}
	return filepath.Base(j.Options.Source)
}

// Outcome is the result of one job. Skipped is set when the job never started
// because an earlier one failed.
type Outcome struct {
	Job     Job
	Result  *repackage.Result
	Err     error
	Skipped bool
}

// 🏃 Runner executes jobs
type Runner struct {
	console *log.Logger
	async   bool
	limit   int

	mu sync.Mutex
}

// 🏗️ New creates a new runner. console may be nil, in which case nothing is
// printed.
func New(console *log.Logger, async bool) *Runner {
	return &Runner{
		console: console,
		async:   async,
	}
}

// WithLimit caps the number of jobs running at once in async mode.
func (r *Runner) WithLimit(n int) *Runner {
	r.limit = n
	return r
}

// 🏃 Run executes every job. All outcomes are returned along with the first error.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Outcome, error) {
	if err := checkConflicts(jobs); err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, len(jobs))
	for i := range jobs {
		outcomes[i] = Outcome{Job: jobs[i], Skipped: true}
	}

	if r.async {
		return outcomes, r.runAsync(ctx, jobs, outcomes)
	}
	return outcomes, r.runSync(ctx, jobs, outcomes)
}

// 🔄 runSync runs jobs in order and stops at the first failure
func (r *Runner) runSync(ctx context.Context, jobs []Job, outcomes []Outcome) error {
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return errors.Errorf("operation cancelled: %w", err)
		}
		outcomes[i] = r.execute(ctx, job)
		if outcomes[i].Err != nil {
			return outcomes[i].Err
		}
	}
	return nil
}

// ⚡ runAsync runs jobs concurrently. Jobs that have not started when one fails
// are skipped.
func (r *Runner) runAsync(ctx context.Context, jobs []Job, outcomes []Outcome) error {
	g, gctx := errgroup.WithContext(ctx)
	if r.limit > 0 {
		g.SetLimit(r.limit)
	}

	for i, job := range jobs {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			out := r.execute(gctx, job)
			outcomes[i] = out
			return out.Err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Errorf("operation cancelled: %w", err)
	}
	return nil
}

func (r *Runner) execute(ctx context.Context, job Job) Outcome {
	name := job.name()
	logger := zerolog.Ctx(ctx).With().Str("artifact", name).Logger()
	ctx = logger.WithContext(ctx)

	opts := job.Options
	if opts.TimeoutWarning == nil && r.console != nil {
		opts.TimeoutWarning = func(elapsed time.Duration, mainClass string) {
			r.console.Warningf("%s: searching for the main class took %s (found %q)", name, elapsed.Round(time.Millisecond), mainClass)
		}
	}

	logger.Debug().Msg("starting job")
	result, err := repackage.Repackage(ctx, opts)
	if err != nil {
		err = errors.Errorf("repackaging %s: %w", name, err)
	}
	r.report(ctx, job, result, err)

	return Outcome{Job: job, Result: result, Err: err}
}

// report prints one job at a time so concurrent jobs do not interleave.
func (r *Runner) report(ctx context.Context, job Job, result *repackage.Result, err error) {
	if r.console == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	name := job.name()
	if err != nil {
		r.console.Errorf("%v", err)
		return
	}
	if result.AlreadyRepackaged {
		r.console.Infof("%s is already repackaged", name)
		return
	}

	r.console.StartArchiveOperation(ctx, log.ArchiveOperation{
		Name:        name,
		Source:      job.Options.Source,
		Destination: result.Destination,
		Layout:      result.Layout.String(),
		Mode:        job.Options.Mode.String(),
	})

	placed := map[string]struct{}{}
	for _, p := range result.Libraries {
		placed[p.Library.File] = struct{}{}
		r.console.LogLibraryOperation(ctx, log.LibraryOperation{
			Name:     p.Library.Name,
			Path:     p.Path,
			Scope:    p.Library.Scope.String(),
			Unpack:   p.Library.UnpackRequired,
			Exploded: job.Options.Mode == repackage.ModeExploded,
		})
	}
	for _, lib := range job.Options.Libraries {
		if _, ok := placed[lib.File]; ok {
			continue
		}
		r.console.LogLibraryOperation(ctx, log.LibraryOperation{
			Name:    lib.Name,
			Path:    lib.File,
			Scope:   lib.Scope.String(),
			Unpack:  lib.UnpackRequired,
			Skipped: true,
		})
	}

	r.console.EndArchiveOperation(ctx)
	r.console.Successf("%s repackaged (start class %s)", name, result.StartClass)
	if result.MissingLoader {
		r.console.Warningf("%s has no launcher classes and will not start until a loader archive is set", name)
	}
}

// checkConflicts rejects jobs that write to the same place: a shared source or
// destination archive, or in exploded mode a shared library directory.
func checkConflicts(jobs []Job) error {
	owner := map[string]string{}
	for _, job := range jobs {
		claimed := map[string]struct{}{}
		for _, p := range claims(job.Options) {
			abs, err := filepath.Abs(p)
			if err != nil {
				return errors.Errorf("resolving %q: %w", p, err)
			}
			if _, mine := claimed[abs]; mine {
				continue
			}
			claimed[abs] = struct{}{}
			if other, taken := owner[abs]; taken {
				return errors.Errorf("%w: %s and %s both use %s", ErrConflictingJobs, other, job.name(), abs)
			}
			owner[abs] = job.name()
		}
	}
	return nil
}

// claims lists every path a job writes or replaces.
func claims(opts repackage.Options) []string {
	destination := opts.Source
	if opts.Destination != "" {
		destination = opts.Destination
	}
	paths := []string{opts.Source, destination}

	libraryDir := opts.LibraryDir
	if libraryDir == "" {
		libraryDir = repackage.DefaultLibraryDir
	}
	exploded := opts.Mode == repackage.ModeExploded && len(opts.Libraries) > 0
	if exploded {
		paths = append(paths, filepath.Join(filepath.Dir(destination), libraryDir))
	}
	if opts.OutputDir != "" {
		paths = append(paths, filepath.Join(opts.OutputDir, filepath.Base(destination)))
		if exploded {
			paths = append(paths, filepath.Join(opts.OutputDir, libraryDir))
		}
	}
	return paths
}
