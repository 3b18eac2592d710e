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
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/bootpack/pkg/config"
	"github.com/walteh/bootpack/pkg/runner"
)

// repackageOpts are the flags of the repackage command. Each one overrides the
// matching config value when set.
type repackageOpts struct {
	destination      string
	mainClass        string
	layout           string
	exploded         bool
	outputDir        string
	noBackup         bool
	bootVersion      string
	executable       bool
	launchScript     string
	launchProperties map[string]string
	loaderArchive    string
	libraryDir       string
	libraries        []string
	libraryGlobs     []string
	async            bool
	limit            int
}

func newRepackageCmd(root *rootOpts) *cobra.Command {
	opts := &repackageOpts{}

	cmd := &cobra.Command{
		Use:   "repackage [source]",
		Short: "Repackage one archive, or every artifact in the config file",
		Long: `Repackage rewrites archives so they can be started with java -jar.

With a source argument only that archive is repackaged and the config file is
not read. Without one, every artifact in the config file is repackaged and the
flags below override the matching config values.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadArtifacts(ctx, cmd, root, opts, args)
			if err != nil {
				return err
			}

			jobs := make([]runner.Job, 0, len(cfg.Artifacts))
			for i := range cfg.Artifacts {
				a := &cfg.Artifacts[i]
				o, err := a.Options(ctx, cfg.BaseDir())
				if err != nil {
					return errors.Errorf("artifact %s: %w", a.Name, err)
				}
				if o.Version == "" {
					o.Version = toolVersion()
				}
				jobs = append(jobs, runner.Job{Name: a.Name, Options: o})
			}

			console := root.console(cmd)
			console.Header("repackaging archives")

			outcomes, err := runner.New(console, cfg.Async).WithLimit(opts.limit).Run(ctx, jobs)
			if len(outcomes) > 0 {
				console.LogNewline()
				if rerr := renderSummary(cmd.OutOrStdout(), outcomes); rerr != nil {
					zerolog.Ctx(ctx).Debug().Err(rerr).Msg("rendering summary")
				}
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.destination, "destination", "", "destination archive (defaults to the source)")
	f.StringVar(&opts.mainClass, "main-class", "", "start class, skipping the manifest and the class scan")
	f.StringVar(&opts.layout, "layout", "", "layout: jar, war, zip, dir, module or none (inferred when empty)")
	f.BoolVar(&opts.exploded, "exploded", false, "copy libraries next to the archive instead of nesting them")
	f.StringVar(&opts.outputDir, "output-dir", "", "move the finished archive and its libraries here")
	f.BoolVar(&opts.noBackup, "no-backup", false, "delete the .original backup of an in place source")
	f.StringVar(&opts.bootVersion, "boot-version", "", "value stamped as Spring-Boot-Version")
	f.BoolVar(&opts.executable, "executable", false, "prepend the default launch script")
	f.StringVar(&opts.launchScript, "launch-script", "", "prepend this launch script")
	f.StringToStringVar(&opts.launchProperties, "launch-property", nil, "launch script placeholder values (key=value)")
	f.StringVar(&opts.loaderArchive, "loader-archive", "", "archive holding the launcher classes")
	f.StringVar(&opts.libraryDir, "library-dir", "", "directory name used for exploded libraries")
	f.StringArrayVarP(&opts.libraries, "lib", "l", nil, "library to include (repeatable)")
	f.StringArrayVar(&opts.libraryGlobs, "lib-glob", nil, "glob of libraries to include (repeatable)")
	f.BoolVar(&opts.async, "async", false, "repackage artifacts concurrently")
	f.IntVar(&opts.limit, "jobs", 0, "maximum concurrent artifacts with --async (0 is unlimited)")

	return cmd
}

// loadArtifacts builds the config from the source argument or the config file
// and applies every flag that was set.
func loadArtifacts(ctx context.Context, cmd *cobra.Command, root *rootOpts, opts *repackageOpts, args []string) (*config.Config, error) {
	var cfg *config.Config
	if len(args) == 1 {
		cfg = &config.Config{Artifacts: []config.Artifact{{Source: args[0]}}}
	} else {
		if _, err := os.Stat(root.configFile); err != nil {
			return nil, errors.Errorf("%w: no source given and config file %q is not readable: %s", config.ErrInvalidConfig, root.configFile, err.Error())
		}
		var err error
		if cfg, err = config.Load(ctx, root.configFile); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("async") {
		cfg.Async = opts.async
	}
	for i := range cfg.Artifacts {
		opts.apply(flags.Changed, &cfg.Artifacts[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (opts *repackageOpts) apply(changed func(string) bool, a *config.Artifact) {
	if changed("destination") {
		a.Destination = opts.destination
	}
	if changed("main-class") {
		a.MainClass = opts.mainClass
	}
	if changed("layout") {
		a.Layout = opts.layout
	}
	if changed("exploded") {
		a.AllInOne = boolPtr(!opts.exploded)
	}
	if changed("output-dir") {
		a.OutputDir = opts.outputDir
	}
	if changed("no-backup") {
		a.BackupSource = boolPtr(!opts.noBackup)
	}
	if changed("boot-version") {
		a.Version = opts.bootVersion
	}
	if changed("executable") {
		a.Executable = opts.executable
	}
	if changed("launch-script") {
		a.LaunchScript = opts.launchScript
	}
	if changed("launch-property") {
		if a.LaunchProperties == nil {
			a.LaunchProperties = map[string]string{}
		}
		for k, v := range opts.launchProperties {
			a.LaunchProperties[k] = v
		}
	}
	if changed("loader-archive") {
		a.LoaderArchive = opts.loaderArchive
	}
	if changed("library-dir") {
		a.LibraryDir = opts.libraryDir
	}
	for _, l := range opts.libraries {
		a.Libraries = append(a.Libraries, config.LibraryConfig{Path: l})
	}
	if len(opts.libraryGlobs) > 0 {
		a.LibraryGlobs = append(a.LibraryGlobs, config.GlobConfig{Patterns: opts.libraryGlobs})
	}
}

func boolPtr(v bool) *bool {
	return &v
}
