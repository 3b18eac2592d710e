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

	"github.com/walteh/bootpack/pkg/config"
	"github.com/walteh/bootpack/pkg/log"
)

// rootOpts holds the flags shared by every command
type rootOpts struct {
	configFile string
	debug      bool
}

func (o *rootOpts) level() zerolog.Level {
	if o.debug {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// console builds the user facing logger for a command
func (o *rootOpts) console(cmd *cobra.Command) *log.Logger {
	return log.New(cmd.OutOrStdout(), o.level())
}

func newRootCmd() *cobra.Command {
	opts := &rootOpts{}

	rootCmd := &cobra.Command{
		Use:   "bootpack",
		Short: "Repackage java archives into self-contained executable archives",
		Long: `bootpack rewrites a plain jar or war so it can be started with java -jar.
Libraries are either nested inside the archive or copied into a lib directory
next to it and referenced from the manifest Class-Path.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(setupLogging(cmd, opts))
		},
	}

	addRootFlags(rootCmd, opts)

	rootCmd.AddCommand(
		newRepackageCmd(opts),
		newInspectCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command, opts *rootOpts) {
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", config.DefaultFile, "config file path")
	cmd.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")
}

// setupLogging attaches a zerolog logger at the requested level to the command context
func setupLogging(cmd *cobra.Command, opts *rootOpts) context.Context {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(opts.level()).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger
	return logger.WithContext(cmd.Context())
}
