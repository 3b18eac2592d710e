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
	"fmt"
	"io"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/bootpack/pkg/classfile"
	"github.com/walteh/bootpack/pkg/jar"
	"github.com/walteh/bootpack/pkg/layout"
	"github.com/walteh/bootpack/pkg/manifest"
)

type inspectOpts struct {
	match       []string
	mainClasses bool
}

func newInspectCmd() *cobra.Command {
	opts := &inspectOpts{}

	cmd := &cobra.Command{
		Use:   "inspect <archive>",
		Short: "Show the manifest, nested libraries and main classes of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.match, "match", "m", nil, "list entries matching this glob (repeatable, ** allowed)")
	cmd.Flags().BoolVar(&opts.mainClasses, "main-classes", false, "scan for classes with a main method")

	return cmd
}

func runInspect(out io.Writer, path string, opts *inspectOpts) error {
	for _, p := range opts.match {
		if !doublestar.ValidatePattern(p) {
			return errors.Errorf("invalid match pattern %q", p)
		}
	}

	r, err := jar.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	m, err := r.Manifest()
	if err != nil {
		return err
	}

	repackaged := m != nil && m.Main.Has(manifest.BootVersion)
	fmt.Fprintf(out, "%s %s\n", pterm.Bold.Sprint(path), pterm.FgGray.Sprintf("(%d entries, repackaged: %v)", len(r.Files()), repackaged))

	if m != nil {
		data := pterm.TableData{{"Attribute", "Value"}}
		for _, name := range m.Main.Names() {
			data = append(data, []string{name, m.Main.Get(name)})
		}
		table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
		if err != nil {
			return errors.Errorf("rendering manifest: %w", err)
		}
		fmt.Fprintln(out, table)
	}

	var libs []string
	libDir := ""
	if m != nil {
		libDir = m.Main.Get(manifest.BootLib)
	}
	for _, f := range r.Files() {
		if libDir != "" && strings.HasPrefix(f.Name, libDir) && !strings.HasSuffix(f.Name, "/") {
			label := strings.TrimPrefix(f.Name, libDir)
			if strings.HasPrefix(f.Comment, jar.UnpackCommentPrefix) {
				label += " (unpack)"
			}
			libs = append(libs, label)
		}
	}
	if len(libs) > 0 {
		fmt.Fprintf(out, "\nnested libraries in %s:\n", libDir)
		for _, l := range libs {
			fmt.Fprintf(out, "  %s\n", l)
		}
	}

	if len(opts.match) > 0 {
		fmt.Fprintln(out, "\nmatching entries:")
		for _, f := range r.Files() {
			for _, p := range opts.match {
				if ok, _ := doublestar.Match(p, f.Name); ok {
					fmt.Fprintf(out, "  %s\n", f.Name)
					break
				}
			}
		}
	}

	if opts.mainClasses {
		prefix := ""
		if m != nil {
			prefix = m.Main.Get(manifest.BootClasses)
		}
		if prefix == "" {
			if l, err := layout.ForFile(path); err == nil {
				prefix = l.ClassesLocation()
			}
		}
		found, err := classfile.FindMainClasses(r.Files(), prefix)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "\nmain classes:")
		for _, c := range found {
			marker := ""
			if c.HasAnnotation(classfile.BootApplication) {
				marker = " *"
			}
			fmt.Fprintf(out, "  %s%s\n", c.Name, marker)
		}
	}
	return nil
}
