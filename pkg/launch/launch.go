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

// Package launch provides the shell script written ahead of a fully executable archive.
package launch

import (
	"bytes"
	"context"
	_ "embed"
	"os"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/bootpack/pkg/text"
)

//go:embed launch.script
var defaultScript []byte

// Script is the prefix written before the archive's first entry.
type Script interface {
	Bytes() []byte
}

type script []byte

func (s script) Bytes() []byte {
	return []byte(s)
}

// 🚀 Default expands the built-in script with properties.
func Default(ctx context.Context, properties map[string]string) (Script, error) {
	return expand(ctx, "embedded", defaultScript, properties)
}

// 🚀 FromFile expands the script at path with properties.
func FromFile(ctx context.Context, path string, properties map[string]string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading launch script %q: %w", path, err)
	}
	return expand(ctx, path, data, properties)
}

// New picks FromFile when path is set and Default otherwise.
func New(ctx context.Context, path string, properties map[string]string) (Script, error) {
	if path == "" {
		return Default(ctx, properties)
	}
	return FromFile(ctx, path, properties)
}

func expand(ctx context.Context, source string, content []byte, properties map[string]string) (Script, error) {
	replacer := text.NewPlaceholderReplacer()
	if err := replacer.ValidateProperties(properties); err != nil {
		return nil, errors.Errorf("launch script properties: %w", err)
	}

	result, err := replacer.ReplaceText(ctx, bytes.NewReader(content), properties)
	if err != nil {
		return nil, errors.Errorf("expanding launch script %s: %w", source, err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("source", source).
		Int("replacements", result.ReplacementCount).
		Msg("expanded launch script")

	return script(result.ModifiedContent), nil
}
