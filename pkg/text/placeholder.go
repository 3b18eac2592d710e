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

package text

import (
	"context"
	"io"
	"regexp"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// placeholder matches {{name}} and {{name:default}}.
var placeholder = regexp.MustCompile(`\{\{(\w+)(:.*?)?\}\}`)

var validName = regexp.MustCompile(`^\w+$`)

// ReplacementResult holds the outcome of an expansion.
type ReplacementResult struct {
	OriginalContent  []byte
	ModifiedContent  []byte
	ReplacementCount int
	WasModified      bool
}

// PlaceholderReplacer expands {{name:default}} placeholders. A name found in the
// properties takes its value; otherwise the default applies, and a placeholder
// with neither is left as written.
type PlaceholderReplacer struct{}

// NewPlaceholderReplacer creates a new PlaceholderReplacer
func NewPlaceholderReplacer() *PlaceholderReplacer {
	return &PlaceholderReplacer{}
}

// ReplaceText expands every placeholder in content.
func (r *PlaceholderReplacer) ReplaceText(ctx context.Context, content io.Reader, properties map[string]string) (*ReplacementResult, error) {
	originalContent, err := io.ReadAll(content)
	if err != nil {
		return nil, errors.Errorf("reading content: %w", err)
	}

	result := &ReplacementResult{
		OriginalContent: originalContent,
	}

	modified := placeholder.ReplaceAllStringFunc(string(originalContent), func(match string) string {
		groups := placeholder.FindStringSubmatch(match)
		name, def := groups[1], groups[2]

		if v, ok := properties[name]; ok {
			result.ReplacementCount++
			return v
		}
		if def != "" {
			result.ReplacementCount++
			return def[1:]
		}
		zerolog.Ctx(ctx).Debug().Str("placeholder", name).Msg("no value or default, leaving placeholder")
		return match
	})

	result.ModifiedContent = []byte(modified)
	result.WasModified = modified != string(originalContent)
	return result, nil
}

// ValidateProperties checks that every property name could match a placeholder.
func (r *PlaceholderReplacer) ValidateProperties(properties map[string]string) error {
	for name := range properties {
		if !validName.MatchString(name) {
			return errors.Errorf("property %q: names may only contain letters, digits and underscores", name)
		}
	}
	return nil
}

// Names returns the placeholder names used in content, in order of first use.
func Names(content string) []string {
	var names []string
	seen := map[string]struct{}{}
	for _, m := range placeholder.FindAllStringSubmatch(content, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}
