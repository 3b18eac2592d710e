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

// Package manifest reads and writes META-INF/MANIFEST.MF files.
package manifest

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"gitlab.com/tozd/go/errors"
)

// Path is the archive entry name of the manifest.
const Path = "META-INF/MANIFEST.MF"

// well known attribute names
const (
	ManifestVersion = "Manifest-Version"
	MainClass       = "Main-Class"
	StartClass      = "Start-Class"
	ClassPath       = "Class-Path"
	BootVersion     = "Spring-Boot-Version"
	BootClasses     = "Spring-Boot-Classes"
	BootLib         = "Spring-Boot-Lib"
	sectionName     = "Name"
)

const (
	maxLineLength = 72
	maxNameLength = 70
)

var ErrMalformed = errors.Base("malformed manifest")

// Attributes is an ordered set of header values. Names compare case-insensitively
// but keep the spelling they were first set with.
type Attributes struct {
	order  []string
	values map[string]string
	names  map[string]string
}

func (a *Attributes) init() {
	if a.values == nil {
		a.values = make(map[string]string)
		a.names = make(map[string]string)
	}
}

// Get returns the value for name, or "" when it is absent.
func (a *Attributes) Get(name string) string {
	v, _ := a.Lookup(name)
	return v
}

func (a *Attributes) Lookup(name string) (string, bool) {
	if a.values == nil {
		return "", false
	}
	v, ok := a.values[strings.ToLower(name)]
	return v, ok
}

// Has reports whether name is present, even with an empty value.
func (a *Attributes) Has(name string) bool {
	_, ok := a.Lookup(name)
	return ok
}

// Set stores value under name. An existing name keeps its position.
func (a *Attributes) Set(name, value string) {
	a.init()
	key := strings.ToLower(name)
	if _, ok := a.values[key]; !ok {
		a.order = append(a.order, key)
		a.names[key] = name
	}
	a.values[key] = value
}

func (a *Attributes) Delete(name string) {
	if a.values == nil {
		return
	}
	key := strings.ToLower(name)
	if _, ok := a.values[key]; !ok {
		return
	}
	delete(a.values, key)
	delete(a.names, key)
	for i, k := range a.order {
		if k == key {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

// Names returns the attribute names in insertion order.
func (a *Attributes) Names() []string {
	out := make([]string, 0, len(a.order))
	for _, k := range a.order {
		out = append(out, a.names[k])
	}
	return out
}

func (a *Attributes) Len() int {
	return len(a.order)
}

func (a *Attributes) clone() Attributes {
	var c Attributes
	for _, k := range a.order {
		c.Set(a.names[k], a.values[k])
	}
	return c
}

// Section is a named per-entry block following the main attributes.
type Section struct {
	Name       string
	Attributes Attributes
}

// Manifest holds the main attributes and any named sections, in file order.
type Manifest struct {
	Main     Attributes
	Sections []*Section
}

// 📜 New returns a manifest carrying only Manifest-Version: 1.0.
func New() *Manifest {
	m := &Manifest{}
	m.Main.Set(ManifestVersion, "1.0")
	return m
}

// Section returns the section with the given name, or nil.
func (m *Manifest) Section(name string) *Section {
	for _, s := range m.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// AddSection returns the named section, creating it at the end when missing.
func (m *Manifest) AddSection(name string) *Section {
	if s := m.Section(name); s != nil {
		return s
	}
	s := &Section{Name: name}
	m.Sections = append(m.Sections, s)
	return s
}

// 📜 Clone returns a deep copy.
func (m *Manifest) Clone() *Manifest {
	c := &Manifest{Main: m.Main.clone()}
	for _, s := range m.Sections {
		c.Sections = append(c.Sections, &Section{Name: s.Name, Attributes: s.Attributes.clone()})
	}
	return c
}

// 📖 Parse reads a manifest. Continuation lines (leading single space) are joined
// onto the previous value and any of CRLF, LF or CR end a line.
func Parse(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Errorf("reading manifest: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	m := &Manifest{}
	current := &m.Main
	inMain := true
	lastName := ""
	sectionOpen := false

	for num, line := range splitLines(data) {
		if line == "" {
			lastName = ""
			if !inMain {
				sectionOpen = false
			}
			inMain = false
			continue
		}

		if line[0] == ' ' {
			if lastName == "" {
				return nil, errors.Errorf("%w: line %d: continuation without a header", ErrMalformed, num+1)
			}
			current.Set(lastName, current.Get(lastName)+line[1:])
			continue
		}

		name, value, ok := strings.Cut(line, ": ")
		if !ok {
			if strings.HasSuffix(line, ":") {
				name, value, ok = strings.TrimSuffix(line, ":"), "", true
			}
		}
		if !ok || !validName(name) {
			return nil, errors.Errorf("%w: line %d: invalid header %q", ErrMalformed, num+1, line)
		}

		if !inMain && !sectionOpen {
			if !strings.EqualFold(name, sectionName) {
				return nil, errors.Errorf("%w: line %d: section must start with %s, got %q", ErrMalformed, num+1, sectionName, name)
			}
			s := &Section{Name: value}
			m.Sections = append(m.Sections, s)
			current = &s.Attributes
			sectionOpen = true
			// the name may continue on the next line
			lastName = sectionName
			current.Set(sectionName, value)
			continue
		}

		current.Set(name, value)
		lastName = name
	}

	// the section name was collected as an attribute so continuations could extend it
	for _, s := range m.Sections {
		s.Name = s.Attributes.Get(sectionName)
		s.Attributes.Delete(sectionName)
	}

	return m, nil
}

// ✍️ WriteTo writes the manifest with CRLF line endings, folding every line to at
// most 72 bytes. Manifest-Version always comes first when present.
func (m *Manifest) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	cw := &countingWriter{w: bw}

	if err := writeAttributes(cw, &m.Main, true); err != nil {
		return cw.n, err
	}
	if _, err := io.WriteString(cw, "\r\n"); err != nil {
		return cw.n, err
	}

	for _, s := range m.Sections {
		if err := writeHeader(cw, sectionName, s.Name); err != nil {
			return cw.n, err
		}
		if err := writeAttributes(cw, &s.Attributes, false); err != nil {
			return cw.n, err
		}
		if _, err := io.WriteString(cw, "\r\n"); err != nil {
			return cw.n, err
		}
	}

	if err := bw.Flush(); err != nil {
		return cw.n, errors.Errorf("writing manifest: %w", err)
	}
	return cw.n, nil
}

// Bytes renders the manifest.
func (m *Manifest) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeAttributes(w io.Writer, a *Attributes, versionFirst bool) error {
	if versionFirst {
		if v, ok := a.Lookup(ManifestVersion); ok {
			if err := writeHeader(w, ManifestVersion, v); err != nil {
				return err
			}
		}
	}
	for _, name := range a.Names() {
		if versionFirst && strings.EqualFold(name, ManifestVersion) {
			continue
		}
		if err := writeHeader(w, name, a.Get(name)); err != nil {
			return err
		}
	}
	return nil
}

func writeHeader(w io.Writer, name, value string) error {
	if !validName(name) {
		return errors.Errorf("%w: invalid attribute name %q", ErrMalformed, name)
	}
	if strings.ContainsAny(value, "\r\n\x00") {
		return errors.Errorf("%w: attribute %q contains a line break", ErrMalformed, name)
	}
	for _, line := range fold(name + ": " + value) {
		if _, err := io.WriteString(w, line+"\r\n"); err != nil {
			return errors.Errorf("writing manifest: %w", err)
		}
	}
	return nil
}

// fold splits s into lines of at most maxLineLength bytes. Continuation lines
// start with a space that counts toward the limit. Runes are never split.
func fold(s string) []string {
	var lines []string
	limit := maxLineLength
	prefix := ""
	for len(s) > limit-len(prefix) {
		cut := limit - len(prefix)
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		lines = append(lines, prefix+s[:cut])
		s = s[cut:]
		prefix = " "
	}
	return append(lines, prefix+s)
}

func splitLines(data []byte) []string {
	var lines []string
	for len(data) > 0 {
		i := bytes.IndexAny(data, "\r\n")
		if i < 0 {
			lines = append(lines, string(data))
			break
		}
		lines = append(lines, string(data[:i]))
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			i++
		}
		data = data[i+1:]
	}
	return lines
}

func validName(name string) bool {
	if name == "" || len(name) > maxNameLength {
		return false
	}
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
