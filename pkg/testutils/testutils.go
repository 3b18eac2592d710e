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

// Package testutils builds archives and class files for tests.
package testutils

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// Epoch is the modification time given to every generated entry.
var Epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Entry is one file in a generated archive. Names ending in "/" are directories.
type Entry struct {
	Name string
	Body []byte
}

// File is a shorthand for a text entry.
func File(name, body string) Entry {
	return Entry{Name: name, Body: []byte(body)}
}

// Dir is a directory entry.
func Dir(name string) Entry {
	return Entry{Name: strings.TrimSuffix(name, "/") + "/"}
}

// Manifest renders "Key: Value" pairs into a manifest entry.
func Manifest(pairs ...string) Entry {
	var b strings.Builder
	b.WriteString("Manifest-Version: 1.0\r\n")
	for i := 0; i+1 < len(pairs); i += 2 {
		b.WriteString(pairs[i] + ": " + pairs[i+1] + "\r\n")
	}
	b.WriteString("\r\n")
	return File("META-INF/MANIFEST.MF", b.String())
}

// 🧪 WriteJar writes entries, in order, to a new archive at path.
func WriteJar(t testing.TB, path string, entries ...Entry) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	f, err := os.Create(path)
	require.NoError(t, err, "creating archive")
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		fh := &zip.FileHeader{Name: e.Name, Method: zip.Deflate, Modified: Epoch}
		if strings.HasSuffix(e.Name, "/") {
			fh.Method = zip.Store
		}
		w, err := zw.CreateHeader(fh)
		require.NoError(t, err, "adding %s", e.Name)
		if len(e.Body) > 0 {
			_, err = w.Write(e.Body)
			require.NoError(t, err, "writing %s", e.Name)
		}
	}
	require.NoError(t, zw.Close(), "finishing archive")
	return path
}

// 🧪 ReadJar returns the entry names in archive order and the contents of each.
func ReadJar(t testing.TB, path string) ([]string, map[string][]byte) {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err, "opening archive %s", path)
	defer zr.Close()

	names := make([]string, 0, len(zr.File))
	contents := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
		rc, err := f.Open()
		require.NoError(t, err, "opening %s", f.Name)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err, "reading %s", f.Name)
		contents[f.Name] = data
	}
	return names, contents
}

// Context returns a context whose zerolog logger writes through t.
func Context(t testing.TB) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t)).With().Timestamp().Logger()
	return logger.WithContext(context.Background())
}

// Class describes a generated class file.
type Class struct {
	// Name in dotted form, e.g. com.example.App
	Name        string
	Main        bool
	Annotations []string
}

// 🧪 ClassBytes assembles a minimal class file for c. A main class carries
// public static void main(String[]); annotations are given as dotted names.
func ClassBytes(c Class) []byte {
	var pool [][]byte
	utf8 := func(s string) uint16 {
		b := []byte{1}
		b = binary.BigEndian.AppendUint16(b, uint16(len(s)))
		pool = append(pool, append(b, s...))
		return uint16(len(pool))
	}
	class := func(nameIdx uint16) uint16 {
		pool = append(pool, binary.BigEndian.AppendUint16([]byte{7}, nameIdx))
		return uint16(len(pool))
	}

	this := class(utf8(strings.ReplaceAll(c.Name, ".", "/")))
	super := class(utf8("java/lang/Object"))
	mainName := utf8("main")
	mainDesc := utf8("([Ljava/lang/String;)V")
	var annAttr uint16
	var annTypes []uint16
	if len(c.Annotations) > 0 {
		annAttr = utf8("RuntimeVisibleAnnotations")
		for _, a := range c.Annotations {
			annTypes = append(annTypes, utf8("L"+strings.ReplaceAll(a, ".", "/")+";"))
		}
	}

	var b bytes.Buffer
	put16 := func(v uint16) { _ = binary.Write(&b, binary.BigEndian, v) }
	put32 := func(v uint32) { _ = binary.Write(&b, binary.BigEndian, v) }

	put32(0xCAFEBABE)
	put16(0)
	put16(52)
	put16(uint16(len(pool) + 1))
	for _, e := range pool {
		b.Write(e)
	}
	put16(0x0021)
	put16(this)
	put16(super)
	put16(0) // interfaces
	put16(0) // fields

	if c.Main {
		put16(1)
		put16(0x0009)
		put16(mainName)
		put16(mainDesc)
		put16(0)
	} else {
		put16(0)
	}

	if len(annTypes) == 0 {
		put16(0)
		return b.Bytes()
	}
	put16(1)
	put16(annAttr)
	put32(uint32(2 + 4*len(annTypes)))
	put16(uint16(len(annTypes)))
	for _, idx := range annTypes {
		put16(idx)
		put16(0)
	}
	return b.Bytes()
}

// ClassEntry places the class for c at its path below prefix.
func ClassEntry(prefix string, c Class) Entry {
	return Entry{
		Name: prefix + strings.ReplaceAll(c.Name, ".", "/") + ".class",
		Body: ClassBytes(c),
	}
}
