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

package jar

import (
	"archive/zip"
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/bootpack/pkg/manifest"
)

// UnpackCommentPrefix marks nested libraries that must be extracted before use.
const UnpackCommentPrefix = "UNPACK:"

// EntryTransformer renames source entries as they are copied. Returning false
// drops the entry.
type EntryTransformer interface {
	Transform(name string) (string, bool)
}

// EntryTransformerFunc adapts a function to EntryTransformer.
type EntryTransformerFunc func(name string) (string, bool)

func (f EntryTransformerFunc) Transform(name string) (string, bool) {
	return f(name)
}

// Identity keeps every entry as it is.
var Identity = EntryTransformerFunc(func(name string) (string, bool) { return name, true })

// Writer builds a new archive. Each entry name is written at most once; later
// entries with a name already present are skipped.
type Writer struct {
	path    string
	file    *os.File
	zw      *zip.Writer
	written map[string]struct{}
	names   []string
}

// ✍️ Create opens path for writing, truncating any existing file. When script is
// non-empty it is written ahead of the archive and the file is made executable.
func Create(path string, script []byte) (*Writer, error) {
	perm := os.FileMode(0o644)
	if len(script) > 0 {
		perm = 0o755
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Errorf("creating parent of %q: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return nil, errors.Errorf("creating archive %q: %w", path, err)
	}

	if len(script) > 0 {
		if _, err := f.Write(script); err != nil {
			f.Close()
			return nil, errors.Errorf("writing launch script to %q: %w", path, err)
		}
		if err := f.Chmod(perm); err != nil {
			f.Close()
			return nil, errors.Errorf("making %q executable: %w", path, err)
		}
	}

	zw := zip.NewWriter(f)
	zw.SetOffset(int64(len(script)))

	return &Writer{
		path:    path,
		file:    f,
		zw:      zw,
		written: make(map[string]struct{}),
	}, nil
}

// Written reports whether an entry with name was already added.
func (w *Writer) Written(name string) bool {
	_, ok := w.written[name]
	return ok
}

// Names returns every entry name in write order.
func (w *Writer) Names() []string {
	return append([]string(nil), w.names...)
}

func (w *Writer) mark(name string) {
	w.written[name] = struct{}{}
	w.names = append(w.names, name)
}

// 📜 WriteManifest writes m as the archive manifest.
func (w *Writer) WriteManifest(m *manifest.Manifest) error {
	data, err := m.Bytes()
	if err != nil {
		return errors.Errorf("rendering manifest: %w", err)
	}
	return w.WriteEntry(manifest.Path, bytes.NewReader(data), time.Now())
}

// WriteEntry deflates the contents of r into a new entry called name.
func (w *Writer) WriteEntry(name string, r io.Reader, modified time.Time) error {
	if w.Written(name) {
		return nil
	}
	if err := w.writeParents(name, modified); err != nil {
		return err
	}

	fh := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modified}
	fh.SetMode(0o644)
	out, err := w.zw.CreateHeader(fh)
	if err != nil {
		return errors.Errorf("adding %q: %w", name, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		return errors.Errorf("writing %q: %w", name, err)
	}
	w.mark(name)
	return nil
}

// 📦 WriteEntries copies every entry of r through t without recompressing.
func (w *Writer) WriteEntries(r *Reader, t EntryTransformer) error {
	if t == nil {
		t = Identity
	}
	for _, f := range r.Files() {
		name, ok := t.Transform(f.Name)
		if !ok || name == "" || w.Written(name) {
			continue
		}
		if err := w.copyRaw(f, name); err != nil {
			return errors.Errorf("copying %q from %q: %w", f.Name, r.Path(), err)
		}
	}
	return nil
}

// 📦 WriteNestedLibrary stores the archive at path as dir+name. Nested archives are
// never compressed; unpack libraries carry an UNPACK:<sha1> comment.
func (w *Writer) WriteNestedLibrary(dir, name, path string, unpack bool) error {
	entry := dir + name
	if w.Written(entry) {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Errorf("opening library %q: %w", path, err)
	}
	defer f.Close()

	crc := crc32.NewIEEE()
	sum := sha1.New()
	size, err := io.Copy(io.MultiWriter(crc, sum), f)
	if err != nil {
		return errors.Errorf("reading library %q: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return errors.Errorf("rewinding library %q: %w", path, err)
	}

	modified := libraryTime(path)
	if err := w.writeParents(entry, modified); err != nil {
		return err
	}

	fh := &zip.FileHeader{
		Name:               entry,
		Method:             zip.Store,
		CRC32:              crc.Sum32(),
		CompressedSize64:   uint64(size),
		UncompressedSize64: uint64(size),
	}
	fh.SetMode(0o644)
	fh.SetModTime(modified) //nolint:staticcheck // raw headers are written without the Modified conversion
	if unpack {
		fh.Comment = UnpackCommentPrefix + hex.EncodeToString(sum.Sum(nil))
	}

	out, err := w.zw.CreateRaw(fh)
	if err != nil {
		return errors.Errorf("adding %q: %w", entry, err)
	}
	if _, err := io.Copy(out, f); err != nil {
		return errors.Errorf("writing %q: %w", entry, err)
	}
	w.mark(entry)
	return nil
}

// 🚀 WriteLoaderClassesFrom copies the launcher classes held in the archive at path,
// skipping its META-INF content.
func (w *Writer) WriteLoaderClassesFrom(path string) error {
	r, err := Open(path)
	if err != nil {
		return errors.Errorf("opening loader archive: %w", err)
	}
	defer r.Close()

	return w.WriteEntries(r, EntryTransformerFunc(func(name string) (string, bool) {
		if strings.HasPrefix(name, "META-INF/") {
			return "", false
		}
		return name, true
	}))
}

// Close finishes the central directory and closes the file.
func (w *Writer) Close() error {
	zerr := w.zw.Close()
	ferr := w.file.Close()
	if zerr != nil {
		return errors.Errorf("finishing archive %q: %w", w.path, zerr)
	}
	if ferr != nil {
		return errors.Errorf("closing archive %q: %w", w.path, ferr)
	}
	return nil
}

func (w *Writer) copyRaw(f *zip.File, name string) error {
	if err := w.writeParents(name, f.Modified); err != nil {
		return err
	}

	fh := f.FileHeader
	fh.Name = name
	if strings.HasSuffix(name, "/") {
		// directories carry no data
		fh.CRC32, fh.CompressedSize64, fh.UncompressedSize64 = 0, 0, 0
		fh.Method = zip.Store
		fh.Flags &^= 0x8
	}
	out, err := w.zw.CreateRaw(&fh)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(name, "/") {
		in, err := f.OpenRaw()
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			return err
		}
	}
	w.mark(name)
	return nil
}

// writeParents adds a directory entry for every missing parent of name.
func (w *Writer) writeParents(name string, modified time.Time) error {
	trimmed := strings.TrimSuffix(name, "/")
	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] != '/' {
			continue
		}
		dir := trimmed[:i+1]
		if w.Written(dir) {
			continue
		}
		fh := &zip.FileHeader{Name: dir, Method: zip.Store, Modified: modified}
		fh.SetMode(os.ModeDir | 0o755)
		if _, err := w.zw.CreateHeader(fh); err != nil {
			return errors.Errorf("adding directory %q: %w", dir, err)
		}
		w.mark(dir)
	}
	return nil
}

// libraryTime is the newest entry time inside the nested archive, falling back
// to the file's own modification time.
func libraryTime(path string) time.Time {
	var newest time.Time
	if zr, err := zip.OpenReader(path); err == nil {
		for _, f := range zr.File {
			if f.Modified.After(newest) {
				newest = f.Modified
			}
		}
		zr.Close()
	}
	if !newest.IsZero() {
		return newest
	}
	if info, err := os.Stat(path); err == nil {
		return info.ModTime()
	}
	return time.Now()
}
