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

// Package jar reads and writes zip-based java archives.
package jar

import (
	"archive/zip"
	"bytes"
	"io"
	"os"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/bootpack/pkg/manifest"
)

var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// 🔍 IsZip reports whether the file at path starts with a local file header.
// Unreadable or short files are not archives.
func IsZip(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	return IsZipReader(f)
}

// IsZipReader reports whether r starts with the zip local file header signature.
func IsZipReader(r io.Reader) bool {
	head := make([]byte, len(zipMagic))
	if _, err := io.ReadFull(r, head); err != nil {
		return false
	}
	return bytes.Equal(head, zipMagic)
}

// Reader is an open archive.
type Reader struct {
	path string
	zr   *zip.ReadCloser
}

// 📂 Open opens the archive at path.
func Open(path string) (*Reader, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Errorf("opening archive %q: %w", path, err)
	}
	return &Reader{path: path, zr: zr}, nil
}

func (r *Reader) Path() string {
	return r.path
}

// Files returns the entries in central directory order.
func (r *Reader) Files() []*zip.File {
	return r.zr.File
}

// File returns the entry with the given name, or nil.
func (r *Reader) File(name string) *zip.File {
	for _, f := range r.zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// 📜 Manifest parses META-INF/MANIFEST.MF. It returns nil without error when the
// archive has no manifest.
func (r *Reader) Manifest() (*manifest.Manifest, error) {
	f := r.File(manifest.Path)
	if f == nil {
		return nil, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Errorf("opening manifest in %q: %w", r.path, err)
	}
	defer rc.Close()

	m, err := manifest.Parse(rc)
	if err != nil {
		return nil, errors.Errorf("parsing manifest in %q: %w", r.path, err)
	}
	return m, nil
}

func (r *Reader) Close() error {
	if err := r.zr.Close(); err != nil {
		return errors.Errorf("closing archive %q: %w", r.path, err)
	}
	return nil
}

// ReadManifest opens path just long enough to read its manifest.
func ReadManifest(path string) (*manifest.Manifest, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Manifest()
}
