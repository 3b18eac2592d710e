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

package classfile

import (
	"archive/zip"
	"io"
	"sort"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// BootApplication is the annotation that settles a tie between several main classes.
const BootApplication = "org.springframework.boot.autoconfigure.SpringBootApplication"

var ErrMultipleMainClasses = errors.Base("unable to find a single main class")

// 🔎 FindMainClasses parses every .class entry below prefix and returns those with
// a main method, shallowest package first, then by name.
func FindMainClasses(files []*zip.File, prefix string) ([]*Class, error) {
	var found []*Class
	for _, f := range files {
		if !strings.HasPrefix(f.Name, prefix) || !strings.HasSuffix(f.Name, ".class") {
			continue
		}
		if strings.HasPrefix(strings.TrimPrefix(f.Name, prefix), "META-INF/") {
			continue
		}

		data, err := readEntry(f)
		if err != nil {
			return nil, errors.Errorf("reading %q: %w", f.Name, err)
		}
		c, err := Parse(data)
		if err != nil {
			return nil, errors.Errorf("parsing %q: %w", f.Name, err)
		}
		if c.HasMain {
			found = append(found, c)
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		di, dj := strings.Count(found[i].Name, "."), strings.Count(found[j].Name, ".")
		if di != dj {
			return di < dj
		}
		return found[i].Name < found[j].Name
	})
	return found, nil
}

// 🔎 FindSingleMainClass returns the only main class below prefix. When several
// exist, the one carrying annotation wins if it is unique. No candidates is not
// an error and yields "".
func FindSingleMainClass(files []*zip.File, prefix, annotation string) (string, error) {
	found, err := FindMainClasses(files, prefix)
	if err != nil {
		return "", err
	}

	switch len(found) {
	case 0:
		return "", nil
	case 1:
		return found[0].Name, nil
	}

	var annotated []*Class
	if annotation != "" {
		for _, c := range found {
			if c.HasAnnotation(annotation) {
				annotated = append(annotated, c)
			}
		}
	}
	if len(annotated) == 1 {
		return annotated[0].Name, nil
	}

	candidates := found
	if len(annotated) > 1 {
		candidates = annotated
	}
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.Name)
	}
	return "", errors.Errorf("%w: candidates are %s", ErrMultipleMainClasses, strings.Join(names, ", "))
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
