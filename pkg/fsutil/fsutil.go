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

package fsutil

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrFileExists is returned when a destination is occupied and cannot be replaced.
	ErrFileExists = errors.Base("destination already exists")
	// ErrIntegrity is returned when a copied file does not match the source length.
	ErrIntegrity = errors.Base("copy integrity check failed")
	// ErrSubdirectory is returned when a directory would be moved below itself.
	ErrSubdirectory = errors.Base("cannot move directory into a subdirectory of itself")
	// ErrSameFile is returned when source and destination resolve to the same path.
	ErrSameFile = errors.Base("source and destination are the same")
)

// postCopy runs between the data copy and the length check. Tests swap it to
// simulate a file that changes underneath the copy.
var postCopy = func(src, dst string) {}

// 🚚 MoveFile moves a file, renaming when possible and falling back to copy+delete.
func MoveFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return errors.Errorf("source %q: %w", src, err)
	}
	if info.IsDir() {
		return errors.Errorf("source %q is a directory", src)
	}

	same, err := SamePath(src, dst)
	if err != nil {
		return err
	}
	if same {
		return errors.Errorf("%w: %q", ErrSameFile, src)
	}

	if dstInfo, err := os.Lstat(dst); err == nil {
		if dstInfo.IsDir() {
			return errors.Errorf("%w: destination %q is a directory", ErrFileExists, dst)
		}
		if err := os.Remove(dst); err != nil {
			return errors.Errorf("%w: %q could not be removed: %v", ErrFileExists, dst, err)
		}
	}

	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	if err := CopyFile(src, dst); err != nil {
		return errors.Errorf("moving %q to %q: %w", src, dst, err)
	}
	if err := os.Remove(src); err != nil {
		DeleteQuietly(dst)
		return errors.Errorf("failed to delete original file %q after copy to %q: %w", src, dst, err)
	}
	return nil
}

// 🚚 MoveFileIntoDirectory moves src into destDir, creating destDir when missing.
func MoveFileIntoDirectory(src, destDir string) error {
	if err := ensureDirectory(destDir); err != nil {
		return err
	}
	return MoveFile(src, filepath.Join(destDir, filepath.Base(src)))
}

// 🚚 MoveDirectory moves srcDir to destDir. destDir must not exist.
func MoveDirectory(srcDir, destDir string) error {
	info, err := os.Stat(srcDir)
	if err != nil {
		return errors.Errorf("source %q: %w", srcDir, err)
	}
	if !info.IsDir() {
		return errors.Errorf("source %q is not a directory", srcDir)
	}
	if _, err := os.Lstat(destDir); err == nil {
		return errors.Errorf("%w: %q", ErrFileExists, destDir)
	}

	inside, err := isWithin(srcDir, destDir)
	if err != nil {
		return err
	}
	if inside {
		return errors.Errorf("%w: %q to %q", ErrSubdirectory, srcDir, destDir)
	}

	if err := os.Rename(srcDir, destDir); err == nil {
		return nil
	}

	if err := CopyDirectory(srcDir, destDir); err != nil {
		return errors.Errorf("moving %q to %q: %w", srcDir, destDir, err)
	}
	if err := DeleteDirectoryRecursive(srcDir); err != nil {
		return errors.Errorf("failed to delete original directory %q after copy to %q: %w", srcDir, destDir, err)
	}
	if _, err := os.Lstat(srcDir); err == nil {
		return errors.Errorf("failed to delete original directory %q after copy to %q", srcDir, destDir)
	}
	return nil
}

// 🚚 MoveDirectoryIntoDirectory moves srcDir below destDir, keeping its base name.
func MoveDirectoryIntoDirectory(srcDir, destDir string) error {
	if err := ensureDirectory(destDir); err != nil {
		return err
	}
	return MoveDirectory(srcDir, filepath.Join(destDir, filepath.Base(srcDir)))
}

// 📋 CopyFile copies src to dst, preserving the modification time.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return errors.Errorf("source %q: %w", src, err)
	}
	if info.IsDir() {
		return errors.Errorf("source %q exists but is a directory", src)
	}

	same, err := SamePath(src, dst)
	if err != nil {
		return err
	}
	if same {
		return errors.Errorf("%w: %q", ErrSameFile, src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Errorf("destination %q directory cannot be created: %w", filepath.Dir(dst), err)
	}
	if dstInfo, err := os.Stat(dst); err == nil && dstInfo.Mode().IsRegular() && dstInfo.Mode().Perm()&0o200 == 0 {
		return errors.Errorf("destination %q exists but is read-only", dst)
	}

	return copyFileContents(src, dst, info, true)
}

// 📋 CopyFileIntoDirectory copies src into destDir, creating destDir when missing.
func CopyFileIntoDirectory(src, destDir string) error {
	if err := ensureDirectory(destDir); err != nil {
		return err
	}
	return CopyFile(src, filepath.Join(destDir, filepath.Base(src)))
}

// 📋 CopyDirectory copies the tree at srcDir to destDir, preserving modification times.
// When destDir lies inside srcDir, the copy's own output is excluded from the walk.
func CopyDirectory(srcDir, destDir string) error {
	info, err := os.Stat(srcDir)
	if err != nil {
		return errors.Errorf("source %q: %w", srcDir, err)
	}
	if !info.IsDir() {
		return errors.Errorf("source %q exists but is not a directory", srcDir)
	}

	same, err := SamePath(srcDir, destDir)
	if err != nil {
		return err
	}
	if same {
		return errors.Errorf("%w: %q", ErrSameFile, srcDir)
	}

	var exclusions map[string]struct{}
	inside, err := isWithin(srcDir, destDir)
	if err != nil {
		return err
	}
	if inside {
		entries, err := os.ReadDir(srcDir)
		if err != nil {
			return errors.Errorf("failed to list contents of %q: %w", srcDir, err)
		}
		exclusions = make(map[string]struct{}, len(entries))
		for _, entry := range entries {
			canon, err := canonical(filepath.Join(destDir, entry.Name()))
			if err != nil {
				return err
			}
			exclusions[canon] = struct{}{}
		}
	}

	return copyDirectoryContents(srcDir, destDir, exclusions, true)
}

// 📋 CopyDirectoryIntoDirectory copies srcDir below destDir, keeping its base name.
func CopyDirectoryIntoDirectory(srcDir, destDir string) error {
	if info, err := os.Stat(srcDir); err == nil && !info.IsDir() {
		return errors.Errorf("source %q is not a directory", srcDir)
	}
	if info, err := os.Stat(destDir); err == nil && !info.IsDir() {
		return errors.Errorf("destination %q is not a directory", destDir)
	}
	if err := ensureDirectory(destDir); err != nil {
		return err
	}
	return CopyDirectory(srcDir, filepath.Join(destDir, filepath.Base(srcDir)))
}

// 🗑️ DeleteDirectoryRecursive removes dir and everything below it. A symlinked
// directory is unlinked without touching its target. A missing dir is not an error.
func DeleteDirectoryRecursive(dir string) error {
	if _, err := os.Lstat(dir); os.IsNotExist(err) {
		return nil
	}

	link, err := IsSymlink(dir)
	if err != nil {
		return err
	}
	if !link {
		if err := CleanDirectory(dir); err != nil {
			return err
		}
	}

	if err := os.Remove(dir); err != nil {
		return errors.Errorf("unable to delete directory %q: %w", dir, err)
	}
	return nil
}

// 🧹 CleanDirectory removes the contents of dir, keeping dir itself. Every child is
// attempted; the last failure is returned.
func CleanDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return errors.Errorf("%q: %w", dir, err)
	}
	if !info.IsDir() {
		return errors.Errorf("%q is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Errorf("failed to list contents of %q: %w", dir, err)
	}

	var last error
	for _, entry := range entries {
		if err := forceDelete(filepath.Join(dir, entry.Name())); err != nil {
			last = err
		}
	}
	return last
}

// 🤫 DeleteQuietly removes path (recursively for directories) and reports whether
// the final removal succeeded. Errors are discarded.
func DeleteQuietly(path string) bool {
	if path == "" {
		return false
	}
	if link, err := IsSymlink(path); err == nil && !link {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			_ = CleanDirectory(path)
		}
	}
	return os.Remove(path) == nil
}

// 🔗 IsSymlink reports whether path is a symbolic link, including links whose
// target no longer exists. A missing path is not a link.
func IsSymlink(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Errorf("inspecting %q: %w", path, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return true, nil
	}

	// a path reached through a symlinked parent resolves somewhere else; only
	// the final element decides, so compare against the canonical parent
	parent, err := canonical(filepath.Dir(path))
	if err != nil {
		return false, err
	}
	inCanonicalDir := filepath.Join(parent, filepath.Base(path))
	resolved, err := filepath.EvalSymlinks(inCanonicalDir)
	if err != nil {
		return IsBrokenSymlink(inCanonicalDir), nil
	}
	return resolved != inCanonicalDir, nil
}

// IsBrokenSymlink reports whether path is a link whose target cannot be resolved.
func IsBrokenSymlink(path string) bool {
	info, err := os.Lstat(path)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return false
	}
	_, err = os.Stat(path)
	return err != nil
}

// BestEffort runs fn and swallows its error. It is for cleanup steps that must
// never override the outcome of the operation they follow.
func BestEffort(ctx context.Context, what string, fn func() error) bool {
	if err := fn(); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("step", what).Msg("best-effort step failed")
		return false
	}
	return true
}

func copyDirectoryContents(srcDir, destDir string, exclusions map[string]struct{}, preserveTimes bool) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return errors.Errorf("failed to list contents of %q: %w", srcDir, err)
	}

	if info, err := os.Stat(destDir); err == nil {
		if !info.IsDir() {
			return errors.Errorf("destination %q exists but is not a directory", destDir)
		}
	} else if err := os.MkdirAll(destDir, 0o755); err != nil {
		return errors.Errorf("destination %q directory cannot be created: %w", destDir, err)
	}
	if info, err := os.Stat(destDir); err != nil || info.Mode().Perm()&0o200 == 0 {
		return errors.Errorf("destination %q cannot be written to", destDir)
	}

	for _, entry := range entries {
		src := filepath.Join(srcDir, entry.Name())
		dst := filepath.Join(destDir, entry.Name())

		if exclusions != nil {
			canon, err := canonical(src)
			if err != nil {
				return err
			}
			if _, skip := exclusions[canon]; skip {
				continue
			}
		}

		info, err := os.Stat(src)
		if err != nil {
			return errors.Errorf("source %q: %w", src, err)
		}
		if info.IsDir() {
			if err := copyDirectoryContents(src, dst, exclusions, preserveTimes); err != nil {
				return err
			}
			continue
		}
		if err := copyFileContents(src, dst, info, preserveTimes); err != nil {
			return err
		}
	}

	// children were written above, so the directory time is set last
	if preserveTimes {
		srcInfo, err := os.Stat(srcDir)
		if err != nil {
			return errors.Errorf("source %q: %w", srcDir, err)
		}
		if err := os.Chtimes(destDir, time.Now(), srcInfo.ModTime()); err != nil {
			return errors.Errorf("setting modification time on %q: %w", destDir, err)
		}
	}
	return nil
}

func copyFileContents(src, dst string, srcInfo os.FileInfo, preserveTime bool) (err error) {
	if info, statErr := os.Stat(dst); statErr == nil && info.IsDir() {
		return errors.Errorf("destination %q exists but is a directory", dst)
	}

	in, err := os.Open(src)
	if err != nil {
		return errors.Errorf("opening %q: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return errors.Errorf("creating %q: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return errors.Errorf("copying %q to %q: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return errors.Errorf("closing %q: %w", dst, err)
	}

	postCopy(src, dst)

	srcLen, dstLen := int64(-1), int64(-1)
	if info, err := os.Stat(src); err == nil {
		srcLen = info.Size()
	}
	if info, err := os.Stat(dst); err == nil {
		dstLen = info.Size()
	}
	if srcLen != dstLen {
		return errors.Errorf("%w: failed to copy full contents from %q to %q, expected length %d, actual %d",
			ErrIntegrity, src, dst, srcLen, dstLen)
	}

	if preserveTime {
		if err := os.Chtimes(dst, time.Now(), srcInfo.ModTime()); err != nil {
			return errors.Errorf("setting modification time on %q: %w", dst, err)
		}
	}
	return nil
}

func forceDelete(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Errorf("file does not exist: %q", path)
		}
		return errors.Errorf("inspecting %q: %w", path, err)
	}
	if info.IsDir() {
		return DeleteDirectoryRecursive(path)
	}
	if err := os.Remove(path); err != nil {
		return errors.Errorf("unable to delete file %q: %w", path, err)
	}
	return nil
}

func ensureDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Errorf("destination directory %q cannot be created: %w", dir, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return errors.Errorf("destination directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return errors.Errorf("destination %q is not a directory", dir)
	}
	return nil
}

// canonical resolves symlinks in the longest existing prefix of path and
// appends the remainder, so paths that do not exist yet still compare correctly.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Errorf("resolving %q: %w", path, err)
	}

	existing, rest := abs, ""
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			return filepath.Join(resolved, rest), nil
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}
}

// SamePath reports whether a and b resolve to the same location, following
// symlinks in whatever part of each path exists.
func SamePath(a, b string) (bool, error) {
	ca, err := canonical(a)
	if err != nil {
		return false, err
	}
	cb, err := canonical(b)
	if err != nil {
		return false, err
	}
	return ca == cb, nil
}

// isWithin reports whether child is strictly below parent after canonicalization.
func isWithin(parent, child string) (bool, error) {
	cp, err := canonical(parent)
	if err != nil {
		return false, err
	}
	cc, err := canonical(child)
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(cc, cp+string(filepath.Separator)), nil
}
