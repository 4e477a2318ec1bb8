package archive

import (
	"archive/tar"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/sorairolake/lzip-go"
	"github.com/ulikunitz/xz"
)

// ErrExtractionFailed is matched by every error returned from Extract.
var ErrExtractionFailed = errors.New("extraction failed")

// ExtractionError reports a failed extraction. Nothing is left at Dest when
// it is returned.
type ExtractionError struct {
	Archive string
	Dest    string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract %s into %s: %v", filepath.Base(e.Archive), e.Dest, e.Err)
}

func (e *ExtractionError) Unwrap() []error {
	return []error{ErrExtractionFailed, e.Err}
}

// macOS resource fork directories some zip tools add.
const resourceForkDir = "__MACOSX"

// Extract unpacks archivePath into dest, which must not exist yet.
//
// The archive is first unpacked into a sibling staging directory. When the
// archive holds a single top-level directory that wrapper is stripped, and a
// lib64 directory is renamed to lib. The result is then moved to dest in one
// rename. On failure the staging directory is removed and dest is untouched.
func Extract(archivePath, dest string, format Format) error {
	fail := func(err error) error {
		return &ExtractionError{Archive: archivePath, Dest: dest, Err: err}
	}

	if _, err := os.Lstat(dest); err == nil {
		return fail(fmt.Errorf("destination already exists: %w", os.ErrExist))
	} else if !os.IsNotExist(err) {
		return fail(err)
	}

	parent := filepath.Dir(dest)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fail(fmt.Errorf("failed to create parent directory: %w", err))
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(dest)+".extract-")
	if err != nil {
		return fail(fmt.Errorf("failed to create staging directory: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(staging)
		}
	}()

	if err := unpack(archivePath, staging, format); err != nil {
		return fail(err)
	}

	root, err := contentRoot(staging)
	if err != nil {
		return fail(err)
	}
	if err := normalizeLibDir(root); err != nil {
		return fail(err)
	}

	if err := os.Rename(root, dest); err != nil {
		return fail(fmt.Errorf("failed to move extracted files into place: %w", err))
	}
	if root == staging {
		committed = true
	}
	return nil
}

func unpack(archivePath, destPath string, format Format) error {
	switch format {
	case TarGz:
		return extractTarGz(archivePath, destPath)
	case TarXz:
		return extractTarXz(archivePath, destPath)
	case TarZst:
		return extractTarZst(archivePath, destPath)
	case TarLz:
		return extractTarLz(archivePath, destPath)
	case TarBz2:
		return extractTarBz2(archivePath, destPath)
	case Tar:
		return extractTar(archivePath, destPath)
	case Zip:
		return extractZip(archivePath, destPath)
	default:
		return fmt.Errorf("unsupported archive format: %s", format)
	}
}

// contentRoot returns the single wrapper directory inside staging if there
// is one, otherwise staging itself.
func contentRoot(staging string) (string, error) {
	entries, err := os.ReadDir(staging)
	if err != nil {
		return "", fmt.Errorf("failed to read extracted files: %w", err)
	}
	var kept []os.DirEntry
	for _, e := range entries {
		if e.Name() == resourceForkDir {
			if err := os.RemoveAll(filepath.Join(staging, e.Name())); err != nil {
				return "", err
			}
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == 0 {
		return "", fmt.Errorf("archive is empty")
	}
	if len(kept) == 1 && kept[0].IsDir() && kept[0].Type()&os.ModeSymlink == 0 {
		return filepath.Join(staging, kept[0].Name()), nil
	}
	return staging, nil
}

// normalizeLibDir renames root/lib64 to root/lib. If both exist, entries of
// lib64 missing from lib are moved over.
func normalizeLibDir(root string) error {
	lib64 := filepath.Join(root, "lib64")
	info, err := os.Lstat(lib64)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	lib := filepath.Join(root, "lib")
	if _, err := os.Lstat(lib); os.IsNotExist(err) {
		return os.Rename(lib64, lib)
	}

	entries, err := os.ReadDir(lib64)
	if err != nil {
		return err
	}
	for _, e := range entries {
		target := filepath.Join(lib, e.Name())
		if _, err := os.Lstat(target); err == nil {
			continue
		}
		if err := os.Rename(filepath.Join(lib64, e.Name()), target); err != nil {
			return err
		}
	}
	return os.RemoveAll(lib64)
}

func extractTarGz(archivePath, destPath string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzr.Close()

	return extractTarReader(tar.NewReader(gzr), destPath)
}

func extractTarXz(archivePath, destPath string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	xzr, err := xz.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create xz reader: %w", err)
	}

	return extractTarReader(tar.NewReader(xzr), destPath)
}

func extractTarZst(archivePath, destPath string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	zr, err := zstd.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	return extractTarReader(tar.NewReader(zr), destPath)
}

func extractTarLz(archivePath, destPath string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	lr, err := lzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create lzip reader: %w", err)
	}

	return extractTarReader(tar.NewReader(lr), destPath)
}

func extractTarBz2(archivePath, destPath string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	return extractTarReader(tar.NewReader(bzip2.NewReader(file)), destPath)
}

func extractTar(archivePath, destPath string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	return extractTarReader(tar.NewReader(file), destPath)
}

func extractTarReader(tr *tar.Reader, destPath string) error {
	realDest, err := filepath.EvalSymlinks(destPath)
	if err != nil {
		return fmt.Errorf("failed to resolve destination: %w", err)
	}

	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar header: %w", err)
		}

		name := filepath.FromSlash(header.Name)
		if topLevel(name) == resourceForkDir {
			continue
		}
		target := filepath.Join(destPath, name)
		if !isPathWithinDirectory(target, destPath) {
			return fmt.Errorf("archive entry escapes destination: %s", header.Name)
		}
		if filepath.Clean(target) == filepath.Clean(destPath) {
			continue
		}
		realParent, err := resolveParent(target, realDest)
		if err != nil {
			return fmt.Errorf("archive entry %s: %w", header.Name, err)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}

		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(header.Mode)); err != nil {
				return err
			}

		case tar.TypeSymlink:
			if err := validateSymlinkTarget(header.Linkname, target, realParent, realDest); err != nil {
				return err
			}
			if err := createSymlink(header.Linkname, target); err != nil {
				return err
			}

		case tar.TypeLink:
			source := filepath.Join(destPath, filepath.FromSlash(header.Linkname))
			if !isPathWithinDirectory(source, destPath) {
				return fmt.Errorf("hard link target escapes destination: %s -> %s", header.Name, header.Linkname)
			}
			if _, err := resolveParent(source, realDest); err != nil {
				return fmt.Errorf("hard link %s -> %s: %w", header.Name, header.Linkname, err)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("failed to create parent directory: %w", err)
			}
			_ = os.Remove(target)
			if err := os.Link(source, target); err != nil {
				return fmt.Errorf("failed to create hard link: %w", err)
			}

		default:
			// Device nodes, FIFOs and PAX global headers carry nothing we install.
		}
	}
}

func extractZip(archivePath, destPath string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	realDest, err := filepath.EvalSymlinks(destPath)
	if err != nil {
		return fmt.Errorf("failed to resolve destination: %w", err)
	}

	for _, f := range r.File {
		name := filepath.FromSlash(f.Name)
		if topLevel(name) == resourceForkDir {
			continue
		}
		target := filepath.Join(destPath, name)
		if !isPathWithinDirectory(target, destPath) {
			return fmt.Errorf("archive entry escapes destination: %s", f.Name)
		}
		if filepath.Clean(target) == filepath.Clean(destPath) {
			continue
		}
		realParent, err := resolveParent(target, realDest)
		if err != nil {
			return fmt.Errorf("archive entry %s: %w", f.Name, err)
		}

		mode := f.Mode()
		switch {
		case f.FileInfo().IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}

		case mode&os.ModeSymlink != 0:
			linkname, err := readZipEntry(f)
			if err != nil {
				return err
			}
			if err := validateSymlinkTarget(linkname, target, realParent, realDest); err != nil {
				return err
			}
			if err := createSymlink(linkname, target); err != nil {
				return err
			}

		default:
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("failed to open zip entry: %w", err)
			}
			err = writeFile(target, rc, mode)
			rc.Close()
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func readZipEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open zip entry: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, 4096))
	if err != nil {
		return "", fmt.Errorf("failed to read symlink target: %w", err)
	}
	return string(data), nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	perm := mode.Perm() | 0600
	if mode.Perm() == 0 {
		perm = 0644
	}
	_ = os.Remove(target)
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	return out.Close()
}

func createSymlink(linkname, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	_ = os.Remove(target)
	if err := os.Symlink(linkname, target); err != nil {
		return fmt.Errorf("failed to create symlink: %w", err)
	}
	return nil
}

func topLevel(name string) string {
	name = strings.TrimPrefix(name, "."+string(filepath.Separator))
	first, _, _ := strings.Cut(name, string(filepath.Separator))
	return first
}

// isPathWithinDirectory reports whether targetPath is inside basePath after
// cleaning.
func isPathWithinDirectory(targetPath, basePath string) bool {
	cleanTarget := filepath.Clean(targetPath)
	cleanBase := filepath.Clean(basePath)

	if cleanTarget == cleanBase {
		return true
	}
	return strings.HasPrefix(cleanTarget, cleanBase+string(filepath.Separator))
}

// resolveParent returns the on-disk location of target's parent directory
// with every symlink already extracted followed, and fails when that lies
// outside realDest. Missing trailing components are checked through their
// nearest existing ancestor, since MkdirAll creates them as plain
// directories.
func resolveParent(target, realDest string) (string, error) {
	dir := filepath.Dir(target)
	var missing []string
	for {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			if !isPathWithinDirectory(resolved, realDest) {
				return "", fmt.Errorf("path leads outside destination through a symlink")
			}
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("failed to resolve %s: %w", target, err)
		}
		missing = append(missing, filepath.Base(dir))
		dir = parent
	}
}

// validateSymlinkTarget rejects symlinks whose target resolves outside
// realDest. Relative targets are resolved against realParent, the link's
// directory as it exists on disk.
func validateSymlinkTarget(linkTarget, linkLocation, realParent, realDest string) error {
	if filepath.IsAbs(linkTarget) {
		return fmt.Errorf("symlink %s has absolute target %s", linkLocation, linkTarget)
	}

	resolved := filepath.Join(realParent, filepath.FromSlash(linkTarget))
	if !isPathWithinDirectory(resolved, realDest) {
		return fmt.Errorf("symlink %s -> %s escapes destination", linkLocation, linkTarget)
	}
	return nil
}
