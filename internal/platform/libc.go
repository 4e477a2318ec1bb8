package platform

import (
	"bytes"
	"debug/elf"
	"path/filepath"
	"strings"
)

const (
	LibcGlibc = "glibc"
	LibcMusl  = "musl"
)

// ValidLibcTypes lists the recognized libc values.
//   - glibc: GNU C Library (most Linux distributions)
//   - musl: musl libc (Alpine Linux, Void Linux musl variant)
var ValidLibcTypes = []string{LibcGlibc, LibcMusl}

// DetectLibc returns the libc implementation for the current system:
// "glibc", "musl", or "" when detection is inconclusive.
//
// Detection examines the ELF interpreter of /bin/sh, which identifies the
// loader dynamically-linked binaries use. Falls back to looking for the
// dynamic loaders themselves when /bin/sh is static or unreadable.
func DetectLibc() string {
	if libc := detectLibcFromBinary("/bin/sh"); libc != "" {
		return libc
	}
	return DetectLibcWithRoot("")
}

// detectLibcFromBinary reads the ELF interpreter from a binary.
// Returns "" if the file is not ELF, is static, or uses an unknown loader.
func detectLibcFromBinary(path string) string {
	f, err := elf.Open(path)
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()

	for _, prog := range f.Progs {
		if prog.Type == elf.PT_INTERP {
			data := make([]byte, prog.Filesz)
			if _, err := prog.ReadAt(data, 0); err != nil {
				return ""
			}
			return libcFromInterpreter(string(bytes.TrimRight(data, "\x00")))
		}
	}
	// No PT_INTERP means static binary
	return ""
}

func libcFromInterpreter(interp string) string {
	base := filepath.Base(interp)
	switch {
	case strings.Contains(base, "musl"):
		return LibcMusl
	case strings.HasPrefix(base, "ld-linux"), strings.HasPrefix(base, "ld64.so"):
		return LibcGlibc
	default:
		return ""
	}
}

// DetectLibcWithRoot detects libc from the dynamic loaders present under
// root. An empty root uses the real filesystem root.
//
// Exactly one family of loaders must be present; a system carrying both
// (musl compat packages on a glibc host) or neither is ambiguous and
// yields "".
func DetectLibcWithRoot(root string) string {
	if root == "" {
		root = "/"
	}

	// ld-musl-x86_64.so.1, ld-musl-aarch64.so.1, ...
	musl := globAny(
		filepath.Join(root, "lib", "ld-musl-*.so.1"),
	)
	// ld-linux-x86-64.so.2, ld-linux-aarch64.so.1, ...
	glibc := globAny(
		filepath.Join(root, "lib", "ld-linux*.so.*"),
		filepath.Join(root, "lib64", "ld-linux*.so.*"),
	)

	switch {
	case musl && !glibc:
		return LibcMusl
	case glibc && !musl:
		return LibcGlibc
	default:
		return ""
	}
}

func globAny(patterns ...string) bool {
	for _, p := range patterns {
		if matches, _ := filepath.Glob(p); len(matches) > 0 {
			return true
		}
	}
	return false
}
