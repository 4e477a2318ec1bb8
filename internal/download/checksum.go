package download

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// ParseChecksum extracts a SHA-256 digest from checksum file content.
// Supports formats:
//   - Just the checksum: "abc123..."
//   - Checksum + filename: "abc123...  WasmEdge-0.14.1-manylinux_2_28_x86_64.tar.gz"
//   - Multi-line SHA256SUMS style, where the line naming filename is used
//
// The "*" binary marker before a filename is accepted.
func ParseChecksum(content, filename string) (string, error) {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("checksum file is empty")
	}

	if filename != "" && len(lines) > 1 {
		for _, line := range lines {
			fields := strings.Fields(line)
			if len(fields) >= 2 && strings.TrimPrefix(fields[len(fields)-1], "*") == filename {
				return normalizeDigest(fields[0])
			}
		}
		return "", fmt.Errorf("checksum not found for file %q in checksum file", filename)
	}

	fields := strings.Fields(lines[0])
	if len(fields) >= 2 && filename != "" && strings.TrimPrefix(fields[len(fields)-1], "*") != filename {
		return "", fmt.Errorf("checksum file names %q, expected %q", fields[len(fields)-1], filename)
	}
	return normalizeDigest(fields[0])
}

// normalizeDigest lowercases a digest, strips an algorithm prefix such as
// "sha256:", and checks it is 64 hex characters.
func normalizeDigest(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if idx := strings.Index(s, ":"); idx != -1 {
		s = s[idx+1:]
	}
	if len(s) != sha256.Size*2 {
		return "", fmt.Errorf("invalid sha256 digest %q", s)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("invalid sha256 digest %q", s)
	}
	return s, nil
}

// Verify hashes r and compares the result to expected.
func Verify(r io.Reader, expected string) error {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return fmt.Errorf("failed to hash: %w", err)
	}
	return VerifyDigest(hex.EncodeToString(h.Sum(nil)), expected)
}

// VerifyDigest compares two hex digests case-insensitively, ignoring
// algorithm prefixes.
func VerifyDigest(actual, expected string) error {
	want, err := normalizeDigest(expected)
	if err != nil {
		return err
	}
	got := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(actual)), "sha256:")
	if got != want {
		return &ChecksumMismatchError{Expected: want, Actual: got}
	}
	return nil
}
