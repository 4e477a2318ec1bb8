// Package archive unpacks release artifacts into a directory tree.
package archive

import (
	"fmt"
	"strings"
)

// Format identifies an archive container and compression.
type Format int

const (
	Unknown Format = iota
	TarGz
	Zip
	TarXz
	TarZst
	TarLz
	TarBz2
	Tar
)

var formatNames = map[Format]string{
	TarGz:  "tar.gz",
	Zip:    "zip",
	TarXz:  "tar.xz",
	TarZst: "tar.zst",
	TarLz:  "tar.lz",
	TarBz2: "tar.bz2",
	Tar:    "tar",
}

// String returns the canonical hint for the format (e.g. "tar.gz").
func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return "unknown"
}

// Extension returns the canonical filename extension including the dot.
func (f Format) Extension() string {
	if f == Unknown {
		return ""
	}
	return "." + f.String()
}

// suffixes maps filename suffixes to formats. Longer suffixes come first
// so ".tar.gz" wins over ".tar".
var suffixes = []struct {
	suffix string
	format Format
}{
	{".tar.gz", TarGz},
	{".tgz", TarGz},
	{".tar.xz", TarXz},
	{".txz", TarXz},
	{".tar.zst", TarZst},
	{".tzst", TarZst},
	{".tar.lz", TarLz},
	{".tlz", TarLz},
	{".tar.bz2", TarBz2},
	{".tbz2", TarBz2},
	{".tbz", TarBz2},
	{".tar", Tar},
	{".zip", Zip},
}

// DetectFormat selects a format from a filename's extension.
func DetectFormat(filename string) (Format, bool) {
	lower := strings.ToLower(filename)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.format, true
		}
	}
	return Unknown, false
}

// ParseFormat parses an explicit format hint such as "tar.gz", "tgz" or
// "zip". A leading dot is accepted.
func ParseFormat(hint string) (Format, error) {
	h := strings.ToLower(strings.TrimSpace(hint))
	if h == "" {
		return Unknown, fmt.Errorf("empty archive format")
	}
	if !strings.HasPrefix(h, ".") {
		h = "." + h
	}
	for _, s := range suffixes {
		if h == s.suffix {
			return s.format, nil
		}
	}
	return Unknown, fmt.Errorf("unsupported archive format: %s", hint)
}
