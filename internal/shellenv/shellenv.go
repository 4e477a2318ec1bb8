// Package shellenv renders the scripts that put the active WasmEdge
// installation on a shell's search paths.
package shellenv

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tsukumogami/wasmedgeup/internal/platform"
)

// Kind is a family of shells sharing one script syntax.
type Kind string

const (
	Posix      Kind = "posix" // sh, bash, zsh, dash, ksh
	Fish       Kind = "fish"
	Nu         Kind = "nu"
	PowerShell Kind = "powershell"
)

// Kinds lists every supported kind.
var Kinds = []Kind{Posix, Fish, Nu, PowerShell}

// PluginPathEnv is read by the runtime to locate plugins.
const PluginPathEnv = "WASMEDGE_PLUGIN_PATH"

// ErrUnsafePath is returned when a path cannot be embedded in a script
// without quoting problems.
var ErrUnsafePath = errors.New("path contains shell metacharacters")

// Paths are the directories of the active installation.
type Paths struct {
	BinDir    string
	LibDir    string
	PluginDir string
}

// KindsFor returns the kinds whose scripts are written on goos.
func KindsFor(goos string) []Kind {
	if goos == platform.OSWindows {
		return []Kind{PowerShell}
	}
	return Kinds
}

// ParseKind maps a shell name such as "bash" or "pwsh" to its Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "posix", "sh", "bash", "zsh", "dash", "ksh", "ash":
		return Posix, nil
	case "fish":
		return Fish, nil
	case "nu", "nushell":
		return Nu, nil
	case "powershell", "pwsh":
		return PowerShell, nil
	default:
		return "", fmt.Errorf("unsupported shell %q (supported: sh, bash, zsh, fish, nu, powershell)", name)
	}
}

// DetectKind maps a shell executable path, typically $SHELL, to a Kind.
// Unknown or empty paths are treated as POSIX.
func DetectKind(shellPath string) Kind {
	base := strings.ToLower(filepath.Base(strings.ReplaceAll(shellPath, `\`, "/")))
	base = strings.TrimSuffix(base, ".exe")
	if k, err := ParseKind(base); err == nil {
		return k
	}
	return Posix
}

// ScriptName returns the file name of the script for k under the home
// directory.
func ScriptName(k Kind) string {
	switch k {
	case Fish:
		return "env.fish"
	case Nu:
		return "env.nu"
	case PowerShell:
		return "env.ps1"
	default:
		return "env"
	}
}

// SourceLine returns the line a user adds to their profile to load the
// script at scriptPath.
func SourceLine(k Kind, scriptPath string) string {
	switch k {
	case Fish:
		return fmt.Sprintf("source \"%s\"", scriptPath)
	case Nu:
		return fmt.Sprintf("source-env \"%s\"", scriptPath)
	case PowerShell:
		return fmt.Sprintf(". '%s'", scriptPath)
	default:
		return fmt.Sprintf("if [ -f \"%[1]s\" ]; then . \"%[1]s\"; fi", scriptPath)
	}
}

const header = "# Generated by wasmedgeup. Changes are overwritten when the active version changes.\n"

const posixPrepend = `case ":${@VAR@}:" in
    *:"@DIR@":*) ;;
    *) export @VAR@="@DIR@${@VAR@:+:${@VAR@}}" ;;
esac
`

const posixPlugin = `if [ -z "${@VAR@:-}" ]; then
    export @VAR@="@DIR@"
fi
`

const fishPrepend = `if not contains -- "@DIR@" $@VAR@
    set -gx @VAR@ "@DIR@" $@VAR@
end
`

const fishPlugin = `if not set -q @VAR@
    set -gx @VAR@ "@DIR@"
end
`

// Nushell keeps PATH as a list but may still hold a string when inherited
// unconverted; library paths are joined back into a string for the
// dynamic loader.
const nuPrepend = `$env.@VAR@ = (
    $env.@VAR@? | default []
    | if ($in | describe) == "string" { $in | split row (char esep) } else { $in }
    | if "@DIR@" in $in { $in } else { $in | prepend "@DIR@" }
)
`

const nuLibPrepend = `$env.@VAR@ = (
    $env.@VAR@? | default []
    | if ($in | describe) == "string" { $in | split row (char esep) } else { $in }
    | if "@DIR@" in $in { $in } else { $in | prepend "@DIR@" }
    | str join (char esep)
)
`

const nuPlugin = `if ($env.@VAR@? == null) {
    $env.@VAR@ = "@DIR@"
}
`

const powershellPrepend = `if (-not ((("$env:@VAR@") -split '@SEP@') -contains '@DIR@')) {
    if ($env:@VAR@) { $env:@VAR@ = '@DIR@' + '@SEP@' + $env:@VAR@ } else { $env:@VAR@ = '@DIR@' }
}
`

const powershellPlugin = `if (-not $env:@VAR@) {
    $env:@VAR@ = '@DIR@'
}
`

// Render produces the environment script of kind k for an installation on
// goos. The binary directory and, outside Windows, the library directory
// are prepended to their search paths when missing. The plugin path is set
// only when the user has not set it.
func Render(k Kind, goos string, p Paths) (string, error) {
	var prepend, plugin string
	switch k {
	case Posix:
		prepend, plugin = posixPrepend, posixPlugin
	case Fish:
		prepend, plugin = fishPrepend, fishPlugin
	case Nu:
		prepend, plugin = nuPrepend, nuPlugin
	case PowerShell:
		prepend, plugin = powershellPrepend, powershellPlugin
	default:
		return "", fmt.Errorf("unsupported shell kind %q", k)
	}
	libPrepend := prepend
	if k == Nu {
		libPrepend = nuLibPrepend
	}

	for _, dir := range []string{p.BinDir, p.LibDir, p.PluginDir} {
		if err := checkPath(k, goos, dir); err != nil {
			return "", err
		}
	}

	sep := ":"
	if goos == platform.OSWindows {
		sep = ";"
	}
	fill := func(tmpl, variable, dir string) string {
		return strings.NewReplacer("@VAR@", variable, "@DIR@", dir, "@SEP@", sep).Replace(tmpl)
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString(fill(prepend, "PATH", p.BinDir))
	if libVar := platform.SharedLibraryEnv(goos); libVar != "" && p.LibDir != "" {
		b.WriteString(fill(libPrepend, libVar, p.LibDir))
	}
	if p.PluginDir != "" {
		b.WriteString(fill(plugin, PluginPathEnv, p.PluginDir))
	}
	return b.String(), nil
}

func checkPath(k Kind, goos, dir string) error {
	if dir == "" {
		return nil
	}
	bad := "\"'$`\n\r\x00"
	if k != PowerShell {
		bad += `\`
	}
	if goos == platform.OSWindows {
		bad += ";"
	} else {
		bad += ":"
	}
	if strings.ContainsAny(dir, bad) {
		return fmt.Errorf("%w: %q", ErrUnsafePath, dir)
	}
	return nil
}
