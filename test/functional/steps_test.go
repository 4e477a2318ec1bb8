package functional

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tsukumogami/wasmedgeup/internal/config"
	"github.com/tsukumogami/wasmedgeup/internal/userconfig"
	"github.com/tsukumogami/wasmedgeup/internal/version"
)

// aCleanEnvironment points the home directory's config at the scenario's
// release server for both tag listings and downloads. The Before hook
// already created the directory.
func aCleanEnvironment(ctx context.Context) (context.Context, error) {
	state := getState(ctx)
	if state == nil {
		return ctx, fmt.Errorf("no test state; is the Before hook running?")
	}

	ucfg := userconfig.DefaultConfig()
	if err := ucfg.Set("release_base_url", state.server.URL); err != nil {
		return ctx, err
	}
	if err := ucfg.Set("catalog_api_url", state.server.URL+apiPrefix); err != nil {
		return ctx, err
	}
	return ctx, ucfg.SaveFile(config.New(state.homeDir).ConfigFile)
}

// theCatalogPublishes lists the given comma-separated tags on the release
// server and publishes a runtime archive for each.
func theCatalogPublishes(ctx context.Context, list string) (context.Context, error) {
	state := getState(ctx)

	var names []string
	for _, n := range strings.Split(list, ",") {
		names = append(names, strings.TrimSpace(n))
	}
	tags, skipped := version.ParseTags(names)
	if len(skipped) > 0 {
		return ctx, fmt.Errorf("invalid tags: %v", skipped)
	}

	state.server.setTags(names)

	dist := state.server.distribution()
	for _, tag := range tags {
		asset, err := dist.AssetFor(tag, testPlatform)
		if err != nil {
			return ctx, err
		}
		data, err := runtimeArchive(tag.String())
		if err != nil {
			return ctx, err
		}
		state.server.publish(asset.URL, data)
	}
	return ctx, nil
}

func pluginIsPublished(ctx context.Context, name, tagName string) (context.Context, error) {
	state := getState(ctx)

	tag, err := version.ParseTag(tagName)
	if err != nil {
		return ctx, err
	}
	asset, err := state.server.distribution().PluginAssetFor(name, tag, testPlatform)
	if err != nil {
		return ctx, err
	}
	data, err := pluginArchive(name, tag.String())
	if err != nil {
		return ctx, err
	}
	state.server.publish(asset.URL, data)
	return ctx, nil
}

func theChecksumIsCorrupted(ctx context.Context, tagName string) (context.Context, error) {
	state := getState(ctx)

	tag, err := version.ParseTag(tagName)
	if err != nil {
		return ctx, err
	}
	asset, err := state.server.distribution().AssetFor(tag, testPlatform)
	if err != nil {
		return ctx, err
	}
	state.server.corrupt(asset.URL)
	return ctx, nil
}

// iRun executes a command string, replacing "wasmedgeup" with the test
// binary path.
func iRun(ctx context.Context, command string) (context.Context, error) {
	state := getState(ctx)
	if state == nil {
		return ctx, fmt.Errorf("no test state; is the Before hook running?")
	}

	args := strings.Fields(command)
	if len(args) > 0 && args[0] == "wasmedgeup" {
		args[0] = state.binPath
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = append(os.Environ(),
		"WASMEDGEUP_HOME="+state.homeDir,
		"GITHUB_TOKEN=",
		"GH_TOKEN=",
		"SHELL=/bin/bash",
	)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	state.stdout = stdout.String()
	state.stderr = stderr.String()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		state.exitCode = 0
	case errors.As(err, &exitErr):
		state.exitCode = exitErr.ExitCode()
	default:
		return ctx, fmt.Errorf("command execution failed: %w", err)
	}
	return ctx, nil
}

func theExitCodeIs(ctx context.Context, expected int) error {
	state := getState(ctx)
	if state.exitCode != expected {
		return fmt.Errorf("expected exit code %d, got %d\nstdout: %s\nstderr: %s",
			expected, state.exitCode, state.stdout, state.stderr)
	}
	return nil
}

func theExitCodeIsNot(ctx context.Context, notExpected int) error {
	state := getState(ctx)
	if state.exitCode == notExpected {
		return fmt.Errorf("expected exit code to not be %d\nstdout: %s\nstderr: %s",
			notExpected, state.stdout, state.stderr)
	}
	return nil
}

func theOutputContains(ctx context.Context, text string) error {
	state := getState(ctx)
	if !strings.Contains(state.stdout, text) {
		return fmt.Errorf("expected stdout to contain %q, got:\n%s", text, state.stdout)
	}
	return nil
}

func theOutputDoesNotContain(ctx context.Context, text string) error {
	state := getState(ctx)
	if strings.Contains(state.stdout, text) {
		return fmt.Errorf("expected stdout not to contain %q, got:\n%s", text, state.stdout)
	}
	return nil
}

func theErrorOutputContains(ctx context.Context, text string) error {
	state := getState(ctx)
	if !strings.Contains(state.stderr, text) {
		return fmt.Errorf("expected stderr to contain %q, got:\n%s", text, state.stderr)
	}
	return nil
}

func theFileExists(ctx context.Context, path string) error {
	state := getState(ctx)
	fullPath := filepath.Join(state.homeDir, path)
	if _, err := os.Lstat(fullPath); os.IsNotExist(err) {
		return fmt.Errorf("expected file %q to exist", fullPath)
	}
	return nil
}

func theFileDoesNotExist(ctx context.Context, path string) error {
	state := getState(ctx)
	fullPath := filepath.Join(state.homeDir, path)
	if _, err := os.Lstat(fullPath); err == nil {
		return fmt.Errorf("expected file %q not to exist", fullPath)
	}
	return nil
}

func theFileContains(ctx context.Context, path, text string) error {
	state := getState(ctx)
	data, err := os.ReadFile(filepath.Join(state.homeDir, path))
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), text) {
		return fmt.Errorf("expected %s to contain %q, got:\n%s", path, text, data)
	}
	return nil
}
