package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// simulateBuild leaves the outputs cmake would produce in the build directory named by a --build command
func simulateBuild(t *testing.T, cmd Command, version string) {
	line := strings.Join(cmd.Args, " ")
	if !strings.Contains(line, "--build") {
		return
	}

	for _, arch := range []Arch{Arch64, Arch32} {
		if !strings.Contains(line, arch.BuildDir()) {
			continue
		}
		buildDir := filepath.Join(cmd.Dir, arch.BuildDir())
		writeFile(t, filepath.Join(buildDir, "icd", "amdvlk"+string(arch)+".so"), "driver")
		writeFile(t, filepath.Join(buildDir, "spvgen", "spvgen.so"), "spvgen")
		writeFile(t, filepath.Join(buildDir, "compiler", "llpc", "amdllpc"), "amdllpc")
		if strings.Contains(line, "makePackage") {
			writeFile(t, filepath.Join(buildDir, debPackageName(version, arch)), "native")
		}
	}
}

func newBuildRunner(t *testing.T, version string) *fakeRunner {
	return &fakeRunner{handler: func(cmd Command) (CommandResult, error) {
		simulateBuild(t, cmd, version)
		return CommandResult{}, nil
	}}
}

func TestBuildArchLegacyTag(t *testing.T) {
	t.Parallel()

	runner := newBuildRunner(t, "2022.Q2.3")
	w := newTestWorkflow(t, ReleaseOptions{}, runner)
	state := &RunState{Distro: DistroDebian, Tag: "v-2022.Q2.3", Version: "2022.Q2.3", DriverRoot: t.TempDir()}

	artifacts, err := w.buildArch(context.Background(), state, Arch32)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"python3 fetch_external_sources.py",
		"cmake -G Ninja -S xgl -B xgl/Release32 -DBUILD_WAYLAND_SUPPORT=ON -DPACKAGE_VERSION=2022.Q2.3 -DXGL_BUILD_TOOLS=ON -DCMAKE_C_FLAGS=-m32 -march=i686 -DCMAKE_CXX_FLAGS=-m32 -march=i686",
		"cmake --build xgl/Release32",
		"cmake --build xgl/Release32 --target spvgen",
		"cmake --build xgl/Release32 --target amdllpc",
	}, runner.Lines())
	assert.Equal(t, filepath.Join(state.DriverRoot, "spvgen", "external"), runner.commands[0].Dir)

	outDir := filepath.Join(w.options.WorkDir, "out", "32")
	assert.Equal(t, BuildArtifactSet{
		Arch:    Arch32,
		Driver:  filepath.Join(outDir, "amdvlk32.so"),
		Spvgen:  filepath.Join(outDir, "spvgen.so"),
		Amdllpc: filepath.Join(outDir, "amdllpc"),
	}, artifacts)
	assert.FileExists(t, artifacts.Amdllpc)
}

func TestBuildArchCutoverTagSkipsExternalSources(t *testing.T) {
	t.Parallel()

	runner := newBuildRunner(t, "2022.Q3.1")
	w := newTestWorkflow(t, ReleaseOptions{}, runner)
	state := &RunState{Distro: DistroDebian, Tag: "v-2022.Q3.1", Version: "2022.Q3.1", DriverRoot: t.TempDir()}

	_, err := w.buildArch(context.Background(), state, Arch64)
	require.NoError(t, err)
	assert.Equal(t, 0, runner.Count("python3"))
	assert.Equal(t, 1, runner.Count("cmake -G Ninja -S xgl -B xgl/Release64 -DBUILD_WAYLAND_SUPPORT=ON -DPACKAGE_VERSION=2022.Q3.1"))
}

func TestBuildArchRpmUsesToolchainPrefix(t *testing.T) {
	t.Parallel()

	runner := newBuildRunner(t, "2023.Q1.1")
	w := newTestWorkflow(t, ReleaseOptions{ToolchainPrefix: defaultToolchainPrefix}, runner)
	state := &RunState{Distro: DistroRpm, Tag: "v-2023.Q1.1", Version: "2023.Q1.1", DriverRoot: t.TempDir()}

	_, err := w.buildArch(context.Background(), state, Arch64)
	require.NoError(t, err)

	assert.Equal(t, 0, runner.Count("python3"))
	require.Len(t, runner.commands, 4)
	for _, cmd := range runner.commands {
		assert.Equal(t, "bash", cmd.Name)
		assert.True(t, strings.HasPrefix(cmd.Args[1], defaultToolchainPrefix+" && cmake "), cmd.Args[1])
		assert.Equal(t, state.DriverRoot, cmd.Dir)
	}
	assert.NotContains(t, runner.commands[0].Args[1], "-m32")
}

func TestBuildArchMissingOutputs(t *testing.T) {
	t.Parallel()

	w := newTestWorkflow(t, ReleaseOptions{}, &fakeRunner{})
	state := &RunState{Distro: DistroDebian, Tag: "v-2023.Q1.1", Version: "2023.Q1.1", DriverRoot: t.TempDir()}

	_, err := w.buildArch(context.Background(), state, Arch64)
	assert.Equal(t, artifactMissing, errorCodeOf(err))
}

func TestBuildArchCompileFailure(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{handler: func(cmd Command) (CommandResult, error) {
		if strings.Contains(cmd.String(), "--target amdllpc") {
			return CommandResult{ExitCode: 1, Output: "ninja: build stopped: subcommand failed."}, nil
		}
		return CommandResult{}, nil
	}}
	w := newTestWorkflow(t, ReleaseOptions{}, runner)
	state := &RunState{Distro: DistroDebian, Tag: "v-2023.Q1.1", Version: "2023.Q1.1", DriverRoot: t.TempDir()}

	_, err := w.buildArch(context.Background(), state, Arch64)
	assert.Equal(t, externalCommandFailed, errorCodeOf(err))
	assert.Contains(t, err.Error(), "subcommand failed")
}

func TestBuildArchNativePackages(t *testing.T) {
	t.Parallel()

	runner := newBuildRunner(t, "2023.Q1.1")
	w := newTestWorkflow(t, ReleaseOptions{NativePackages: true}, runner)
	state := &RunState{Distro: DistroDebian, Tag: "v-2023.Q1.1", Version: "2023.Q1.1", DriverRoot: t.TempDir()}

	artifacts, err := w.buildArch(context.Background(), state, Arch64)
	require.NoError(t, err)

	assert.Equal(t, 1, runner.Count("cmake --build xgl/Release64 --target makePackage"))
	assert.Equal(t, []string{filepath.Join(w.options.WorkDir, "amdvlk_2023.Q1.1_amd64.deb")}, artifacts.NativePackages)
	assert.FileExists(t, artifacts.NativePackages[0])
}
