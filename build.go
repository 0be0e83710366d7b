package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/gruntwork-io/go-commons/files"
	"github.com/sirupsen/logrus"
)

// BuildArtifactSet holds what one architecture's build produced, copied out of the build directory to
// <work-dir>/out/<arch>. NativePackages are already copied to the work directory.
type BuildArtifactSet struct {
	Arch           Arch
	Driver         string
	Spvgen         string
	Amdllpc        string
	NativePackages []string
}

var m32Flags = []string{"-DCMAKE_C_FLAGS=-m32 -march=i686", "-DCMAKE_CXX_FLAGS=-m32 -march=i686"}

func (w *Workflow) cmake(ctx context.Context, state *RunState, args ...string) error {
	cmd := Command{Name: "cmake", Args: args, Dir: state.DriverRoot}
	if state.Distro.Format == FormatRpm {
		cmd = withToolchainPrefix(w.options.ToolchainPrefix, cmd)
	}
	_, err := runChecked(ctx, w.runner, cmd)
	return err
}

// buildArch configures and compiles the driver for one architecture and collects its outputs
func (w *Workflow) buildArch(ctx context.Context, state *RunState, arch Arch) (BuildArtifactSet, error) {
	logger := w.logger.WithFields(logrus.Fields{"tag": state.Tag, "arch": arch})
	artifacts := BuildArtifactSet{Arch: arch}

	if !w.usesToolsManifest(state.Tag) {
		logger.Infof("Fetching spvgen external sources")
		if _, err := runChecked(ctx, w.runner, Command{
			Name: "python3",
			Args: []string{"fetch_external_sources.py"},
			Dir:  filepath.Join(state.DriverRoot, "spvgen", "external"),
		}); err != nil {
			return artifacts, err
		}
	}

	buildDir := arch.BuildDir()
	absBuildDir := filepath.Join(state.DriverRoot, buildDir)
	if err := os.RemoveAll(absBuildDir); err != nil {
		return artifacts, errors.WithStackTrace(err)
	}
	if err := os.MkdirAll(absBuildDir, 0755); err != nil {
		return artifacts, errors.WithStackTrace(err)
	}

	configure := []string{"-G", "Ninja", "-S", "xgl", "-B", buildDir, "-DBUILD_WAYLAND_SUPPORT=ON", "-DPACKAGE_VERSION=" + state.Version, "-DXGL_BUILD_TOOLS=ON"}
	if arch == Arch32 {
		configure = append(configure, m32Flags...)
	}

	logger.Infof("Configuring %s", buildDir)
	if err := w.cmake(ctx, state, configure...); err != nil {
		return artifacts, err
	}

	logger.Infof("Building amdvlk")
	if err := w.cmake(ctx, state, "--build", buildDir); err != nil {
		return artifacts, err
	}

	targets := []string{"spvgen", "amdllpc"}
	if w.options.NativePackages {
		targets = append(targets, "makePackage")
	}
	for _, target := range targets {
		logger.Infof("Building target %s", target)
		if err := w.cmake(ctx, state, "--build", buildDir, "--target", target); err != nil {
			return artifacts, err
		}
	}

	return w.collectArtifacts(state, arch, absBuildDir)
}

// collectArtifacts copies the build outputs out of the build directory so later stages do not depend on its layout
func (w *Workflow) collectArtifacts(state *RunState, arch Arch, buildDir string) (BuildArtifactSet, error) {
	artifacts := BuildArtifactSet{Arch: arch}

	outDir := filepath.Join(w.options.WorkDir, "out", string(arch))
	if err := os.RemoveAll(outDir); err != nil {
		return artifacts, errors.WithStackTrace(err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return artifacts, errors.WithStackTrace(err)
	}

	outputs := []struct {
		from string
		to   *string
	}{
		{filepath.Join("icd", "amdvlk"+string(arch)+".so"), &artifacts.Driver},
		{filepath.Join("spvgen", "spvgen.so"), &artifacts.Spvgen},
		{filepath.Join("compiler", "llpc", "amdllpc"), &artifacts.Amdllpc},
	}
	for _, output := range outputs {
		src := filepath.Join(buildDir, output.from)
		if !files.FileExists(src) {
			return artifacts, newErrorf(artifactMissing, "Build output %s is missing", src)
		}
		dst := filepath.Join(outDir, filepath.Base(src))
		if err := files.CopyFile(src, dst); err != nil {
			return artifacts, errors.WithStackTrace(err)
		}
		*output.to = dst
	}

	if w.options.NativePackages {
		var natives []string
		for _, pattern := range []string{"*.deb", "*.rpm"} {
			matches, err := filepath.Glob(filepath.Join(buildDir, pattern))
			if err != nil {
				return artifacts, errors.WithStackTrace(err)
			}
			natives = append(natives, matches...)
		}
		if len(natives) == 0 {
			return artifacts, newErrorf(artifactMissing, "makePackage produced no package in %s", buildDir)
		}
		sort.Strings(natives)

		for _, native := range natives {
			dst := filepath.Join(w.options.WorkDir, filepath.Base(native))
			if err := files.CopyFile(native, dst); err != nil {
				return artifacts, errors.WithStackTrace(err)
			}
			artifacts.NativePackages = append(artifacts.NativePackages, dst)
		}
	}

	return artifacts, nil
}
