package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/gruntwork-io/go-commons/files"
	"github.com/sirupsen/logrus"
)

const docDir = "usr/share/doc/amdvlk"
const icdDir = "etc/vulkan/icd.d"
const implicitLayerDir = "etc/vulkan/implicit_layer.d"

// stagedFile is one file copied into a staging tree. Stripped files get their symbols removed afterwards.
type stagedFile struct {
	from  string
	to    string
	strip bool
}

func debPackageName(version string, arch Arch) string {
	return fmt.Sprintf("amdvlk_%s_%s.deb", version, arch.DebArch())
}

func rpmPackageBase(version string) string {
	return fmt.Sprintf("amdvlk-%s-el.x86_64", version)
}

func rpmPackageName(version string) string {
	return rpmPackageBase(version) + ".rpm"
}

// prepareChangelog writes the changelog once per run. Both architectures ship the same gzip bytes, so the gzip
// header carries no name and no timestamp.
func (w *Workflow) prepareChangelog(state *RunState) (string, error) {
	sharedDir := filepath.Join(w.options.WorkDir, "pkgShared")
	if err := os.RemoveAll(sharedDir); err != nil {
		return "", errors.WithStackTrace(err)
	}
	if err := os.MkdirAll(sharedDir, 0755); err != nil {
		return "", errors.WithStackTrace(err)
	}

	text, err := RenderChangelog(ChangelogFields{
		Version:     state.Version,
		Tag:         state.Tag,
		TargetRepo:  w.options.TargetRepo,
		Description: state.Description,
		Revisions:   state.Revisions,
	})
	if err != nil {
		return "", errors.WithStackTrace(err)
	}
	if err := os.WriteFile(filepath.Join(sharedDir, "changelog"), text, 0644); err != nil {
		return "", errors.WithStackTrace(err)
	}

	compressed, err := gzipBytes(text)
	if err != nil {
		return "", err
	}
	changelog := filepath.Join(sharedDir, "changelog.Debian.gz")
	if err := os.WriteFile(changelog, compressed, 0644); err != nil {
		return "", errors.WithStackTrace(err)
	}

	// makePackage picks the changelog up from the xgl tree
	if xglDir := filepath.Join(state.DriverRoot, "xgl"); files.FileExists(xglDir) {
		if err := files.CopyFile(changelog, filepath.Join(xglDir, "changelog.Debian.gz")); err != nil {
			return "", errors.WithStackTrace(err)
		}
	}

	return changelog, nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, errors.WithStackTrace(err)
	}
	if _, err := writer.Write(data); err != nil {
		return nil, errors.WithStackTrace(err)
	}
	if err := writer.Close(); err != nil {
		return nil, errors.WithStackTrace(err)
	}
	return buf.Bytes(), nil
}

// assemblePackage builds the installable package for one architecture in the format of the distribution
func (w *Workflow) assemblePackage(ctx context.Context, state *RunState, arch Arch, artifacts BuildArtifactSet) (string, error) {
	if state.Distro.Format == FormatRpm {
		return w.assembleRpm(ctx, state, artifacts)
	}
	return w.assembleDeb(ctx, state, arch, artifacts)
}

// stageTree recreates root with the given directories, checks every source exists, then copies and strips them.
// Nothing is created and no tool runs when a source is missing.
func (w *Workflow) stageTree(ctx context.Context, root string, dirs []string, staged []stagedFile) error {
	for _, file := range staged {
		if !files.FileExists(file.from) {
			return newErrorf(artifactMissing, "Can not find %s for %s", file.from, filepath.Base(file.to))
		}
	}

	if err := os.RemoveAll(root); err != nil {
		return errors.WithStackTrace(err)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			return errors.WithStackTrace(err)
		}
	}

	for _, file := range staged {
		dst := filepath.Join(root, file.to)
		if err := files.CopyFile(file.from, dst); err != nil {
			return errors.WithStackTrace(err)
		}
		if file.strip {
			if _, err := runChecked(ctx, w.runner, Command{Name: "strip", Args: []string{file.to}, Dir: root}); err != nil {
				return err
			}
		}
	}

	return errors.WithStackTrace(os.WriteFile(filepath.Join(root, docDir, "copyright"), []byte(copyrightText), 0644))
}

// implicitLayers lists the implicit layer descriptors the AMDVLK checkout carries for this distribution, if any
func implicitLayers(state *RunState) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(state.RootDir, state.Distro.IcdJson, "implicit_layer.d", "*.json"))
	return matches, errors.WithStackTrace(err)
}

func (w *Workflow) assembleDeb(ctx context.Context, state *RunState, arch Arch, artifacts BuildArtifactSet) (string, error) {
	logger := w.logger.WithFields(logrus.Fields{"tag": state.Tag, "arch": arch, "format": FormatDeb})

	staging := filepath.Join(w.options.WorkDir, "amdvlk_pkg"+string(arch))
	libDir := arch.DebLibDir()
	icdName := "amd_icd" + string(arch) + ".json"

	staged := []stagedFile{
		{from: artifacts.Driver, to: filepath.Join(libDir, filepath.Base(artifacts.Driver)), strip: true},
		{from: artifacts.Spvgen, to: filepath.Join(libDir, filepath.Base(artifacts.Spvgen)), strip: true},
		{from: filepath.Join(state.RootDir, state.Distro.IcdJson, icdName), to: filepath.Join(icdDir, icdName)},
		{from: state.Changelog, to: filepath.Join(docDir, "changelog.Debian.gz")},
	}
	layers, err := implicitLayers(state)
	if err != nil {
		return "", err
	}
	for _, layer := range layers {
		staged = append(staged, stagedFile{from: layer, to: filepath.Join(implicitLayerDir, filepath.Base(layer))})
	}

	logger.Infof("Staging %s", staging)
	if err := w.stageTree(ctx, staging, []string{libDir, icdDir, implicitLayerDir, docDir, "DEBIAN"}, staged); err != nil {
		return "", err
	}

	controlFile, err := RenderControl(PackageFields{Version: state.Version, Arch: arch.DebArch(), Maintainer: w.options.Maintainer})
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(staging, "DEBIAN", "control"), controlFile, 0644); err != nil {
		return "", errors.WithStackTrace(err)
	}
	if err := writeMd5sums(staging); err != nil {
		return "", err
	}

	pkg := filepath.Join(w.options.WorkDir, debPackageName(state.Version, arch))
	if _, err := runChecked(ctx, w.runner, Command{
		Name: "dpkg-deb",
		Args: []string{"--root-owner-group", "--build", staging, pkg},
		Dir:  w.options.WorkDir,
	}); err != nil {
		return "", err
	}
	return pkg, nil
}

func (w *Workflow) assembleRpm(ctx context.Context, state *RunState, artifacts BuildArtifactSet) (string, error) {
	logger := w.logger.WithFields(logrus.Fields{"tag": state.Tag, "arch": artifacts.Arch, "format": FormatRpm})

	topDir := filepath.Join(w.options.WorkDir, "rpmbuild")
	base := rpmPackageBase(state.Version)
	buildRoot := filepath.Join(topDir, "BUILDROOT", base)

	staged := []stagedFile{
		{from: artifacts.Driver, to: filepath.Join("usr/lib64", filepath.Base(artifacts.Driver)), strip: true},
		{from: artifacts.Spvgen, to: filepath.Join("usr/lib64", filepath.Base(artifacts.Spvgen)), strip: true},
		{from: filepath.Join(state.RootDir, state.Distro.IcdJson, "amd_icd64.json"), to: filepath.Join(icdDir, "amd_icd64.json")},
	}

	logger.Infof("Staging %s", buildRoot)
	if err := os.RemoveAll(topDir); err != nil {
		return "", errors.WithStackTrace(err)
	}
	if err := w.stageTree(ctx, buildRoot, []string{"usr/lib64", icdDir, docDir}, staged); err != nil {
		return "", err
	}

	spec, err := RenderRpmSpec(PackageFields{Version: state.Version, Arch: "x86_64", Maintainer: w.options.Maintainer})
	if err != nil {
		return "", errors.WithStackTrace(err)
	}
	specsDir := filepath.Join(topDir, "SPECS")
	if err := os.MkdirAll(specsDir, 0755); err != nil {
		return "", errors.WithStackTrace(err)
	}
	if err := os.WriteFile(filepath.Join(specsDir, "amdvlk.spec"), spec, 0644); err != nil {
		return "", errors.WithStackTrace(err)
	}

	if _, err := runChecked(ctx, w.runner, Command{
		Name: "rpmbuild",
		Args: []string{"-bb", "--define", "_topdir " + topDir, "--buildroot", buildRoot, filepath.Join("SPECS", "amdvlk.spec")},
		Dir:  topDir,
	}); err != nil {
		return "", err
	}

	built := filepath.Join(topDir, "RPMS", "x86_64", rpmPackageName(state.Version))
	if !files.FileExists(built) {
		return "", newErrorf(artifactMissing, "rpmbuild did not produce %s", built)
	}
	pkg := filepath.Join(w.options.WorkDir, rpmPackageName(state.Version))
	if err := files.CopyFile(built, pkg); err != nil {
		return "", errors.WithStackTrace(err)
	}
	return pkg, nil
}
