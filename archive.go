package main

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/gruntwork-io/go-commons/files"
)

func toolArchiveDir(arch Arch) string {
	return "amdllpc_" + arch.DebArch()
}

func toolArchiveName(arch Arch) string {
	return toolArchiveDir(arch) + ".zip"
}

// archiveTools zips the amdllpc binary of one architecture into <work-dir>/amdllpc_<debarch>.zip
func (w *Workflow) archiveTools(arch Arch, artifacts BuildArtifactSet) (string, error) {
	if !files.FileExists(artifacts.Amdllpc) {
		return "", newErrorf(artifactMissing, "Can not find amdllpc at %s", artifacts.Amdllpc)
	}

	zipPath := filepath.Join(w.options.WorkDir, toolArchiveName(arch))
	if err := writeZip(zipPath, toolArchiveDir(arch), []string{artifacts.Amdllpc}); err != nil {
		return "", err
	}
	w.logger.WithField("arch", arch).Infof("Archived amdllpc to %s", zipPath)
	return zipPath, nil
}

// writeZip creates zipPath holding a single top-level directory with the given files, keeping their modes
func writeZip(zipPath string, topDir string, sources []string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return errors.WithStackTrace(err)
	}
	defer out.Close()

	archive := zip.NewWriter(out)

	if _, err := archive.Create(topDir + "/"); err != nil {
		return errors.WithStackTrace(err)
	}

	for _, src := range sources {
		if err := addFileToZip(archive, topDir+"/"+filepath.Base(src), src); err != nil {
			return err
		}
	}

	if err := archive.Close(); err != nil {
		return errors.WithStackTrace(err)
	}
	return errors.WithStackTrace(out.Close())
}

func addFileToZip(archive *zip.Writer, name string, src string) error {
	file, err := os.Open(src)
	if err != nil {
		return errors.WithStackTrace(err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return errors.WithStackTrace(err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return errors.WithStackTrace(err)
	}
	header.Name = name
	header.Method = zip.Deflate

	writer, err := archive.CreateHeader(header)
	if err != nil {
		return errors.WithStackTrace(err)
	}
	_, err = io.Copy(writer, file)
	return errors.WithStackTrace(err)
}

func shouldListPathInZip(pathPrefix string, zipPath *zip.File) bool {
	// A file matches on its exact name; anything else matches when it sits under pathPrefix + "/"
	zipPathIsFile := !zipPath.FileInfo().IsDir()
	return (zipPathIsFile && zipPath.Name == pathPrefix) || strings.Index(zipPath.Name, pathPrefix+"/") == 0
}

// listFilesInZip returns the names of the regular files under pathPrefix in the archive
func listFilesInZip(zipFilePath string, pathPrefix string) ([]string, error) {
	r, err := zip.OpenReader(zipFilePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var names []string
	for _, f := range r.File {
		if shouldListPathInZip(pathPrefix, f) && !f.FileInfo().IsDir() {
			names = append(names, f.Name)
		}
	}
	return names, nil
}

// verifyToolArchive checks the archive carries the amdllpc binary in its architecture directory
func verifyToolArchive(zipFilePath string, arch Arch) error {
	names, err := listFilesInZip(zipFilePath, toolArchiveDir(arch))
	if err != nil {
		return newErrorf(artifactMissing, "Tool archive %s is unreadable: %s", zipFilePath, err)
	}

	expected := toolArchiveDir(arch) + "/amdllpc"
	for _, name := range names {
		if name == expected {
			return nil
		}
	}
	return newError(artifactMissing, fmt.Sprintf("Tool archive %s does not contain %s", zipFilePath, expected))
}
