package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gpuopen-tools/vkrelease/source"
	"github.com/gruntwork-io/go-commons/collections"
	"github.com/gruntwork-io/go-commons/errors"
	"github.com/gruntwork-io/go-commons/files"
)

const releaseNotesFile = "amdvlk_releaseNotes.md"

var releaseNoteHeadings = []string{"New feature and improvement", "Issue fix"}

// formatReleaseNote prepends the installation link and promotes the two known section labels to headings
func formatReleaseNote(targetRepo string, description string) string {
	note := fmt.Sprintf("[Driver installation instruction](%s%s#install-with-pre-built-driver) \n\n", targetRepo, rootRepoName)
	for _, heading := range releaseNoteHeadings {
		description = strings.ReplaceAll(description, heading, "## "+heading)
	}
	return note + description
}

func writeReleaseNotes(workDir string, note string) (string, error) {
	path := filepath.Join(workDir, releaseNotesFile)
	if err := os.WriteFile(path, []byte(note+"\n"), 0644); err != nil {
		return "", errors.WithStackTrace(err)
	}
	return path, nil
}

// plannedAsset is a file the release must carry
type plannedAsset struct {
	Name string
	Kind string
	Arch Arch
}

// expectedAssets lists the release assets in upload order
func expectedAssets(options ReleaseOptions, version string) []plannedAsset {
	assets := []plannedAsset{
		{Name: debPackageName(version, Arch64), Kind: assetKindDeb, Arch: Arch64},
		{Name: debPackageName(version, Arch32), Kind: assetKindDeb, Arch: Arch32},
	}
	if options.RpmAsset {
		assets = append(assets, plannedAsset{Name: rpmPackageName(version), Kind: assetKindRpm, Arch: Arch64})
	}
	if options.ToolsAssets {
		assets = append(assets,
			plannedAsset{Name: toolArchiveName(Arch64), Kind: assetKindTools, Arch: Arch64},
			plannedAsset{Name: toolArchiveName(Arch32), Kind: assetKindTools, Arch: Arch32},
		)
	}
	return assets
}

func assetLabel(labels map[string]string, asset plannedAsset) string {
	if suffix := labels[asset.Kind]; suffix != "" {
		return fmt.Sprintf("%s(%s)", asset.Name, suffix)
	}
	return ""
}

// publish creates the release for the resolved tag and uploads every expected asset. All assets are checked before
// the first request; an upload failure stops the remaining uploads and leaves the created release in place.
func (w *Workflow) publish(ctx context.Context, state *RunState) error {
	logger := w.logger.WithField("tag", state.Tag)
	planned := expectedAssets(w.options, state.Version)

	uploads := make([]source.Asset, 0, len(planned))
	for _, asset := range planned {
		path := filepath.Join(w.options.WorkDir, asset.Name)
		if !files.FileExists(path) {
			return newErrorf(artifactMissing, "Can not find package: %s", path)
		}
		if asset.Kind == assetKindTools {
			if err := verifyToolArchive(path, asset.Arch); err != nil {
				return err
			}
		}
		uploads = append(uploads, source.Asset{Path: path, Name: asset.Name, Label: assetLabel(w.options.AssetLabels, asset)})
	}

	remoteTags, err := w.source.FetchTags(ctx, state.Repo)
	if err != nil {
		return wrapError(hostingApiFailed, fmt.Errorf("Error fetching tags: %w", err))
	}
	if !collections.ListContainsElement(remoteTags, state.Tag) {
		return newErrorf(hostingApiFailed, "Tag %s is not on %s yet, so no release can be created for it", state.Tag, state.Repo.Url)
	}

	note := formatReleaseNote(w.options.TargetRepo, state.Description)
	release, err := w.source.CreateRelease(ctx, state.Repo, source.NewRelease{TagName: state.Tag, Name: state.Tag, Body: note})
	if err != nil {
		return wrapError(hostingApiFailed, fmt.Errorf("Error creating release %s: %w", state.Tag, err))
	}
	state.Release = &release
	logger.Infof("Created release %s at %s", release.Name, release.Url)

	for _, upload := range uploads {
		info, err := os.Stat(upload.Path)
		if err != nil {
			return errors.WithStackTrace(err)
		}
		digest, err := computeChecksum(upload.Path, "sha256")
		if err != nil {
			return errors.WithStackTrace(err)
		}
		logger.Infof("Uploading %s (%s, sha256 %s)", upload.Name, humanize.Bytes(uint64(info.Size())), digest)

		uploaded, err := w.source.UploadReleaseAsset(ctx, state.Repo, release, upload)
		if err != nil {
			return wrapError(hostingApiFailed, fmt.Errorf("Error uploading %s to release %s: %w", upload.Name, state.Tag, err))
		}
		state.Uploaded = append(state.Uploaded, uploaded)
	}

	return nil
}
