package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gpuopen-tools/vkrelease/source"
	commonerrors "github.com/gruntwork-io/go-commons/errors"
	"github.com/sirupsen/logrus"
)

// RunState is everything one run learns along the way. Each stage reads what earlier stages recorded and adds its
// own results.
type RunState struct {
	Distro      Distribution
	Repo        source.Repo
	Released    []string
	Tag         string
	Version     string
	Description string

	// RootDir is the AMDVLK checkout; DriverRoot is the directory holding xgl, pal and the other components
	RootDir    string
	DriverRoot string
	Revisions  ComponentRevisions

	Changelog    string
	Artifacts    map[Arch]BuildArtifactSet
	Packages     []string
	ToolArchives []string
	ReleaseNotes string
	Release      *source.Release
	Uploaded     []source.ReleaseAsset
}

// Workflow runs the release stages in order against one work directory. Runs sharing a work directory must be
// serialized by the caller.
type Workflow struct {
	options   ReleaseOptions
	runner    CommandRunner
	source    source.Source
	logger    *logrus.Entry
	osRelease string
}

// NewWorkflow wires the stages together. When src is nil the hosting source is picked from --source and the target repo.
func NewWorkflow(options ReleaseOptions, runner CommandRunner, src source.Source) (*Workflow, error) {
	logger := options.Logger
	if logger == nil {
		logger = GetProjectLogger()
	}

	if src == nil {
		sourceType, err := source.ParseSourceType(options.SourceType)
		if err != nil {
			return nil, wrapError(invalidOption, err)
		}
		src, err = source.GetSource(options.TargetRepo, sourceType, source.Config{ApiVersion: options.GithubApiVersion, Logger: logger})
		if err != nil {
			return nil, wrapError(invalidOption, fmt.Errorf("Failed to create source: %s", err))
		}
	}

	return &Workflow{
		options:   options,
		runner:    runner,
		source:    src,
		logger:    logger,
		osRelease: osReleasePath,
	}, nil
}

func (w *Workflow) srcDir() string {
	return filepath.Join(w.options.WorkDir, "amdvlk_src")
}

// usesToolsManifest reports whether the tag is at or after the cutover tag, from which on the root repository pins
// its components in build_with_tools.xml and describes the release in the tag annotation
func (w *Workflow) usesToolsManifest(tag string) bool {
	return !isTagNewer(w.options.CutoverTag, tag)
}

func (w *Workflow) building() bool {
	return w.options.Type == RunBuild || w.options.Type == RunAll
}

func (w *Workflow) releasing() bool {
	return w.options.Type == RunRelease || w.options.Type == RunAll
}

// Run executes the whole workflow. A tag that is already released ends the run with errNothingToRelease before
// anything is built.
func (w *Workflow) Run(ctx context.Context) error {
	state := &RunState{Artifacts: map[Arch]BuildArtifactSet{}}

	if err := w.detectDistribution(ctx, state); err != nil {
		return err
	}
	w.logger.Infof("Packaging for %s (%s)", state.Distro.Name, state.Distro.Format)

	if err := w.connectSource(ctx, state); err != nil {
		return err
	}

	if err := os.MkdirAll(w.srcDir(), 0755); err != nil {
		return commonerrors.WithStackTrace(err)
	}

	strategy := newSyncStrategy(w)
	tags, err := strategy.SyncRoot(ctx, state)
	if err != nil {
		return err
	}

	tag, err := resolveTag(w.options.BuildTag, tags, state.Released)
	if errors.Is(err, errNothingToRelease) {
		w.logger.Infof("All of the tags are released! %s has a release already", tag)
		return err
	}
	if err != nil {
		return err
	}
	state.Tag = tag
	state.Version = tagVersion(tag)
	logger := w.logger.WithField("tag", tag)
	logger.Infof("Working on %s with version %s", tag, state.Version)

	if err := strategy.CheckoutTag(ctx, state); err != nil {
		return err
	}

	if w.building() {
		if err := strategy.SyncComponents(ctx, state); err != nil {
			return err
		}
		if err := w.build(ctx, state); err != nil {
			return err
		}
		logger.Infof("The packages are generated successfully for %s", tag)
	}

	if w.releasing() {
		if err := w.publish(ctx, state); err != nil {
			return err
		}
		logger.Infof("Released %s successfully", tag)
	}

	return nil
}

func (w *Workflow) detectDistribution(ctx context.Context, state *RunState) error {
	var err error
	if w.options.Distro != "" {
		state.Distro, err = ParseDistribution(w.options.Distro)
	} else {
		state.Distro, err = DetectDistribution(ctx, w.runner, w.osRelease, w.logger)
	}
	return err
}

// connectSource resolves the AMDVLK repository on the hosting service and lists the tags released there already
func (w *Workflow) connectSource(ctx context.Context, state *RunState) error {
	repoUrl := source.RepoUrl(w.options.TargetRepo, rootRepoName)
	w.logger.Infof("Using %s source for %s", w.source.Type(), repoUrl)

	repo, err := w.source.ParseUrl(repoUrl, w.options.AccessToken)
	if err != nil {
		return wrapError(invalidOption, fmt.Errorf("Error parsing repo URL: %s", err))
	}
	state.Repo = repo

	released, err := w.source.FetchReleasedTags(ctx, repo)
	if err != nil {
		return wrapError(hostingApiFailed, fmt.Errorf("Error fetching releases: %w", err))
	}
	for _, tag := range released {
		w.logger.Debugf("%s is released already", tag)
	}
	state.Released = released
	return nil
}

// build runs the build, packaging and archiving stages for every architecture of the distribution
func (w *Workflow) build(ctx context.Context, state *RunState) error {
	changelog, err := w.prepareChangelog(state)
	if err != nil {
		return err
	}
	state.Changelog = changelog

	for _, arch := range state.Distro.Archs {
		logger := w.logger.WithFields(logrus.Fields{"tag": state.Tag, "arch": arch})

		artifacts, err := w.buildArch(ctx, state, arch)
		if err != nil {
			return err
		}
		state.Artifacts[arch] = artifacts

		if w.options.NativePackages {
			state.Packages = append(state.Packages, artifacts.NativePackages...)
		} else {
			pkg, err := w.assemblePackage(ctx, state, arch, artifacts)
			if err != nil {
				return err
			}
			logger.Infof("Package %s is generated", filepath.Base(pkg))
			state.Packages = append(state.Packages, pkg)
		}

		if state.Distro.Format == FormatDeb {
			archive, err := w.archiveTools(arch, artifacts)
			if err != nil {
				return err
			}
			state.ToolArchives = append(state.ToolArchives, archive)
		}
	}

	if state.Distro.Format == FormatDeb {
		notes, err := writeReleaseNotes(w.options.WorkDir, formatReleaseNote(w.options.TargetRepo, state.Description))
		if err != nil {
			return err
		}
		state.ReleaseNotes = notes
	}

	return nil
}
