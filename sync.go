package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/gruntwork-io/go-commons/files"
)

// syncStrategy brings the root repository and the components to the revisions pinned for a tag. SyncRoot must run
// first; it reports the tags of the root repository so the caller can resolve one before anything is checked out.
type syncStrategy interface {
	SyncRoot(ctx context.Context, state *RunState) ([]string, error)
	CheckoutTag(ctx context.Context, state *RunState) error
	SyncComponents(ctx context.Context, state *RunState) error
}

func newSyncStrategy(w *Workflow) syncStrategy {
	if w.options.ManifestStrategy == StrategyFlat {
		return &flatSync{w: w}
	}
	return &repoSync{w: w}
}

// checkoutComponents cleans every component working copy and checks out its pinned revision
func checkoutComponents(ctx context.Context, w *Workflow, revs ComponentRevisions) error {
	for _, rev := range revs {
		w.logger.WithField("component", rev.Name).Infof("Checking out %s", rev.Revision)
		repo := gitRepo{runner: w.runner, dir: filepath.Join(w.srcDir(), rev.Path)}
		if err := repo.Clean(ctx); err != nil {
			return err
		}
		if err := repo.Checkout(ctx, rev.Revision); err != nil {
			return err
		}
	}
	return nil
}

// flatSync clones the root and every component side by side and reads the revisions from default.xml
type flatSync struct {
	w *Workflow
}

func (s *flatSync) SyncRoot(ctx context.Context, state *RunState) ([]string, error) {
	srcDir := s.w.srcDir()
	rootDir := filepath.Join(srcDir, rootRepoName)

	if err := os.RemoveAll(rootDir); err != nil {
		return nil, errors.WithStackTrace(err)
	}
	if err := cloneRepo(ctx, s.w.runner, s.w.options.TargetRepo+rootRepoName, srcDir); err != nil {
		return nil, err
	}

	state.DriverRoot = srcDir
	state.RootDir = rootDir
	return gitRepo{runner: s.w.runner, dir: rootDir}.Tags(ctx)
}

func (s *flatSync) CheckoutTag(ctx context.Context, state *RunState) error {
	root := gitRepo{runner: s.w.runner, dir: state.RootDir}
	if err := root.Checkout(ctx, state.Tag); err != nil {
		return err
	}

	description, err := root.CommitMessage(ctx, "HEAD")
	if err != nil {
		return err
	}
	state.Description = description
	return nil
}

func (s *flatSync) SyncComponents(ctx context.Context, state *RunState) error {
	srcDir := s.w.srcDir()

	manifestPath := filepath.Join(state.RootDir, "default.xml")
	content, err := os.ReadFile(manifestPath)
	if os.IsNotExist(err) {
		return newErrorf(manifestNotFound, "Manifest file: %s not found!", manifestPath)
	}
	if err != nil {
		return errors.WithStackTrace(err)
	}

	tracked := s.w.options.Components
	revs := ParseFlatManifest(string(content), tracked)
	if err := revs.requireComponents(tracked, manifestPath); err != nil {
		return err
	}

	for _, name := range tracked {
		componentDir := filepath.Join(srcDir, name)
		if files.FileExists(componentDir) {
			s.w.logger.WithField("component", name).Debugf("Fetching %s", componentDir)
			if err := (gitRepo{runner: s.w.runner, dir: componentDir}).Fetch(ctx); err != nil {
				return err
			}
			continue
		}
		s.w.logger.WithField("component", name).Infof("Downloading %s%s", s.w.options.TargetRepo, name)
		if err := cloneRepo(ctx, s.w.runner, s.w.options.TargetRepo+name, srcDir); err != nil {
			return err
		}
	}

	var ordered ComponentRevisions
	for _, name := range tracked {
		rev, _ := revs.Get(name)
		ordered = append(ordered, rev)
	}
	state.Revisions = ordered

	return checkoutComponents(ctx, s.w, ordered)
}

// repoSync drives the repo tool against the manifest repository and reads the revisions from the tag's manifest
type repoSync struct {
	w *Workflow
}

const repoInitManifest = "build_with_tools.xml"

func (s *repoSync) SyncRoot(ctx context.Context, state *RunState) ([]string, error) {
	srcDir := s.w.srcDir()
	runner := s.w.runner

	if _, err := runChecked(ctx, runner, Command{
		Name: "repo",
		Args: []string{"init", "-u", s.w.options.TargetRepo + rootRepoName, "-b", "master", "-m", repoInitManifest},
		Dir:  srcDir,
	}); err != nil {
		return nil, err
	}
	if _, err := runChecked(ctx, runner, Command{Name: "repo", Args: []string{"sync", "-j" + strconv.Itoa(s.w.options.Jobs)}, Dir: srcDir}); err != nil {
		return nil, err
	}

	result, err := runChecked(ctx, runner, Command{Name: "repo", Args: []string{"list", "--path-only", rootRepoName}, Dir: srcDir})
	if err != nil {
		return nil, err
	}
	rootPath := strings.TrimSpace(result.Output)
	if rootPath == "" {
		return nil, newErrorf(manifestMalformed, "repo does not know a %s project", rootRepoName)
	}

	state.RootDir = filepath.Join(srcDir, rootPath)
	state.DriverRoot = filepath.Dir(state.RootDir)
	return gitRepo{runner: runner, dir: state.RootDir}.Tags(ctx)
}

func (s *repoSync) CheckoutTag(ctx context.Context, state *RunState) error {
	root := gitRepo{runner: s.w.runner, dir: state.RootDir}
	if err := root.Checkout(ctx, state.Tag); err != nil {
		return err
	}

	var description string
	var err error
	if s.w.usesToolsManifest(state.Tag) {
		description, err = root.TagMessage(ctx, state.Tag)
	} else {
		description, err = root.CommitMessage(ctx, "HEAD")
	}
	if err != nil {
		return err
	}
	state.Description = description
	return nil
}

func (s *repoSync) SyncComponents(ctx context.Context, state *RunState) error {
	manifestPath := filepath.Join(state.RootDir, "default.xml")
	if s.w.usesToolsManifest(state.Tag) {
		manifestPath = filepath.Join(state.RootDir, repoInitManifest)
	}
	if !files.FileExists(manifestPath) {
		return newErrorf(manifestNotFound, "Manifest file: %s not found!", manifestPath)
	}

	revs, err := ParseRecursiveManifest(manifestPath)
	if err != nil {
		return err
	}
	if err := revs.requireComponents(s.w.options.Components, manifestPath); err != nil {
		return err
	}

	state.Revisions = revs
	return checkoutComponents(ctx, s.w, revs)
}
