package main

import (
	"context"
	"strings"
)

// gitRepo runs git against one working copy
type gitRepo struct {
	runner CommandRunner
	dir    string
}

func (g gitRepo) run(ctx context.Context, args ...string) (string, error) {
	result, err := runChecked(ctx, g.runner, Command{Name: "git", Args: args, Dir: g.dir})
	return result.Output, err
}

// cloneRepo clones url into parentDir, leaving the checkout in the directory git derives from the url
func cloneRepo(ctx context.Context, runner CommandRunner, url string, parentDir string) error {
	_, err := runChecked(ctx, runner, Command{Name: "git", Args: []string{"clone", url}, Dir: parentDir})
	return err
}

func (g gitRepo) Tags(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "tag")
	if err != nil {
		return nil, err
	}

	var tags []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			tags = append(tags, line)
		}
	}
	return tags, nil
}

func (g gitRepo) Fetch(ctx context.Context) error {
	_, err := g.run(ctx, "fetch", "--tags", "origin")
	return err
}

// Clean removes untracked and ignored files, including nested checkouts
func (g gitRepo) Clean(ctx context.Context) error {
	_, err := g.run(ctx, "clean", "-xdff")
	return err
}

func (g gitRepo) Checkout(ctx context.Context, revision string) error {
	_, err := g.run(ctx, "checkout", revision)
	return err
}

// CommitMessage returns the full message of the commit ref points to
func (g gitRepo) CommitMessage(ctx context.Context, ref string) (string, error) {
	out, err := g.run(ctx, "log", "-1", "--format=%B", ref)
	return strings.TrimRight(out, "\n"), err
}

// TagMessage returns the annotation of an annotated tag
func (g gitRepo) TagMessage(ctx context.Context, tag string) (string, error) {
	out, err := g.run(ctx, "for-each-ref", "--format=%(contents)", "refs/tags/"+tag)
	return strings.TrimRight(out, "\n"), err
}
