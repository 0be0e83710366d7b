package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/gpuopen-tools/vkrelease/source"
)

// fakeSource keeps releases in memory. Setting failUpload makes the upload of that asset name fail.
type fakeSource struct {
	mu         sync.Mutex
	tags       []string
	released   []string
	created    []source.NewRelease
	uploaded   []source.Asset
	failUpload string
	failCreate bool
}

func (f *fakeSource) Type() source.SourceType {
	return source.TypeGitHub
}

func (f *fakeSource) ParseUrl(repoUrl, token string) (source.Repo, error) {
	return source.Repo{Url: repoUrl, Owner: "GPUOpen-Drivers", Name: "AMDVLK", Token: token, Type: source.TypeGitHub}, nil
}

func (f *fakeSource) FetchTags(ctx context.Context, repo source.Repo) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tags...), nil
}

func (f *fakeSource) FetchReleasedTags(ctx context.Context, repo source.Repo) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.released...), nil
}

func (f *fakeSource) CreateRelease(ctx context.Context, repo source.Repo, newRelease source.NewRelease) (source.Release, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failCreate {
		return source.Release{}, fmt.Errorf("HTTP 401: Bad credentials")
	}
	f.created = append(f.created, newRelease)
	f.released = append(f.released, newRelease.TagName)
	return source.Release{Id: int64(len(f.created)), TagName: newRelease.TagName, Name: newRelease.Name, Url: repo.Url + "/releases/tag/" + newRelease.TagName}, nil
}

func (f *fakeSource) UploadReleaseAsset(ctx context.Context, repo source.Repo, release source.Release, asset source.Asset) (source.ReleaseAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if asset.Name == f.failUpload {
		return source.ReleaseAsset{}, fmt.Errorf("HTTP 502 uploading %s", asset.Name)
	}
	info, err := os.Stat(asset.Path)
	if err != nil {
		return source.ReleaseAsset{}, err
	}
	f.uploaded = append(f.uploaded, asset)
	return source.ReleaseAsset{Id: int64(len(f.uploaded)), Name: asset.Name, Size: info.Size()}, nil
}

func (f *fakeSource) uploadedNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(f.uploaded))
	for _, asset := range f.uploaded {
		names = append(names, asset.Name)
	}
	return names
}
