package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gpuopen-tools/vkrelease/source"
	"github.com/sirupsen/logrus"
)

// GitLabSource implements source.Source for GitLab
type GitLabSource struct {
	config source.Config
	logger *logrus.Entry
}

// NewGitLabSource creates a new GitLab source
func NewGitLabSource(config source.Config) source.Source {
	return &GitLabSource{
		config: config,
		logger: config.Logger,
	}
}

// Type returns the source type
func (s *GitLabSource) Type() source.SourceType {
	return source.TypeGitLab
}

// ParseUrl parses a GitLab repo URL into a Repo struct
// Supports nested subgroups: gitlab.com/group/subgroup/project
func (s *GitLabSource) ParseUrl(repoUrl, token string) (source.Repo, error) {
	var repo source.Repo

	u, err := url.Parse(repoUrl)
	if err != nil || u.Host == "" {
		return repo, fmt.Errorf("GitLab repo URL %s is malformed", repoUrl)
	}

	apiVersion := s.config.ApiVersion
	if apiVersion == "" || apiVersion == "v3" {
		apiVersion = "v4"
	}

	baseUrl := u.Host
	apiUrl := fmt.Sprintf("%s://%s/api/%s", u.Scheme, baseUrl, apiVersion)

	path := strings.Trim(u.Path, "/")
	path = strings.TrimSuffix(path, ".git")

	// Last part is the project name, everything before is the namespace (owner)
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return repo, fmt.Errorf("GitLab repo URL %s could not be parsed (need at least owner/project)", repoUrl)
	}

	name := parts[len(parts)-1]
	owner := strings.Join(parts[:len(parts)-1], "/")
	if owner == "" || name == "" {
		return repo, fmt.Errorf("GitLab repo URL %s could not be parsed", repoUrl)
	}

	repo = source.Repo{
		Url:     repoUrl,
		BaseUrl: baseUrl,
		ApiUrl:  apiUrl,
		Owner:   owner,
		Name:    name,
		Token:   token,
		Type:    source.TypeGitLab,
	}

	return repo, nil
}

// FetchTags returns all tag names of the repository, following pagination
func (s *GitLabSource) FetchTags(ctx context.Context, repo source.Repo) ([]string, error) {
	var tags []string

	projectId := encodeProjectPath(repo.Owner, repo.Name)
	tagsUrl := fmt.Sprintf("%s/projects/%s/repository/tags?per_page=100", repo.ApiUrl, projectId)

	for tagsUrl != "" {
		resp, err := callGitLabApiRaw(ctx, tagsUrl, http.MethodGet, repo.Token, nil, map[string]string{})
		if err != nil {
			return tags, err
		}
		nextUrl := getNextUrl(resp.Header.Get("link"))

		var apiTags []GitLabTagResponse
		if err := decodeResponse(resp, &apiTags); err != nil {
			return tags, err
		}

		for _, tag := range apiTags {
			tags = append(tags, tag.Name)
		}

		tagsUrl = nextUrl
	}

	return tags, nil
}

// FetchReleasedTags returns the tag name of every existing release
func (s *GitLabSource) FetchReleasedTags(ctx context.Context, repo source.Repo) ([]string, error) {
	var released []string

	projectId := encodeProjectPath(repo.Owner, repo.Name)
	releasesUrl := fmt.Sprintf("%s/projects/%s/releases?per_page=100", repo.ApiUrl, projectId)

	for releasesUrl != "" {
		resp, err := callGitLabApiRaw(ctx, releasesUrl, http.MethodGet, repo.Token, nil, map[string]string{})
		if err != nil {
			return released, err
		}
		nextUrl := getNextUrl(resp.Header.Get("link"))

		var apiReleases []GitLabReleaseResponse
		if err := decodeResponse(resp, &apiReleases); err != nil {
			return released, err
		}

		for _, release := range apiReleases {
			if s.logger != nil {
				s.logger.Debugf("%s is released already", release.TagName)
			}
			released = append(released, release.TagName)
		}

		releasesUrl = nextUrl
	}

	return released, nil
}

// CreateRelease creates a release for an existing tag
func (s *GitLabSource) CreateRelease(ctx context.Context, repo source.Repo, newRelease source.NewRelease) (source.Release, error) {
	var release source.Release

	projectId := encodeProjectPath(repo.Owner, repo.Name)
	resp, err := callGitLabApi(ctx, repo.ApiUrl, http.MethodPost, fmt.Sprintf("projects/%s/releases", projectId), repo.Token, GitLabCreateReleaseRequest{
		TagName:     newRelease.TagName,
		Name:        newRelease.Name,
		Description: newRelease.Body,
	})
	if err != nil {
		return release, fmt.Errorf("error creating release %s: %w", newRelease.TagName, err)
	}

	var apiRelease GitLabReleaseResponse
	if err := decodeResponse(resp, &apiRelease); err != nil {
		return release, err
	}

	release = source.Release{
		TagName: apiRelease.TagName,
		Name:    apiRelease.Name,
		Url:     fmt.Sprintf("https://%s/%s/%s/-/releases/%s", repo.BaseUrl, repo.Owner, repo.Name, url.PathEscape(apiRelease.TagName)),
	}
	return release, nil
}

// UploadReleaseAsset uploads the file to the project and links it from the release
func (s *GitLabSource) UploadReleaseAsset(ctx context.Context, repo source.Repo, release source.Release, asset source.Asset) (source.ReleaseAsset, error) {
	var uploaded source.ReleaseAsset

	projectId := encodeProjectPath(repo.Owner, repo.Name)
	resp, size, err := uploadFile(ctx, repo.ApiUrl, projectId, repo.Token, asset.Path, asset.Name)
	if err != nil {
		return uploaded, fmt.Errorf("error uploading %s: %w", asset.Name, err)
	}

	var upload GitLabUploadResponse
	if err := decodeResponse(resp, &upload); err != nil {
		return uploaded, err
	}
	if s.logger != nil {
		s.logger.Debugf("Uploaded %s (%s) to %s", asset.Name, describeSize(size), upload.FullPath)
	}

	linkName := asset.Name
	if asset.Label != "" {
		linkName = asset.Label
	}

	path := fmt.Sprintf("projects/%s/releases/%s/assets/links", projectId, url.PathEscape(release.TagName))
	resp, err = callGitLabApi(ctx, repo.ApiUrl, http.MethodPost, path, repo.Token, GitLabAssetLinkRequest{
		Name:     linkName,
		Url:      fmt.Sprintf("https://%s%s", repo.BaseUrl, upload.FullPath),
		LinkType: "package",
	})
	if err != nil {
		return uploaded, fmt.Errorf("error linking %s to release %s: %w", asset.Name, release.TagName, err)
	}

	var link GitLabAssetLink
	if err := decodeResponse(resp, &link); err != nil {
		return uploaded, err
	}

	uploaded = source.ReleaseAsset{
		Id:   link.Id,
		Url:  link.Url,
		Name: asset.Name,
		Size: size,
	}
	return uploaded, nil
}

func init() {
	// Register the factory function
	source.NewGitLabSource = NewGitLabSource
}
