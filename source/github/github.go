package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/gpuopen-tools/vkrelease/source"
	"github.com/sirupsen/logrus"
)

// GitHubSource implements source.Source for GitHub and GitHub Enterprise
type GitHubSource struct {
	config     source.Config
	logger     *logrus.Entry
	httpClient *http.Client
}

// NewGitHubSource creates a new GitHub source
func NewGitHubSource(config source.Config) source.Source {
	return &GitHubSource{
		config:     config,
		logger:     config.Logger,
		httpClient: source.NewRetryClient(source.DefaultRetries, time.Second, config.Logger),
	}
}

// Type returns the source type
func (s *GitHubSource) Type() source.SourceType {
	return source.TypeGitHub
}

// ParseUrl parses a GitHub repo URL into a Repo struct
func (s *GitHubSource) ParseUrl(repoUrl, token string) (source.Repo, error) {
	var repo source.Repo

	u, err := url.Parse(repoUrl)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return repo, fmt.Errorf("GitHub repo URL %s is malformed", repoUrl)
	}

	apiVersion := s.config.ApiVersion
	if apiVersion == "" {
		apiVersion = "v3"
	}

	baseUrl := u.Host
	apiUrl := apiUrlFor(u.Scheme, baseUrl, apiVersion)
	if apiUrl != publicApiUrl && s.logger != nil {
		s.logger.Infof("Assuming GitHub Enterprise for URL: %s", repoUrl)
	}

	regex, err := regexp.Compile(`https?://(?:www\.)?` + regexp.QuoteMeta(baseUrl) + `/(.+?)/(.+?)(?:$|\?|#|/|\.git)`)
	if err != nil {
		return repo, fmt.Errorf("GitHub repo URL %s is malformed", repoUrl)
	}

	matches := regex.FindStringSubmatch(repoUrl)
	if len(matches) != 3 {
		return repo, fmt.Errorf("GitHub repo URL %s could not be parsed", repoUrl)
	}

	repo = source.Repo{
		Url:     repoUrl,
		BaseUrl: baseUrl,
		ApiUrl:  apiUrl,
		Owner:   matches[1],
		Name:    matches[2],
		Token:   token,
		Type:    source.TypeGitHub,
	}

	return repo, nil
}

// FetchTags returns all tag names of the repository, following pagination
func (s *GitHubSource) FetchTags(ctx context.Context, repo source.Repo) ([]string, error) {
	var tags []string

	client, err := newClient(repo, s.httpClient)
	if err != nil {
		return tags, err
	}

	opts := &github.ListOptions{PerPage: 100}
	for {
		apiTags, resp, err := client.Repositories.ListTags(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return tags, fmt.Errorf("error listing tags of %s/%s: %w", repo.Owner, repo.Name, err)
		}

		for _, tag := range apiTags {
			tags = append(tags, tag.GetName())
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return tags, nil
}

// FetchReleasedTags returns the tag name of every existing release, drafts included
func (s *GitHubSource) FetchReleasedTags(ctx context.Context, repo source.Repo) ([]string, error) {
	var released []string

	client, err := newClient(repo, s.httpClient)
	if err != nil {
		return released, err
	}

	opts := &github.ListOptions{PerPage: 100}
	for {
		releases, resp, err := client.Repositories.ListReleases(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return released, fmt.Errorf("error listing releases of %s/%s: %w", repo.Owner, repo.Name, err)
		}

		for _, release := range releases {
			if s.logger != nil {
				s.logger.Debugf("%s is released already", release.GetTagName())
			}
			released = append(released, release.GetTagName())
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return released, nil
}

// CreateRelease publishes a non-draft, non-prerelease release for an existing tag
func (s *GitHubSource) CreateRelease(ctx context.Context, repo source.Repo, newRelease source.NewRelease) (source.Release, error) {
	var release source.Release

	client, err := newClient(repo, s.httpClient)
	if err != nil {
		return release, err
	}

	created, _, err := client.Repositories.CreateRelease(ctx, repo.Owner, repo.Name, &github.RepositoryRelease{
		TagName:    github.Ptr(newRelease.TagName),
		Name:       github.Ptr(newRelease.Name),
		Body:       github.Ptr(newRelease.Body),
		Draft:      github.Ptr(false),
		Prerelease: github.Ptr(false),
	})
	if err != nil {
		return release, fmt.Errorf("error creating release %s on %s/%s: %w", newRelease.TagName, repo.Owner, repo.Name, err)
	}

	release = source.Release{
		Id:      created.GetID(),
		Url:     created.GetHTMLURL(),
		TagName: created.GetTagName(),
		Name:    created.GetName(),
	}
	return release, nil
}

// UploadReleaseAsset uploads a local file as an asset of the given release
func (s *GitHubSource) UploadReleaseAsset(ctx context.Context, repo source.Repo, release source.Release, asset source.Asset) (source.ReleaseAsset, error) {
	var uploaded source.ReleaseAsset

	client, err := newClient(repo, s.httpClient)
	if err != nil {
		return uploaded, err
	}

	file, err := os.Open(asset.Path)
	if err != nil {
		return uploaded, err
	}
	defer file.Close()

	opts := &github.UploadOptions{Name: asset.Name, Label: asset.Label}
	apiAsset, _, err := client.Repositories.UploadReleaseAsset(ctx, repo.Owner, repo.Name, release.Id, opts, file)
	if err != nil {
		return uploaded, fmt.Errorf("error uploading %s to release %s: %w", asset.Name, release.TagName, err)
	}

	uploaded = source.ReleaseAsset{
		Id:   apiAsset.GetID(),
		Url:  apiAsset.GetBrowserDownloadURL(),
		Name: apiAsset.GetName(),
		Size: int64(apiAsset.GetSize()),
	}
	return uploaded, nil
}

func init() {
	// Register the factory function
	source.NewGitHubSource = NewGitHubSource
}
