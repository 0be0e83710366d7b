package source

import (
	"context"

	"github.com/sirupsen/logrus"
)

// SourceType identifies the release hosting provider
type SourceType string

const (
	TypeGitHub SourceType = "github"
	TypeGitLab SourceType = "gitlab"
	TypeAuto   SourceType = "auto"
)

// Repo represents a repository on any source
type Repo struct {
	Url     string     // Full repo URL
	BaseUrl string     // Host (github.com, gitlab.com, enterprise host)
	ApiUrl  string     // API endpoint base URL
	Owner   string     // Account/namespace (can be nested for GitLab: group/subgroup)
	Name    string     // Repository name
	Token   string     // Auth token
	Type    SourceType // Provider type
}

// ReleaseAsset represents an asset attached to a release
type ReleaseAsset struct {
	Id   int64  // Asset ID
	Url  string // Direct download URL
	Name string // Asset filename
	Size int64
}

// Release represents a published release
type Release struct {
	Id      int64
	Url     string
	TagName string
	Name    string
	Assets  []ReleaseAsset
}

// NewRelease holds everything needed to create a release entry for an existing tag
type NewRelease struct {
	TagName string
	Name    string
	Body    string
}

// Asset is a local file to be attached to a release
type Asset struct {
	Path  string // Local path of the file to upload
	Name  string // Name of the asset on the release
	Label string // Optional display label
}

// Config holds source-specific configuration
type Config struct {
	ApiVersion string        // v3 for GitHub, v4 for GitLab
	Logger     *logrus.Entry // Logger instance
}

// Source interface defines operations every provider must implement
type Source interface {
	// Type returns the source type identifier
	Type() SourceType

	// ParseUrl parses repo URL into Repo struct
	ParseUrl(repoUrl, token string) (Repo, error)

	// FetchTags returns the names of all tags in the repository
	FetchTags(ctx context.Context, repo Repo) ([]string, error)

	// FetchReleasedTags returns the tag names that already have a release
	FetchReleasedTags(ctx context.Context, repo Repo) ([]string, error)

	// CreateRelease creates a release entry for an existing tag
	CreateRelease(ctx context.Context, repo Repo, release NewRelease) (Release, error)

	// UploadReleaseAsset attaches a local file to a release
	UploadReleaseAsset(ctx context.Context, repo Repo, release Release, asset Asset) (ReleaseAsset, error)
}
