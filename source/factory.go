package source

import (
	"fmt"
	"net/url"
	"strings"
)

// DetectSourceType determines the hosting provider from a repo or organization URL.
// Only public gitlab.com is recognized as GitLab; every other host is treated as
// GitHub (github.com or GitHub Enterprise). Self-hosted GitLab needs --source gitlab.
func DetectSourceType(repoUrl string) (SourceType, error) {
	u, err := url.Parse(repoUrl)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid URL %s: missing host", repoUrl)
	}

	switch strings.ToLower(u.Host) {
	case "gitlab.com", "www.gitlab.com":
		return TypeGitLab, nil
	default:
		return TypeGitHub, nil
	}
}

// ParseSourceType converts the --source flag value to a SourceType
func ParseSourceType(s string) (SourceType, error) {
	switch strings.ToLower(s) {
	case "github":
		return TypeGitHub, nil
	case "gitlab":
		return TypeGitLab, nil
	case "auto", "":
		return TypeAuto, nil
	default:
		return "", fmt.Errorf("unknown source type: %s (valid: github, gitlab, auto)", s)
	}
}

// RepoUrl joins an organization base URL such as https://github.com/GPUOpen-Drivers/
// with a repository name.
func RepoUrl(baseUrl, name string) string {
	return strings.TrimSuffix(baseUrl, "/") + "/" + name
}

// GetSource resolves TypeAuto against the URL and creates the matching Source
func GetSource(repoUrl string, explicitType SourceType, config Config) (Source, error) {
	srcType := explicitType
	if srcType == "" || srcType == TypeAuto {
		detected, err := DetectSourceType(repoUrl)
		if err != nil {
			return nil, err
		}
		srcType = detected
	}

	return NewSource(srcType, config)
}

// NewSource creates a Source implementation based on type
func NewSource(sourceType SourceType, config Config) (Source, error) {
	var factory func(Config) Source
	switch sourceType {
	case TypeGitHub:
		factory = NewGitHubSource
	case TypeGitLab:
		factory = NewGitLabSource
	default:
		return nil, fmt.Errorf("unsupported source type: %s", sourceType)
	}

	if factory == nil {
		return nil, fmt.Errorf("source type %s is not registered", sourceType)
	}
	return factory(config), nil
}

// NewGitHubSource is set by the github package's init
var NewGitHubSource func(config Config) Source

// NewGitLabSource is set by the gitlab package's init
var NewGitLabSource func(config Config) Source
