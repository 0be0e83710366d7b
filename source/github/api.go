package github

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v75/github"
	"github.com/gpuopen-tools/vkrelease/source"
)

const publicApiUrl = "https://api.github.com/"

// apiUrlFor returns the REST endpoint for a repo host. github.com uses the public API,
// anything else is assumed to be GitHub Enterprise serving /api/<version>/.
func apiUrlFor(scheme, host, apiVersion string) string {
	if host == "github.com" || host == "www.github.com" {
		return publicApiUrl
	}
	return fmt.Sprintf("%s://%s/api/%s/", scheme, host, apiVersion)
}

// newClient builds an authenticated go-github client for the given repo
func newClient(repo source.Repo, httpClient *http.Client) (*github.Client, error) {
	client := github.NewClient(httpClient)
	if repo.Token != "" {
		client = client.WithAuthToken(repo.Token)
	}

	if repo.ApiUrl == "" || repo.ApiUrl == publicApiUrl {
		return client, nil
	}

	// Enterprise uploads live next to the API root: /api/v3/ -> /api/uploads/
	uploadUrl := repo.ApiUrl
	if idx := strings.Index(repo.ApiUrl, "/api/"); idx >= 0 {
		uploadUrl = repo.ApiUrl[:idx] + "/api/uploads/"
	}
	return client.WithEnterpriseURLs(repo.ApiUrl, uploadUrl)
}
