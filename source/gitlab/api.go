package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gpuopen-tools/vkrelease/source"
)

var nextLinkRegex = regexp.MustCompile(`<(.+?)>;\s*rel="next"`)

var httpClient = source.NewRetryClient(source.DefaultRetries, time.Second, nil)

// callGitLabApi performs a JSON request against the GitLab REST API rooted at apiUrl
func callGitLabApi(ctx context.Context, apiUrl, method, path, token string, payload interface{}) (*http.Response, error) {
	var body io.Reader
	headers := map[string]string{}
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
		headers["Content-Type"] = "application/json"
	}

	return callGitLabApiRaw(ctx, strings.TrimSuffix(apiUrl, "/")+"/"+path, method, token, body, headers)
}

// callGitLabApiRaw performs raw HTTP request with GitLab auth
func callGitLabApiRaw(ctx context.Context, reqUrl, method, token string, body io.Reader, customHeaders map[string]string) (*http.Response, error) {
	request, err := http.NewRequestWithContext(ctx, method, reqUrl, body)
	if err != nil {
		return nil, err
	}

	// GitLab uses PRIVATE-TOKEN header (different from GitHub)
	if token != "" {
		request.Header.Set("PRIVATE-TOKEN", token)
	}

	for headerName, headerValue := range customHeaders {
		request.Header.Set(headerName, headerValue)
	}

	resp, err := httpClient.Do(request)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		buf := new(bytes.Buffer)
		_, goErr := buf.ReadFrom(resp.Body)
		resp.Body.Close()
		if goErr != nil {
			return nil, goErr
		}
		return nil, fmt.Errorf("HTTP %d while calling %s %s: %s", resp.StatusCode, method, reqUrl, buf.String())
	}

	return resp, nil
}

// decodeResponse reads the whole body into out and closes it
func decodeResponse(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return err
	}
	return json.Unmarshal(buf.Bytes(), out)
}

// uploadFile posts a file to the project uploads endpoint as multipart form data
func uploadFile(ctx context.Context, apiUrl, projectId, token, filePath, fileName string) (*http.Response, int64, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(fileName))
	if err != nil {
		return nil, 0, err
	}
	size, err := io.Copy(part, file)
	if err != nil {
		return nil, 0, err
	}
	if err := writer.Close(); err != nil {
		return nil, 0, err
	}

	reqUrl := fmt.Sprintf("%s/projects/%s/uploads", strings.TrimSuffix(apiUrl, "/"), projectId)
	resp, err := callGitLabApiRaw(ctx, reqUrl, http.MethodPost, token, body, map[string]string{"Content-Type": writer.FormDataContentType()})
	return resp, size, err
}

// getNextUrl extracts next page URL from Link header (same format as GitHub)
func getNextUrl(links string) string {
	if len(links) == 0 {
		return ""
	}

	for _, link := range strings.Split(links, ",") {
		urlMatches := nextLinkRegex.FindStringSubmatch(link)
		if len(urlMatches) == 2 {
			return strings.TrimSpace(urlMatches[1])
		}
	}

	return ""
}

// encodeProjectPath URL-encodes the project path for GitLab API
// GitLab requires owner/name to be URL-encoded (/ becomes %2F)
func encodeProjectPath(owner, name string) string {
	return url.PathEscape(owner + "/" + name)
}

// describeSize renders an upload size for logs
func describeSize(size int64) string {
	if size < 0 {
		return "unknown size"
	}
	return humanize.Bytes(uint64(size))
}
