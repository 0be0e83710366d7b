package gitlab

// GitLabTagResponse models GitLab API /projects/:id/repository/tags response
type GitLabTagResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Commit  struct {
		Id string `json:"id"`
	} `json:"commit"`
}

// GitLabReleaseResponse models GitLab API /projects/:id/releases entries
type GitLabReleaseResponse struct {
	TagName     string `json:"tag_name"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Links       struct {
		Self string `json:"self"`
	} `json:"_links"`
}

// GitLabCreateReleaseRequest is the body of POST /projects/:id/releases
type GitLabCreateReleaseRequest struct {
	TagName     string `json:"tag_name"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// GitLabUploadResponse models POST /projects/:id/uploads
type GitLabUploadResponse struct {
	Alt      string `json:"alt"`
	Url      string `json:"url"`
	FullPath string `json:"full_path"`
}

// GitLabAssetLinkRequest is the body of POST /projects/:id/releases/:tag/assets/links
type GitLabAssetLinkRequest struct {
	Name     string `json:"name"`
	Url      string `json:"url"`
	LinkType string `json:"link_type"`
}

// GitLabAssetLink models uploaded asset links in release response
type GitLabAssetLink struct {
	Id       int64  `json:"id"`
	Name     string `json:"name"`
	Url      string `json:"url"`
	LinkType string `json:"link_type"`
}
