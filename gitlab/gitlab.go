// Package gitlab is a thin, typed client for the subset of the GitLab
// REST API a migration workflow needs to drive code review: listing
// and creating merge requests, and reading project/user metadata. It
// is the worked example that exercises apitransport's generic
// pagination and entity-decoding machinery end to end.
package gitlab

import (
	"context"
	"fmt"
	"net/http"

	"github.com/grailbio/copybara/apitransport"
)

// Client wraps an apitransport.Client configured for a GitLab
// instance's API root (typically "https://gitlab.example.com/api/v4").
type Client struct {
	transport *apitransport.Client
}

// NewClient builds a Client authenticating with a personal access
// token sent as a "Bearer" credential, per GitLab's OAuth2-compatible
// PAT support.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	auth := &apitransport.AuthInterceptor{Issuer: apitransport.StaticCredential{Kind: "Bearer", Secret: token}}
	return &Client{transport: apitransport.NewClient(baseURL, httpClient, auth)}
}

// MergeRequestState is the wire-level state enum GitLab uses for merge
// requests; the symbolic Go names intentionally differ from the wire
// strings so callers can't accidentally serialize the wrong one.
type MergeRequestState string

const (
	MergeRequestOpened MergeRequestState = "opened"
	MergeRequestClosed MergeRequestState = "closed"
	MergeRequestMerged MergeRequestState = "merged"
)

// MergeRequest mirrors the fields of GitLab's merge request resource
// that a migration workflow reads or writes.
type MergeRequest struct {
	IID          int               `json:"iid"`
	ProjectID    int               `json:"project_id"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	State        MergeRequestState `json:"state"`
	SourceBranch string            `json:"source_branch"`
	TargetBranch string            `json:"target_branch"`
	Labels       []string          `json:"labels,omitempty"`
	WebURL       string            `json:"web_url,omitempty"`
}

// Project mirrors the subset of GitLab's project resource a migration
// needs for routing and access-check purposes.
type Project struct {
	ID                int    `json:"id"`
	PathWithNamespace string `json:"path_with_namespace"`
	DefaultBranch     string `json:"default_branch"`
	HTTPURLToRepo     string `json:"http_url_to_repo"`
}

// User mirrors GitLab's user resource, used for TODO-mapping and
// review-requestee resolution.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// ListMergeRequests walks every page of a project's merge requests
// matching the given state, aggregating results in server order.
func (c *Client) ListMergeRequests(ctx context.Context, projectID int, state MergeRequestState) ([]MergeRequest, error) {
	var all []MergeRequest
	params := apitransport.NewParams()
	if state != "" {
		params.Add("state", string(state))
	}
	path := fmt.Sprintf("/projects/%d/merge_requests", projectID)
	err := c.transport.PaginatedGet(ctx, path, params,
		func() any { return &[]MergeRequest{} },
		func(page any) error {
			all = append(all, *(page.(*[]MergeRequest))...)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// GetProject fetches a single project by ID. ok is false if GitLab
// returns 204 (treated as "not found" for symmetry with the rest of
// the tri-state contract, though GitLab itself uses 404 for this —
// callers relying on 404 semantics should inspect the returned
// *apitransport.APIError directly).
func (c *Client) GetProject(ctx context.Context, id int) (*Project, bool, error) {
	var p Project
	ok, err := c.transport.Get(ctx, fmt.Sprintf("/projects/%d", id), &p)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &p, true, nil
}

// CreateMergeRequestInput is the request body for CreateMergeRequest.
// Description is declared nullable and must be omitted, not
// serialized as an explicit null, when left empty — the omitempty on
// this struct's Description tag gives us that for free.
type CreateMergeRequestInput struct {
	SourceBranch string   `json:"source_branch"`
	TargetBranch string   `json:"target_branch"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Labels       []string `json:"labels,omitempty"`
}

// CreateMergeRequest opens a new merge request in a project.
func (c *Client) CreateMergeRequest(ctx context.Context, projectID int, input CreateMergeRequestInput) (*MergeRequest, error) {
	var mr MergeRequest
	path := fmt.Sprintf("/projects/%d/merge_requests", projectID)
	ok, err := c.transport.Post(ctx, path, input, &mr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("gitlab: create merge request returned no body")
	}
	return &mr, nil
}

// GetUser fetches a single user by username, GitLab's mechanism for
// resolving a TODO-replace mapping's display name back to an account.
func (c *Client) GetUser(ctx context.Context, username string) (*User, bool, error) {
	var users []User
	params := apitransport.NewParams().Add("username", username)
	err := c.transport.PaginatedGet(ctx, "/users", params,
		func() any { return &[]User{} },
		func(page any) error {
			users = append(users, *(page.(*[]User))...)
			return nil
		})
	if err != nil {
		return nil, false, err
	}
	if len(users) == 0 {
		return nil, false, nil
	}
	return &users[0], true, nil
}
