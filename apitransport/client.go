package apitransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/grailbio/base/log"
)

// Client drives authenticated, paginated calls against a single
// BaseURL. The zero value is not usable; construct with NewClient.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Auth    *AuthInterceptor
	PerPage int
}

// NewClient returns a Client ready to issue requests against baseURL,
// with credentials supplied lazily by auth per request.
func NewClient(baseURL string, httpClient *http.Client, auth *AuthInterceptor) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: httpClient, Auth: auth, PerPage: 100}
}

var linkTupleRE = regexp.MustCompile(`<([^>]+)>;\s*rel="([^"]+)"`)

// PaginatedGet walks every page of a Link-header-paginated listing
// endpoint starting at path (which may already carry a query string),
// decoding each page's JSON array body into decodeInto and calling
// onPage with the decoded slice for that page. Pages stop when no
// "next" rel is present in the Link header.
func (c *Client) PaginatedGet(ctx context.Context, path string, params *Params, decodeInto func() any, onPage func(page any) error) error {
	next := c.firstPageURL(path, params)
	for next != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, next, nil)
		if err != nil {
			return err
		}
		if err := c.authorize(req); err != nil {
			return err
		}
		resp, err := c.HTTP.Do(req)
		if err != nil {
			return err
		}
		page, linkHeader, err := decodePage(resp, decodeInto)
		if err != nil {
			return err
		}
		if page != nil {
			if err := onPage(page); err != nil {
				return err
			}
		}
		n, err := nextPageURL(linkHeader, c.BaseURL)
		if err != nil {
			return err
		}
		next = n
	}
	return nil
}

func (c *Client) firstPageURL(path string, params *Params) string {
	full := c.BaseURL + path
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	var qs []string
	if params != nil && params.Len() > 0 {
		qs = append(qs, params.QueryString())
	}
	qs = append(qs, "per_page="+strconv.Itoa(c.PerPage))
	return full + sep + strings.Join(qs, "&")
}

func decodePage(resp *http.Response, decodeInto func() any) (any, string, error) {
	defer resp.Body.Close()
	link := resp.Header.Get("Link")
	if resp.StatusCode == http.StatusNoContent {
		return nil, link, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, link, &APIError{Method: resp.Request.Method, URL: resp.Request.URL.String(), Status: resp.StatusCode, Body: string(body)}
	}
	target := decodeInto()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return nil, link, err
	}
	return target, link, nil
}

// nextPageURL extracts the rel="next" URL from a Link header value,
// validating it begins with baseURL and returning the full next URL
// unchanged, ready to be requested as is.
func nextPageURL(linkHeader, baseURL string) (string, error) {
	if linkHeader == "" {
		return "", nil
	}
	for _, tuple := range strings.Split(linkHeader, ",") {
		tuple = strings.TrimSpace(tuple)
		m := linkTupleRE.FindStringSubmatch(tuple)
		if m == nil {
			return "", &VerifyError{Reason: fmt.Sprintf("malformed Link header tuple %q", tuple)}
		}
		if m[2] != "next" {
			continue
		}
		next := m[1]
		if !strings.HasPrefix(next, baseURL) {
			return "", &VerifyError{Reason: fmt.Sprintf("next page URL %q does not start with configured base %q", next, baseURL)}
		}
		return next, nil
	}
	return "", nil
}

// Get issues a single-entity GET. A 2xx response with a body is
// decoded into target and ok is true; 204 yields ok=false with no
// error; anything else yields an *APIError.
func (c *Client) Get(ctx context.Context, path string, target any) (ok bool, err error) {
	return c.doEntity(ctx, http.MethodGet, path, nil, target)
}

// Post issues a single-entity POST with body serialized as JSON.
func (c *Client) Post(ctx context.Context, path string, body, target any) (ok bool, err error) {
	return c.doEntity(ctx, http.MethodPost, path, body, target)
}

// Put issues a single-entity PUT with body serialized as JSON.
func (c *Client) Put(ctx context.Context, path string, body, target any) (ok bool, err error) {
	return c.doEntity(ctx, http.MethodPut, path, body, target)
}

func (c *Client) doEntity(ctx context.Context, method, path string, body, target any) (bool, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return false, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return false, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.authorize(req); err != nil {
		return false, err
	}
	log.Debug.Printf("%s %s", method, req.URL)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return false, &APIError{Method: method, URL: req.URL.String(), Status: resp.StatusCode, Body: string(respBody)}
	}
	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (c *Client) authorize(req *http.Request) error {
	if c.Auth == nil {
		return nil
	}
	return c.Auth.Intercept(req)
}
