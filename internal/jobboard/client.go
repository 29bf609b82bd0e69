// Package jobboard fetches job postings from an external job-board API
// so the local posting table can be refreshed without hand-written seed
// files. The API serves paginated JSON under /postings.
package jobboard

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/xdmiq/jobmatch/internal/model"
)

const (
	userAgent = "xdmiq/jobmatch"

	contentType     = "application/json"
	contentEncoding = "gzip, deflate, br"

	// Max value for postings per page accepted by the API.
	perPage = "100"

	postingsPath = "/postings"
)

type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

// New builds a client for the job-board API at apiURL. The token is
// optional; public boards serve postings without one.
func New(logger *zap.Logger, apiURL, token string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		token:  token,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

// SearchParams narrows the postings returned by FetchPostings.
type SearchParams struct {
	// Query is a free-text search over title and skills. Empty fetches
	// everything.
	Query string
}

// FetchPostings retrieves all pages of postings matching params and
// converts them into local posting rows.
func (c *Client) FetchPostings(ctx context.Context, params *SearchParams) ([]model.JobPosting, error) {
	q := url.Values{}
	q.Set("per_page", perPage)
	if params != nil && params.Query != "" {
		q.Set("text", params.Query)
	}

	items, err := c.getPostings(ctx, c.APIURL+postingsPath, q)
	if err != nil {
		return nil, err
	}

	jobs := make([]model.JobPosting, 0, len(items))
	for _, item := range items {
		jobs = append(jobs, item.toModel())
	}
	return jobs, nil
}

// getPostings makes a GET request to the job-board API and returns the
// postings from all pages.
func (c *Client) getPostings(ctx context.Context, url string, q url.Values) ([]wirePosting, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req = c.setHeaders(req)
	req.URL.RawQuery = q.Encode()

	resp, err := c.request(req)
	if err != nil {
		return nil, err
	}

	response, err := c.parsePostingsResponse(resp)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("got response from job board",
		zap.Int("pages", response.Pages),
		zap.Int("max items per page", response.PerPage),
	)

	items := append([]wirePosting(nil), response.Items...)

	for response.Page < (response.Pages - 1) {
		c.logger.Debug("additional request needed", zap.String("reason", fmt.Sprintf(
			"current page (%d) < all page count (%d)", response.Page+1, response.Pages),
		))

		resp, err = c.request(addPage(req, response.Page+1))
		if err != nil {
			return nil, err
		}

		response, err = c.parsePostingsResponse(resp)
		if err != nil {
			return nil, err
		}

		items = append(items, response.Items...)
	}

	return items, nil
}

func (c *Client) parsePostingsResponse(resp *http.Response) (*postingsResponse, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var body io.ReadCloser
	var err error
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		body, err = gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer body.Close()
	default:
		body = resp.Body
		defer body.Close()
	}

	var response *postingsResponse
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		return nil, err
	}

	return response, nil
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

// addPage adds page parameter to request URL.
func addPage(req *http.Request, page int) *http.Request {
	q := req.URL.Query()
	q.Set("page", strconv.Itoa(page))
	req.URL.RawQuery = q.Encode()

	return req
}
