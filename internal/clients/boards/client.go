package boards

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// Posting is the wire shape of a job-board posting before it crosses the
// ingestion boundary into the typed domain model.
type Posting struct {
	ExternalID   string    `json:"id"`
	Title        string    `json:"title"`
	Company      string    `json:"company"`
	ContactEmail string    `json:"contact_email"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

type getPostingsResponse struct {
	Postings []Posting `json:"items"`
}

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client pulls postings from the job-board aggregation API.
type Client struct {
	baseURL     string
	httpClient  HTTPClient
	rateLimiter *rate.Limiter
}

func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, httpClient: &http.Client{}}
}

func (c *Client) SetHTTPClient(client HTTPClient) {
	c.httpClient = client
}

func (c *Client) SetRateLimit(maxRequestsPerSecond float32) {
	c.rateLimiter = rate.NewLimiter(rate.Limit(maxRequestsPerSecond), 1)
}

// GetPostings fetches postings published since the given time, one page at a
// time. Pages are zero-based.
func (c *Client) GetPostings(ctx context.Context, since time.Time, page, perPage int) ([]Posting, error) {

	params := url.Values{}
	params.Set("date_from", since.UTC().Format(time.RFC3339))
	params.Set("page", fmt.Sprint(page))
	params.Set("per_page", fmt.Sprint(perPage))

	body, err := c.sendRequest(ctx, "GET", c.baseURL+"/postings?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var response getPostingsResponse
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&response); err != nil {
		return nil, fmt.Errorf("error decoding JSON response: %v", err)
	}

	return response.Postings, nil
}

func (c *Client) sendRequest(ctx context.Context, method string, url string, body io.Reader) ([]byte, error) {

	if c.rateLimiter != nil {
		err := c.rateLimiter.Wait(ctx)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %v", err)
	}
	defer resp.Body.Close()

	return c.handleResponse(resp)
}

func (c *Client) handleResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %v, body: %v", resp.StatusCode, string(body))
	}

	return body, nil
}
