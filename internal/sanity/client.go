package sanity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/galeriehaus/artbridge/internal/transport"
)

// maxErrorBody bounds how much of an error response body is included in
// error messages.
const maxErrorBody = 2048

// Client is a read-only Sanity Content Lake client.
type Client struct {
	// baseURL is the base URL for API requests.
	baseURL string

	// dataset is the Sanity dataset name.
	dataset string

	// httpClient is the HTTP client for making requests.
	httpClient *http.Client

	// pageSize is the number of documents requested per page.
	pageSize int

	// token is the API token for authentication.
	token string
}

// NewClient creates a new Sanity client for the given project and dataset.
func NewClient(projectID string, dataset string, token string, opts ...Option) (*Client, error) {
	if projectID == "" {
		return nil, errors.New("project ID is required")
	}
	if dataset == "" {
		return nil, errors.New("dataset is required")
	}
	if token == "" {
		return nil, errors.New("API token is required")
	}

	o := defaultOptions(projectID)
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: o.timeout}
	}

	return &Client{
		baseURL:    o.baseURL,
		dataset:    dataset,
		httpClient: httpClient,
		pageSize:   o.pageSize,
		token:      token,
	}, nil
}

// Documents fetches all documents of the given type, ordered by ID. Pages of
// pageSize are requested at increasing offsets until a short page is
// returned; the result is a best-effort snapshot, not a transactional read.
func (c *Client) Documents(ctx context.Context, docType string) ([]Document, error) {
	var all []Document

	for offset := 0; ; offset += c.pageSize {
		query := fmt.Sprintf("*[_type == %q] | order(_id asc) [%d...%d]",
			docType, offset, offset+c.pageSize)

		var page []Document
		if err := c.query(ctx, query, &page); err != nil {
			return nil, fmt.Errorf("fetching %s documents at offset %d: %w", docType, offset, err)
		}

		all = append(all, page...)

		if len(page) < c.pageSize {
			break
		}
	}

	return all, nil
}

// AssetDocument fetches the asset document for the given asset ID.
func (c *Client) AssetDocument(ctx context.Context, assetID string) (*AssetDocument, error) {
	query := fmt.Sprintf("*[_id == %q][0]{_id, url, originalFilename, mimeType}", assetID)

	var doc *AssetDocument
	if err := c.query(ctx, query, &doc); err != nil {
		return nil, fmt.Errorf("fetching asset document %s: %w", assetID, err)
	}

	if doc == nil || doc.ID == "" {
		return nil, fmt.Errorf("asset %s not found", assetID)
	}

	return doc, nil
}

// Download fetches the binary content of an asset from its CDN URL.
func (c *Client) Download(ctx context.Context, assetURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading asset body: %w", err)
	}

	return data, nil
}

// statusError builds an APIError from a non-200 response.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &transport.APIError{
		Body:       string(body),
		StatusCode: resp.StatusCode,
	}
}

// query executes a GROQ query and decodes the result payload.
func (c *Client) query(ctx context.Context, groq string, result any) error {
	params := url.Values{}
	params.Set("query", groq)

	reqURL := fmt.Sprintf("%s/v2021-10-21/data/query/%s?%s", c.baseURL, c.dataset, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	if envelope.Result == nil {
		return nil
	}

	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("decoding query result: %w", err)
	}

	return nil
}
