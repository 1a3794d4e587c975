package webflow

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/galeriehaus/artbridge/internal/transport"
)

const (
	// MaxBatchSize is the largest number of items the bulk endpoints accept
	// per request.
	MaxBatchSize = 100

	maxErrorBody = 2048
)

// Client is a Webflow CMS Data API client.
type Client struct {
	// baseURL is the base URL for API requests.
	baseURL string

	// httpClient is the HTTP client for making requests.
	httpClient *http.Client

	// pageSize is the number of items requested per page.
	pageSize int

	// siteID is the Webflow site identifier.
	siteID string

	// token is the API token for authentication.
	token string
}

// NewClient creates a new Webflow API client.
func NewClient(token string, siteID string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, errors.New("API token is required")
	}
	if siteID == "" {
		return nil, errors.New("site ID is required")
	}

	o := defaultOptions()
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
		httpClient: httpClient,
		pageSize:   o.pageSize,
		siteID:     siteID,
		token:      token,
	}, nil
}

// ListItems fetches all items of a collection in the given locale. Pages of
// pageSize are requested at increasing offsets until a short page is
// returned.
func (c *Client) ListItems(ctx context.Context, collectionID string, locale Locale) ([]Item, error) {
	if collectionID == "" {
		return nil, errors.New("collection ID is required")
	}
	if locale == "" {
		return nil, errors.New("locale is required")
	}

	var all []Item

	for offset := 0; ; offset += c.pageSize {
		params := url.Values{}
		params.Set("cmsLocaleId", string(locale))
		params.Set("limit", strconv.Itoa(c.pageSize))
		params.Set("offset", strconv.Itoa(offset))

		reqURL := fmt.Sprintf("%s/v2/collections/%s/items?%s", c.baseURL, collectionID, params.Encode())

		var page struct {
			Items []Item `json:"items"`
		}
		if err := c.doRequest(ctx, http.MethodGet, reqURL, nil, &page); err != nil {
			return nil, fmt.Errorf("listing items at offset %d: %w", offset, err)
		}

		all = append(all, page.Items...)

		if len(page.Items) < c.pageSize {
			break
		}
	}

	return all, nil
}

// CreateItems creates items in a collection, materialising every given
// locale variant of each item in a single request so the variants are linked
// as one logical record from birth. The supplied field data is written to
// all listed locales; locale-specific content is patched afterwards with
// UpdateItems. Returned items align with the input order.
func (c *Client) CreateItems(
	ctx context.Context,
	collectionID string,
	locales []Locale,
	fields []FieldData,
) ([]Item, error) {
	if collectionID == "" {
		return nil, errors.New("collection ID is required")
	}
	if len(locales) == 0 {
		return nil, errors.New("at least one locale is required")
	}
	if len(fields) == 0 {
		return nil, nil
	}
	if len(fields) > MaxBatchSize {
		return nil, fmt.Errorf("batch of %d exceeds maximum of %d items", len(fields), MaxBatchSize)
	}

	type createItem struct {
		FieldData FieldData `json:"fieldData"`
	}
	body := struct {
		CMSLocaleIDs []Locale     `json:"cmsLocaleIds"`
		Items        []createItem `json:"items"`
	}{CMSLocaleIDs: locales}
	for _, f := range fields {
		body.Items = append(body.Items, createItem{FieldData: f})
	}

	reqURL := fmt.Sprintf("%s/v2/collections/%s/items", c.baseURL, collectionID)

	var result struct {
		Items []Item `json:"items"`
	}
	if err := c.doRequest(ctx, http.MethodPost, reqURL, body, &result); err != nil {
		return nil, fmt.Errorf("creating items: %w", err)
	}

	if len(result.Items) != len(fields) {
		return nil, fmt.Errorf("created %d items, expected %d", len(result.Items), len(fields))
	}

	return result.Items, nil
}

// UpdateItems patches items in a collection, scoped to exactly one locale.
// Only the given locale variant is touched; sibling locales keep their field
// values.
func (c *Client) UpdateItems(
	ctx context.Context,
	collectionID string,
	locale Locale,
	updates []ItemUpdate,
) error {
	if collectionID == "" {
		return errors.New("collection ID is required")
	}
	if locale == "" {
		return errors.New("locale is required")
	}
	if len(updates) == 0 {
		return nil
	}
	if len(updates) > MaxBatchSize {
		return fmt.Errorf("batch of %d exceeds maximum of %d items", len(updates), MaxBatchSize)
	}

	type updateItem struct {
		CMSLocaleID Locale    `json:"cmsLocaleId"`
		FieldData   FieldData `json:"fieldData"`
		ID          string    `json:"id"`
	}
	body := struct {
		Items []updateItem `json:"items"`
	}{}
	for _, u := range updates {
		body.Items = append(body.Items, updateItem{
			CMSLocaleID: locale,
			FieldData:   u.FieldData,
			ID:          u.ID,
		})
	}

	reqURL := fmt.Sprintf("%s/v2/collections/%s/items", c.baseURL, collectionID)

	if err := c.doRequest(ctx, http.MethodPatch, reqURL, body, nil); err != nil {
		return fmt.Errorf("updating items: %w", err)
	}

	return nil
}

// DeleteItem deletes an item across all locale variants.
func (c *Client) DeleteItem(ctx context.Context, collectionID string, itemID string) error {
	if collectionID == "" {
		return errors.New("collection ID is required")
	}
	if itemID == "" {
		return errors.New("item ID is required")
	}

	reqURL := fmt.Sprintf("%s/v2/collections/%s/items/%s", c.baseURL, collectionID, itemID)

	if err := c.doRequest(ctx, http.MethodDelete, reqURL, nil, nil); err != nil {
		return fmt.Errorf("deleting item %s: %w", itemID, err)
	}

	return nil
}

// ListAssets fetches all assets of the site.
func (c *Client) ListAssets(ctx context.Context) ([]Asset, error) {
	var all []Asset

	for offset := 0; ; offset += c.pageSize {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(c.pageSize))
		params.Set("offset", strconv.Itoa(offset))

		reqURL := fmt.Sprintf("%s/v2/sites/%s/assets?%s", c.baseURL, c.siteID, params.Encode())

		var page struct {
			Assets []Asset `json:"assets"`
		}
		if err := c.doRequest(ctx, http.MethodGet, reqURL, nil, &page); err != nil {
			return nil, fmt.Errorf("listing assets at offset %d: %w", offset, err)
		}

		all = append(all, page.Assets...)

		if len(page.Assets) < c.pageSize {
			break
		}
	}

	return all, nil
}

// UploadAsset uploads a binary to the site's asset library. The upload is
// two-step: register the file metadata (name plus MD5), then post the bytes
// to the returned upload URL.
func (c *Client) UploadAsset(ctx context.Context, fileName string, data []byte) (*Asset, error) {
	if fileName == "" {
		return nil, errors.New("file name is required")
	}
	if len(data) == 0 {
		return nil, errors.New("asset data is empty")
	}

	hash := md5.Sum(data)

	body := struct {
		FileHash string `json:"fileHash"`
		FileName string `json:"fileName"`
	}{
		FileHash: hex.EncodeToString(hash[:]),
		FileName: fileName,
	}

	reqURL := fmt.Sprintf("%s/v2/sites/%s/assets", c.baseURL, c.siteID)

	var meta struct {
		HostedURL     string            `json:"hostedUrl"`
		ID            string            `json:"id"`
		UploadDetails map[string]string `json:"uploadDetails"`
		UploadURL     string            `json:"uploadUrl"`
	}
	if err := c.doRequest(ctx, http.MethodPost, reqURL, body, &meta); err != nil {
		return nil, fmt.Errorf("registering asset %s: %w", fileName, err)
	}

	if err := c.postMultipart(ctx, meta.UploadURL, meta.UploadDetails, fileName, data); err != nil {
		return nil, fmt.Errorf("uploading asset %s: %w", fileName, err)
	}

	return &Asset{
		HostedURL:        meta.HostedURL,
		ID:               meta.ID,
		OriginalFileName: fileName,
	}, nil
}

// postMultipart sends the asset bytes to the storage upload URL with the
// provided form fields.
func (c *Client) postMultipart(
	ctx context.Context,
	uploadURL string,
	fields map[string]string,
	fileName string,
	data []byte,
) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("writing form field: %w", err)
		}
	}

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return fmt.Errorf("creating file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("writing file part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalising multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}

	return nil
}

// doRequest executes an HTTP request with authentication and JSON encoding.
func (c *Client) doRequest(ctx context.Context, method string, reqURL string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

// statusError builds an APIError from a non-2xx response.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &transport.APIError{
		Body:       string(body),
		StatusCode: resp.StatusCode,
	}
}
