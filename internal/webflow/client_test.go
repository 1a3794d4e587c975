package webflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestClient creates a client pointed at the given test server.
func newTestClient(t *testing.T, serverURL string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBaseURL(serverURL)}, opts...)
	client, err := NewClient("test-token", "site-1", opts...)
	require.NoError(t, err)
	return client
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	_, err := NewClient("", "site-1")
	require.ErrorContains(t, err, "API token is required")

	_, err = NewClient("tok", "")
	require.ErrorContains(t, err, "site ID is required")
}

func TestListItemsPaginatesAndScopesLocale(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "loc-en", r.URL.Query().Get("cmsLocaleId"))
		require.Equal(t, "2", r.URL.Query().Get("limit"))

		switch r.URL.Query().Get("offset") {
		case "0":
			fmt.Fprint(w, `{"items":[{"id":"a","fieldData":{"slug":"x"}},{"id":"b","fieldData":{"slug":"y"}}]}`)
		case "2":
			fmt.Fprint(w, `{"items":[]}`)
		default:
			t.Errorf("unexpected offset %s", r.URL.Query().Get("offset"))
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, WithPageSize(2))

	items, err := client.ListItems(context.Background(), "coll-1", "loc-en")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "a", items[0].ID)
	require.Equal(t, "x", items[0].FieldData["slug"])
}

func TestListItemsRequiresLocale(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "http://unused.invalid")

	_, err := client.ListItems(context.Background(), "coll-1", "")
	require.ErrorContains(t, err, "locale is required")
}

func TestCreateItemsMultiLocale(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v2/collections/coll-1/items", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		var req struct {
			CMSLocaleIDs []string `json:"cmsLocaleIds"`
			Items        []struct {
				FieldData map[string]any `json:"fieldData"`
			} `json:"items"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		require.Equal(t, []string{"loc-en", "loc-de"}, req.CMSLocaleIDs)
		require.Len(t, req.Items, 2)

		fmt.Fprint(w, `{"items":[{"id":"new-1","fieldData":{}},{"id":"new-2","fieldData":{}}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	items, err := client.CreateItems(context.Background(), "coll-1",
		[]Locale{"loc-en", "loc-de"},
		[]FieldData{{"name": "Bronze"}, {"name": "Oak"}})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "new-1", items[0].ID)
}

func TestCreateItemsRejectsOversizedBatch(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "http://unused.invalid")

	fields := make([]FieldData, MaxBatchSize+1)
	for i := range fields {
		fields[i] = FieldData{}
	}

	_, err := client.CreateItems(context.Background(), "coll-1", []Locale{"loc-en"}, fields)
	require.ErrorContains(t, err, "exceeds maximum")
}

func TestUpdateItemsScopesEveryItemToLocale(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)

		body, _ := io.ReadAll(r.Body)
		var req struct {
			Items []struct {
				CMSLocaleID string         `json:"cmsLocaleId"`
				FieldData   map[string]any `json:"fieldData"`
				ID          string         `json:"id"`
			} `json:"items"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		require.Len(t, req.Items, 2)
		for _, item := range req.Items {
			require.Equal(t, "loc-de", item.CMSLocaleID)
		}

		fmt.Fprint(w, `{"items":[]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	err := client.UpdateItems(context.Background(), "coll-1", "loc-de", []ItemUpdate{
		{ID: "a", FieldData: FieldData{"name": "Gefäß"}},
		{ID: "b", FieldData: FieldData{"name": "Eiche"}},
	})
	require.NoError(t, err)
}

func TestUpdateItemsRequiresLocale(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "http://unused.invalid")

	err := client.UpdateItems(context.Background(), "coll-1", "", []ItemUpdate{{ID: "a"}})
	require.ErrorContains(t, err, "locale is required")
}

func TestDeleteItem(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/v2/collections/coll-1/items/item-9", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	require.NoError(t, client.DeleteItem(context.Background(), "coll-1", "item-9"))
}

func TestUploadAssetTwoStep(t *testing.T) {
	t.Parallel()

	var uploadedToBucket bool

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/v2/sites/site-1/assets", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			FileHash string `json:"fileHash"`
			FileName string `json:"fileName"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		require.Equal(t, "vase.jpg", req.FileName)
		require.Len(t, req.FileHash, 32)

		fmt.Fprintf(w, `{"id":"asset-1","hostedUrl":"https://cdn.example/vase.jpg","uploadUrl":"%s/bucket","uploadDetails":{"acl":"public-read"}}`, server.URL)
	})
	mux.HandleFunc("/bucket", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "public-read", r.FormValue("acl"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()
		require.Equal(t, "vase.jpg", header.Filename)

		uploadedToBucket = true
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClient(t, server.URL)

	asset, err := client.UploadAsset(context.Background(), "vase.jpg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	require.True(t, uploadedToBucket)
	require.Equal(t, "asset-1", asset.ID)
	require.Equal(t, "https://cdn.example/vase.jpg", asset.HostedURL)
}

func TestListAssets(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.URL.Path, "/v2/sites/site-1/assets"))
		fmt.Fprint(w, `{"assets":[{"id":"asset-1","hostedUrl":"https://cdn.example/a.jpg","originalFileName":"a.jpg"}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	assets, err := client.ListAssets(context.Background())
	require.NoError(t, err)
	require.Len(t, assets, 1)
	require.Equal(t, "a.jpg", assets[0].OriginalFileName)
}
