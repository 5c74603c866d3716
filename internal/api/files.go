package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/url"
	"strings"

	"github.com/jneless/bkp-drive/internal/models"
)

// List returns the immediate children of prefix ("" for root, otherwise a
// folder key ending in "/").
func (c *Client) List(ctx context.Context, prefix string) (*models.ListResult, error) {
	var resp models.ListResponse
	err := c.doJSON(ctx, request{
		op:     fmt.Sprintf("list %q", prefix),
		method: nethttp.MethodGet,
		path:   "/files",
		query:  url.Values{"prefix": {prefix}},
		auth:   true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	result := &models.ListResult{
		Prefix:  prefix,
		Folders: make([]string, 0, len(resp.Folders)),
		Files:   make([]models.Entry, 0, len(resp.Files)),
	}
	for _, name := range resp.Folders {
		name = strings.TrimSuffix(name, models.Separator)
		if name != "" {
			result.Folders = append(result.Folders, name)
		}
	}
	for _, f := range resp.Files {
		result.Files = append(result.Files, models.FileEntry(f))
	}
	return result, nil
}

// Entries lists prefix and returns the merged, normalized entry list.
func (c *Client) Entries(ctx context.Context, prefix string) ([]models.Entry, error) {
	res, err := c.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return res.Entries(), nil
}

// CreateFolder creates the folder marker for path.
func (c *Client) CreateFolder(ctx context.Context, path string) error {
	return c.doJSON(ctx, request{
		op:       fmt.Sprintf("create folder %q", path),
		method:   nethttp.MethodPost,
		path:     "/folders",
		jsonBody: models.CreateFolderRequest{FolderPath: path},
		auth:     true,
	}, nil)
}

// UploadFile streams r as a multipart upload of name into folder ("" for root).
// The body is not buffered, so the call is never retried.
func (c *Client) UploadFile(ctx context.Context, name string, r io.Reader, folder string) (*models.UploadResponse, error) {
	if !c.HasToken() {
		return nil, ErrAuthMissing
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := func() error {
			if err := mw.WriteField("folder", folder); err != nil {
				return err
			}
			part, err := mw.CreateFormFile("file", name)
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, r); err != nil {
				return err
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()

	var resp models.UploadResponse
	err := c.doJSON(ctx, request{
		op:       fmt.Sprintf("upload %q to %q", name, folder),
		method:   nethttp.MethodPost,
		path:     "/upload",
		body:     pr,
		header:   nethttp.Header{"Content-Type": {mw.FormDataContentType()}},
		auth:     true,
		transfer: true,
	}, &resp)
	// unblock the writer goroutine if the request ended early
	pr.Close()
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteOne deletes a single key.
func (c *Client) DeleteOne(ctx context.Context, key string) error {
	return c.doJSON(ctx, request{
		op:     fmt.Sprintf("delete %q", key),
		method: nethttp.MethodDelete,
		path:   "/files/" + escapeKey(key),
		auth:   true,
	}, nil)
}

// BatchDelete deletes keys in one request, in the given order. An empty
// list is a no-op and sends nothing.
func (c *Client) BatchDelete(ctx context.Context, keys []string) (*models.BatchResult, error) {
	if len(keys) == 0 {
		return &models.BatchResult{Success: true}, nil
	}

	var resp models.BatchResult
	err := c.doJSON(ctx, request{
		op:       fmt.Sprintf("batch delete of %d item(s)", len(keys)),
		method:   nethttp.MethodPost,
		path:     "/batch/delete",
		jsonBody: models.BatchRequest{Items: keys},
		auth:     true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
