package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"

	"github.com/jneless/bkp-drive/internal/constants"
)

// ProcessParam is the query parameter selecting server-side media processing.
const ProcessParam = "x-tos-process"

// ImageResize returns the processing instruction for a width-bounded image.
func ImageResize(width int) string {
	return fmt.Sprintf("image/resize,w_%d", width)
}

// VideoSnapshot returns the processing instruction for a JPEG frame at t=0.
func VideoSnapshot(width, height int) string {
	return fmt.Sprintf("video/snapshot,t_0,w_%d,h_%d,f_jpg", width, height)
}

// Download opens key for reading. process selects server-side processing
// and may be empty for the original object. size is -1 when unknown.
// The caller must close the returned reader.
func (c *Client) Download(ctx context.Context, key, process string) (io.ReadCloser, int64, error) {
	var query url.Values
	if process != "" {
		query = url.Values{ProcessParam: {process}}
	}

	op := fmt.Sprintf("download %q", key)
	resp, err := c.do(ctx, request{
		op:       op,
		method:   nethttp.MethodGet,
		path:     "/download/" + escapeKey(key),
		query:    query,
		header:   nethttp.Header{"Accept": {"*/*"}},
		auth:     true,
		transfer: true,
	})
	if err != nil {
		return nil, 0, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, 0, statusError(op, resp)
	}
	return resp.Body, resp.ContentLength, nil
}

// Thumbnail fetches processed bytes for key, used for list and grid previews.
func (c *Client) Thumbnail(ctx context.Context, key, process string) ([]byte, error) {
	body, _, err := c.Download(ctx, key, process)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &NetworkError{Op: fmt.Sprintf("thumbnail %q", key), Err: err}
	}
	return data, nil
}

// statusError turns a failed streaming response into an APIError when the
// body is a JSON envelope, or a NetworkError otherwise.
func statusError(op string, resp *nethttp.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, constants.MaxErrorBodyBytes))
	var env envelope
	if json.Unmarshal(data, &env) == nil && (env.Error != "" || env.Message != "") {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}
	return &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(truncate(data))}
}
