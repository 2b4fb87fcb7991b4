package hearthside

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hearthside/client-go/internal/api"
)

// Do sends a request to path, relative to the base URL, and decodes the data
// member of the response into out. out may be nil. It returns the
// pagination block of list responses, or nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) (*Pagination, error) {
	return c.send(ctx, api.Request{Method: method, Path: path, Body: body}, out)
}

// Get sends a GET request with the given query.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) (*Pagination, error) {
	return c.send(ctx, api.Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post sends a POST request.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	_, err := c.send(ctx, api.Request{Method: http.MethodPost, Path: path, Body: body}, out)
	return err
}

// Put sends a PUT request.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	_, err := c.send(ctx, api.Request{Method: http.MethodPut, Path: path, Body: body}, out)
	return err
}

// Patch sends a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	_, err := c.send(ctx, api.Request{Method: http.MethodPatch, Path: path, Body: body}, out)
	return err
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.send(ctx, api.Request{Method: http.MethodDelete, Path: path}, nil)
	return err
}

func (c *Client) send(ctx context.Context, req api.Request, out any) (*Pagination, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	meta, err := c.api.Do(ctx, req, out)
	if err != nil {
		return nil, c.report(err)
	}
	return meta.Pagination, nil
}

// Fetch sends a GET request and decodes the response data as a T.
func Fetch[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	var out T
	_, err := c.Get(ctx, path, query, &out)
	return out, err
}

// FetchPage sends a GET request for a list and returns its items with the
// pagination block.
func FetchPage[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, *Pagination, error) {
	var out []T
	page, err := c.Get(ctx, path, query, &out)
	if err != nil {
		return nil, nil, err
	}
	return out, page, nil
}
