package hearthside

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

// ListOptions selects a page of a collection.
type ListOptions struct {
	Page  int
	Limit int
	// Sort is passed through as the "sort" query parameter.
	Sort string
	// Filter holds additional query parameters.
	Filter map[string]string
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Sort != "" {
		q.Set("sort", o.Sort)
	}
	for k, v := range o.Filter {
		q.Set(k, v)
	}
	return q
}

// Resource is a REST collection such as /posts. Payloads are whatever the
// caller decodes them into.
type Resource struct {
	c    *Client
	path string
}

// Resource returns the collection at path, relative to the base URL.
func (c *Client) Resource(path string) *Resource {
	return &Resource{c: c, path: "/" + strings.Trim(path, "/")}
}

// Path returns the collection path.
func (r *Resource) Path() string {
	return r.path
}

// Child returns a collection nested under one item, for example the
// comments of a post: c.Posts.Child(id, "comments").
func (r *Resource) Child(id, collection string) *Resource {
	return &Resource{c: r.c, path: r.item(id) + "/" + strings.Trim(collection, "/")}
}

func (r *Resource) item(id string) string {
	return r.path + "/" + url.PathEscape(id)
}

// List decodes one page of the collection into out.
func (r *Resource) List(ctx context.Context, opts ListOptions, out any) (*Pagination, error) {
	return r.c.Get(ctx, r.path, opts.query(), out)
}

// Get decodes the item with the given id into out.
func (r *Resource) Get(ctx context.Context, id string, out any) error {
	_, err := r.c.Get(ctx, r.item(id), nil, out)
	return err
}

// Create adds an item and decodes the created item into out.
func (r *Resource) Create(ctx context.Context, in, out any) error {
	return r.c.Post(ctx, r.path, in, out)
}

// Update replaces the item with the given id and decodes the result into out.
func (r *Resource) Update(ctx context.Context, id string, in, out any) error {
	return r.c.Put(ctx, r.item(id), in, out)
}

// Patch changes some fields of the item with the given id.
func (r *Resource) Patch(ctx context.Context, id string, in, out any) error {
	return r.c.Patch(ctx, r.item(id), in, out)
}

// Delete removes the item with the given id.
func (r *Resource) Delete(ctx context.Context, id string) error {
	return r.c.Delete(ctx, r.item(id))
}
