package client

import (
	"context"
	"net/http"
	"strconv"

	"github.com/MrSnakeDoc/folio/internal/domain"
)

func (c *Client) GetLinks(ctx context.Context) ([]domain.Link, error) {
	var links []domain.Link
	if err := c.doJSON(ctx, http.MethodGet, "/links", nil, &links); err != nil {
		return nil, err
	}
	if links == nil {
		links = []domain.Link{}
	}
	return links, nil
}

func (c *Client) CreateLink(ctx context.Context, in domain.LinkInput) (domain.Link, error) {
	var link domain.Link
	err := c.doJSON(ctx, http.MethodPost, "/links", in, &link)
	return link, err
}

func (c *Client) UpdateLink(ctx context.Context, id int, in domain.LinkInput) (domain.Link, error) {
	var link domain.Link
	err := c.doJSON(ctx, http.MethodPut, "/links/"+strconv.Itoa(id), in, &link)
	return link, err
}

func (c *Client) DeleteLink(ctx context.Context, id int) error {
	return c.doJSON(ctx, http.MethodDelete, "/links/"+strconv.Itoa(id), nil, nil)
}

type linkRef struct {
	ID int `json:"id"`
}

// ReorderLinks sends the ids in their new order.
func (c *Client) ReorderLinks(ctx context.Context, ids []int) error {
	refs := make([]linkRef, len(ids))
	for i, id := range ids {
		refs[i] = linkRef{ID: id}
	}
	return c.doJSON(ctx, http.MethodPut, "/links/reorder", struct {
		Links []linkRef `json:"links"`
	}{Links: refs}, nil)
}
