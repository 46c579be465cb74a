package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Link is an outbound link shown in the site navigation.
type Link struct {
	ID    int    `json:"id"`
	Text  string `json:"text"`
	URL   string `json:"url"`
	Order int    `json:"order"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LinkInput holds the editable fields of a link.
type LinkInput struct {
	Text string `json:"text" validate:"required"`
	URL  string `json:"url" validate:"required"`
}

// Validate requires both fields and an absolute URL.
func (in LinkInput) Validate() error {
	if strings.TrimSpace(in.Text) == "" || strings.TrimSpace(in.URL) == "" {
		return fmt.Errorf("%w: Text and URL are required", ErrInvalid)
	}
	u, err := url.Parse(in.URL)
	if err != nil || u.Scheme == "" {
		return fmt.Errorf("%w: url must be absolute", ErrInvalid)
	}
	return nil
}

// LinkOrderStride is added to the index when links are reordered, so the
// first link gets order 1.
const LinkOrderStride = 1

// ReorderLinks rewrites order as index+LinkOrderStride following ids.
func ReorderLinks(links []Link, ids []int) ([]Link, error) {
	byID := make(map[int]Link, len(links))
	for _, l := range links {
		byID[l.ID] = l
	}
	out := make([]Link, 0, len(ids))
	for i, id := range ids {
		l, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: link %d", ErrNotFound, id)
		}
		l.Order = i + LinkOrderStride
		out = append(out, l)
	}
	return out, nil
}
