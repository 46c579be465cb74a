package seed

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/MrSnakeDoc/folio/internal/domain"
)

// Mapper converts seed entries to domain inputs.
type Mapper struct {
	publicURL string
}

// NewMapper resolves relative file entries against publicURL, the public
// base URL of the bucket.
func NewMapper(publicURL string) *Mapper {
	return &Mapper{publicURL: strings.TrimRight(publicURL, "/")}
}

// MapImages validates every entry and returns them in file order. The first
// invalid entry aborts the mapping.
func (m *Mapper) MapImages(cfg Config) ([]domain.NewImage, error) {
	out := make([]domain.NewImage, 0, len(cfg.Images))
	for i, e := range cfg.Images {
		src, err := m.resolve(e)
		if err != nil {
			return nil, fmt.Errorf("images[%d]: %w", i, err)
		}
		category, err := domain.ParseCategory(e.Category)
		if err != nil {
			return nil, fmt.Errorf("images[%d]: %w", i, err)
		}
		if e.Width != 0 && !domain.ValidWidth(e.Width) {
			return nil, fmt.Errorf("images[%d]: %w: %s", i, domain.ErrInvalid, domain.ErrWidthRange)
		}

		out = append(out, domain.NewImage{
			Src:         src,
			Alt:         strings.TrimSpace(e.Alt),
			Description: strings.TrimSpace(e.Description),
			Category:    category,
			Year:        e.Year,
			Width:       e.Width,
		})
	}
	return out, nil
}

func (m *Mapper) resolve(e ImageEntry) (string, error) {
	src := strings.TrimSpace(e.Src)
	file := strings.TrimLeft(strings.TrimSpace(e.File), "/")

	switch {
	case src != "" && file != "":
		return "", fmt.Errorf("%w: src and file are mutually exclusive", domain.ErrInvalid)
	case src != "":
		u, err := url.Parse(src)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return "", fmt.Errorf("%w: src %q must be an absolute url", domain.ErrInvalid, src)
		}
		return src, nil
	case file != "":
		if m.publicURL == "" {
			return "", fmt.Errorf("%w: file %q needs a bucket public url", domain.ErrInvalid, file)
		}
		return m.publicURL + "/" + file, nil
	default:
		return "", fmt.Errorf("%w: src or file is required", domain.ErrInvalid)
	}
}

// MapLinks validates the link entries.
func (m *Mapper) MapLinks(cfg Config) ([]domain.LinkInput, error) {
	out := make([]domain.LinkInput, 0, len(cfg.Links))
	for i, e := range cfg.Links {
		in := domain.LinkInput{Text: strings.TrimSpace(e.Text), URL: strings.TrimSpace(e.URL)}
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("links[%d]: %w", i, err)
		}
		out = append(out, in)
	}
	return out, nil
}
