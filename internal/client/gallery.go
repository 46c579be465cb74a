package client

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/folio/internal/domain"
)

// Upload is a binary plus its metadata for POST /gallery.
type Upload struct {
	Filename    string
	ContentType string // guessed from Filename when empty
	Body        io.Reader
	Meta        domain.NewImage
}

func (c *Client) GetGallery(ctx context.Context) (domain.GalleryData, error) {
	var data domain.GalleryData
	if err := c.doJSON(ctx, http.MethodGet, "/gallery", nil, &data); err != nil {
		return domain.GalleryData{}, err
	}
	return data.Normalize(), nil
}

// CreateImage streams a multipart upload; the body is not buffered in memory.
func (c *Client) CreateImage(ctx context.Context, up Upload) (domain.GalleryImage, error) {
	if up.Body == nil {
		return domain.GalleryImage{}, fmt.Errorf("%w: No image file provided", domain.ErrInvalid)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUpload(mw, up))
	}()

	var img domain.GalleryImage
	err := c.do(ctx, http.MethodPost, "/gallery", pr, mw.FormDataContentType(), &img)
	// unblocks the writer if the request ended before the body was consumed
	_ = pr.Close()
	return img, err
}

func writeUpload(mw *multipart.Writer, up Upload) error {
	fields := [][2]string{
		{"alt", up.Meta.Alt},
		{"description", up.Meta.Description},
		{"category", string(up.Meta.Category)},
		{"year", strconv.Itoa(up.Meta.Year)},
	}
	if up.Meta.Width != 0 {
		fields = append(fields, [2]string{"width", strconv.Itoa(up.Meta.Width)})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}

	ct := up.ContentType
	if ct == "" {
		ct = contentTypeFor(up.Filename)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filepath.Base(up.Filename)))
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, up.Body); err != nil {
		return err
	}
	return mw.Close()
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".avif":
		return "image/avif"
	case ".svg":
		return "image/svg+xml"
	}
	return "application/octet-stream"
}

// RegisterImage records an image whose binary already exists.
func (c *Client) RegisterImage(ctx context.Context, meta domain.NewImage) (domain.GalleryImage, error) {
	var img domain.GalleryImage
	err := c.doJSON(ctx, http.MethodPost, "/gallery/existing", meta, &img)
	return img, err
}

func (c *Client) UpdateImage(ctx context.Context, id string, p domain.ImagePatch) (domain.GalleryImage, error) {
	var img domain.GalleryImage
	err := c.doJSON(ctx, http.MethodPut, "/gallery/"+url.PathEscape(id), p, &img)
	return img, err
}

func (c *Client) DeleteImage(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/gallery/"+url.PathEscape(id), nil, nil)
}

// ReorderImages persists a full ordered id list in one call.
func (c *Client) ReorderImages(ctx context.Context, ids []string) error {
	return c.doJSON(ctx, http.MethodPut, "/gallery/reorder", struct {
		IDs []string `json:"ids"`
	}{IDs: ids}, nil)
}
