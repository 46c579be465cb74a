package domain

import (
	"fmt"
	"strings"
	"time"
)

// Category partitions the gallery into finished works and works in progress.
type Category string

const (
	CategoryFinished Category = "finished"
	CategoryWIP      Category = "wip"
)

const (
	// MinWidth and MaxWidth bound the relative display-size multiplier.
	MinWidth = 1
	MaxWidth = 7
	// DefaultWidth is used when a new image does not specify one.
	DefaultWidth = 1
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c == CategoryFinished || c == CategoryWIP
}

// ParseCategory normalizes user input into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: category must be %q or %q", ErrInvalid, CategoryFinished, CategoryWIP)
	}
	return c, nil
}

// GalleryImage represents one artwork or photo.
//
// The ID is assigned by the gallery service at creation and never reused.
// Src is unique across all images.
type GalleryImage struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	ID  string `json:"id"`
	Src string `json:"src"`

	// ─────────────────────────────
	// Presentation
	// ─────────────────────────────

	Alt         string   `json:"alt"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Year        int      `json:"year"`

	// Order is the display position inside the category. It is not
	// guaranteed to be unique; ties are broken by creation time then id.
	Order int `json:"order"`

	// Width is a relative display-size multiplier in [MinWidth, MaxWidth].
	Width int `json:"width"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ValidWidth reports whether w is an allowed display width.
func ValidWidth(w int) bool {
	return w >= MinWidth && w <= MaxWidth
}

// ErrWidthRange is the user-facing message for an out-of-range width.
const ErrWidthRange = "Width must be between 1 and 7"

// Validate checks the invariants of a complete image record.
func (img GalleryImage) Validate() error {
	if strings.TrimSpace(img.Src) == "" {
		return fmt.Errorf("%w: src is required", ErrInvalid)
	}
	if !img.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalid, img.Category)
	}
	if !ValidWidth(img.Width) {
		return fmt.Errorf("%w: %s", ErrInvalid, ErrWidthRange)
	}
	return nil
}

// NewImage carries the metadata needed to create an image. Src is empty for
// uploads (the service derives it from the stored object).
type NewImage struct {
	Src         string   `json:"src" validate:"omitempty,url"`
	Alt         string   `json:"alt" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Category    Category `json:"category" validate:"required,oneof=finished wip"`
	Year        int      `json:"year" validate:"required,gt=0"`
	Width       int      `json:"width,omitempty" validate:"omitempty,min=1,max=7"`
}

// ImagePatch is a partial update. Nil fields are left untouched.
type ImagePatch struct {
	Alt         *string   `json:"alt,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    *Category `json:"category,omitempty" validate:"omitempty,oneof=finished wip"`
	Year        *int      `json:"year,omitempty" validate:"omitempty,gt=0"`
	Order       *int      `json:"order,omitempty" validate:"omitempty,gte=0"`
	Width       *int      `json:"width,omitempty" validate:"omitempty,min=1,max=7"`
}

// Empty reports whether the patch changes nothing.
func (p ImagePatch) Empty() bool {
	return p.Alt == nil && p.Description == nil && p.Category == nil &&
		p.Year == nil && p.Order == nil && p.Width == nil
}

// Validate checks the patch without a validator instance so that clients can
// reject bad input before any network call.
func (p ImagePatch) Validate() error {
	if p.Empty() {
		return fmt.Errorf("%w: no fields to update", ErrInvalid)
	}
	if p.Width != nil && !ValidWidth(*p.Width) {
		return fmt.Errorf("%w: %s", ErrInvalid, ErrWidthRange)
	}
	if p.Category != nil && !p.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalid, *p.Category)
	}
	if p.Year != nil && *p.Year <= 0 {
		return fmt.Errorf("%w: year must be positive", ErrInvalid)
	}
	if p.Order != nil && *p.Order < 0 {
		return fmt.Errorf("%w: order must not be negative", ErrInvalid)
	}
	return nil
}

// Apply returns a copy of img with the patch merged in.
func (p ImagePatch) Apply(img GalleryImage) GalleryImage {
	if p.Alt != nil {
		img.Alt = *p.Alt
	}
	if p.Description != nil {
		img.Description = *p.Description
	}
	if p.Category != nil {
		img.Category = *p.Category
	}
	if p.Year != nil {
		img.Year = *p.Year
	}
	if p.Order != nil {
		img.Order = *p.Order
	}
	if p.Width != nil {
		img.Width = *p.Width
	}
	return img
}

// Resize, Rename and Recategorize build single-field patches.
func Resize(width int) ImagePatch { return ImagePatch{Width: &width} }

func Rename(alt string) ImagePatch { return ImagePatch{Alt: &alt} }

func Recategorize(c Category) ImagePatch { return ImagePatch{Category: &c} }
