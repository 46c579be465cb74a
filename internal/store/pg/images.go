package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/MrSnakeDoc/folio/internal/domain"
)

const imageColumns = `id, src, alt, description, category, year, "order", width, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (domain.GalleryImage, error) {
	var img domain.GalleryImage
	var category string
	err := row.Scan(&img.ID, &img.Src, &img.Alt, &img.Description, &category,
		&img.Year, &img.Order, &img.Width, &img.CreatedAt, &img.UpdatedAt)
	img.Category = domain.Category(category)
	return img, err
}

// ListImages returns every image sorted by category, order, creation time
// and id.
func (s *Storage) ListImages(ctx context.Context) ([]domain.GalleryImage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+imageColumns+` FROM gallery_images ORDER BY category, "order", created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	images := make([]domain.GalleryImage, 0)
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate images: %w", err)
	}
	return images, nil
}

// GetImage fetches one image by id.
func (s *Storage) GetImage(ctx context.Context, id string) (domain.GalleryImage, error) {
	img, err := scanImage(s.db.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM gallery_images WHERE id = $1`, id))
	if err != nil {
		return domain.GalleryImage{}, translate(err, "image "+id)
	}
	return img, nil
}

// CreateImage inserts a new image at the end of its category. The order is
// computed inside the insert so that concurrent creations do not read the
// same maximum twice within one statement.
func (s *Storage) CreateImage(ctx context.Context, in domain.NewImage) (domain.GalleryImage, error) {
	width := in.Width
	if width == 0 {
		width = domain.DefaultWidth
	}

	img, err := scanImage(s.db.QueryRowContext(ctx, `
		INSERT INTO gallery_images (id, src, alt, description, category, year, "order", width)
		SELECT $1, $2, $3, $4, $5, $6, COALESCE(MAX("order") + 1, 0), $7
		FROM gallery_images WHERE category = $5
		RETURNING `+imageColumns,
		uuid.NewString(), in.Src, in.Alt, in.Description, string(in.Category), in.Year, width))
	if err != nil {
		return domain.GalleryImage{}, translate(err, "image "+in.Src)
	}
	return img, nil
}

// UpdateImage applies a partial update and returns the stored record.
func (s *Storage) UpdateImage(ctx context.Context, id string, p domain.ImagePatch) (domain.GalleryImage, error) {
	sets := make([]string, 0, 7)
	args := make([]any, 0, 7)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if p.Alt != nil {
		add("alt", *p.Alt)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.Category != nil {
		add("category", string(*p.Category))
	}
	if p.Year != nil {
		add("year", *p.Year)
	}
	if p.Order != nil {
		add(`"order"`, *p.Order)
	}
	if p.Width != nil {
		add("width", *p.Width)
	}
	if len(sets) == 0 {
		return s.GetImage(ctx, id)
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE gallery_images SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), imageColumns)

	img, err := scanImage(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return domain.GalleryImage{}, translate(err, "image "+id)
	}
	return img, nil
}

// DeleteImage removes the row and returns it so the caller can clean up the
// stored object.
func (s *Storage) DeleteImage(ctx context.Context, id string) (domain.GalleryImage, error) {
	img, err := scanImage(s.db.QueryRowContext(ctx,
		`DELETE FROM gallery_images WHERE id = $1 RETURNING `+imageColumns, id))
	if err != nil {
		return domain.GalleryImage{}, translate(err, "image "+id)
	}
	return img, nil
}

// ReorderImages rewrites "order" for the listed images in one transaction.
// Each image gets its position among the listed images of its own category.
// Unknown ids roll the whole batch back.
func (s *Storage) ReorderImages(ctx context.Context, ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate id %s", domain.ErrInvalid, id)
		}
		seen[id] = struct{}{}
	}
	if len(ids) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		categories, err := imageCategories(ctx, tx, ids)
		if err != nil {
			return err
		}
		if len(categories) != len(ids) {
			for _, id := range ids {
				if _, ok := categories[id]; !ok {
					return fmt.Errorf("%w: image %s", domain.ErrNotFound, id)
				}
			}
		}

		positions := make(map[domain.Category]int, 2)
		for _, id := range ids {
			c := categories[id]
			if _, err := tx.ExecContext(ctx,
				`UPDATE gallery_images SET "order" = $1, updated_at = now() WHERE id = $2`,
				positions[c], id); err != nil {
				return fmt.Errorf("failed to reorder image %s: %w", id, err)
			}
			positions[c]++
		}
		return nil
	})
}

func imageCategories(ctx context.Context, q Querier, ids []string) (map[string]domain.Category, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, category FROM gallery_images WHERE id = ANY($1) FOR UPDATE`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load image categories: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Category, len(ids))
	for rows.Next() {
		var id, category string
		if err := rows.Scan(&id, &category); err != nil {
			return nil, fmt.Errorf("failed to scan image category: %w", err)
		}
		out[id] = domain.Category(category)
	}
	return out, rows.Err()
}

// ImageSources returns the src of every stored image.
func (s *Storage) ImageSources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT src FROM gallery_images`)
	if err != nil {
		return nil, fmt.Errorf("failed to list image sources: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, fmt.Errorf("failed to scan image source: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}
