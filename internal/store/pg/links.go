package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/MrSnakeDoc/folio/internal/domain"
)

const linkColumns = `id, text, url, "order", created_at, updated_at`

func scanLink(row rowScanner) (domain.Link, error) {
	var l domain.Link
	err := row.Scan(&l.ID, &l.Text, &l.URL, &l.Order, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

// ListLinks returns links ordered by "order" then id.
func (s *Storage) ListLinks(ctx context.Context) ([]domain.Link, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+linkColumns+` FROM links ORDER BY "order", id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	links := make([]domain.Link, 0)
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate links: %w", err)
	}
	return links, nil
}

// CreateLink appends a link with order max+1, or 1 for the first link.
func (s *Storage) CreateLink(ctx context.Context, in domain.LinkInput) (domain.Link, error) {
	l, err := scanLink(s.db.QueryRowContext(ctx, `
		INSERT INTO links (text, url, "order")
		SELECT $1, $2, COALESCE(MAX("order"), 0) + 1 FROM links
		RETURNING `+linkColumns, in.Text, in.URL))
	if err != nil {
		return domain.Link{}, translate(err, "link")
	}
	return l, nil
}

// UpdateLink replaces text and url.
func (s *Storage) UpdateLink(ctx context.Context, id int, in domain.LinkInput) (domain.Link, error) {
	l, err := scanLink(s.db.QueryRowContext(ctx, `
		UPDATE links SET text = $1, url = $2, updated_at = now()
		WHERE id = $3 RETURNING `+linkColumns, in.Text, in.URL, id))
	if err != nil {
		return domain.Link{}, translate(err, fmt.Sprintf("link %d", id))
	}
	return l, nil
}

// DeleteLink removes a link.
func (s *Storage) DeleteLink(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM links WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete link %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete link %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: link %d", domain.ErrNotFound, id)
	}
	return nil
}

// ReorderLinks sets order = index+1 following ids, all or nothing.
func (s *Storage) ReorderLinks(ctx context.Context, ids []int) ([]domain.Link, error) {
	var out []domain.Link
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := lockLinks(ctx, tx, ids)
		if err != nil {
			return err
		}
		reordered, err := domain.ReorderLinks(current, ids)
		if err != nil {
			return err
		}
		for i, l := range reordered {
			updated, err := scanLink(tx.QueryRowContext(ctx,
				`UPDATE links SET "order" = $1, updated_at = now() WHERE id = $2 RETURNING `+linkColumns,
				l.Order, l.ID))
			if err != nil {
				return fmt.Errorf("failed to reorder link %d: %w", l.ID, err)
			}
			reordered[i] = updated
		}
		out = reordered
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func lockLinks(ctx context.Context, q Querier, ids []int) ([]domain.Link, error) {
	ids64 := make([]int64, len(ids))
	for i, id := range ids {
		ids64[i] = int64(id)
	}
	rows, err := q.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE id = ANY($1) FOR UPDATE`, pq.Array(ids64))
	if err != nil {
		return nil, fmt.Errorf("failed to load links: %w", err)
	}
	defer rows.Close()

	var out []domain.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
