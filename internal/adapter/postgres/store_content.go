package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/sitecms/internal/domain/content"
)

const contentColumns = `id, site_id, kind, title, body, progress, author_id, created_at`

func scanContent(row scannable) (content.Item, error) {
	var it content.Item
	err := row.Scan(&it.ID, &it.SiteID, &it.Kind, &it.Title, &it.Body, &it.Progress, &it.AuthorID, &it.CreatedAt)
	return it, err
}

// --- Content ---

func (s *Store) CreateContent(ctx context.Context, item *content.Item) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO content_items (id, namespace, site_id, kind, title, body, progress, author_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, s.ns, item.SiteID, item.Kind, item.Title, item.Body, item.Progress, item.AuthorID, item.CreatedAt)
	if err != nil {
		return uniqueViolation(err, "create content %s", item.ID)
	}
	return nil
}

func (s *Store) ListContent(ctx context.Context, siteID string, kind content.Kind) ([]content.Item, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+contentColumns+`
		 FROM content_items WHERE namespace = $1 AND site_id = $2 AND kind = $3
		 ORDER BY created_at DESC, seq DESC`, s.ns, siteID, kind)
	if err != nil {
		return nil, fmt.Errorf("list content %s/%s: %w", siteID, kind, err)
	}
	defer rows.Close()

	var items []content.Item
	for rows.Next() {
		it, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		items = append(items, it)
	}
	return orEmpty(items), rows.Err()
}

func (s *Store) GetContent(ctx context.Context, siteID, id string) (*content.Item, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+contentColumns+`
		 FROM content_items WHERE namespace = $1 AND site_id = $2 AND id = $3`, s.ns, siteID, id)
	it, err := scanContent(row)
	if err != nil {
		return nil, notFoundWrap(err, "get content %s", id)
	}
	return &it, nil
}

func (s *Store) DeleteContent(ctx context.Context, siteID, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM content_items WHERE namespace = $1 AND site_id = $2 AND id = $3`, s.ns, siteID, id)
	return execExpectOne(tag, err, "delete content %s", id)
}

func (s *Store) CountContent(ctx context.Context, siteID string) (map[content.Kind]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT kind, count(*) FROM content_items
		 WHERE namespace = $1 AND site_id = $2 GROUP BY kind`, s.ns, siteID)
	if err != nil {
		return nil, fmt.Errorf("count content %s: %w", siteID, err)
	}
	defer rows.Close()

	counts := make(map[content.Kind]int, len(content.Kinds))
	for _, k := range content.Kinds {
		counts[k] = 0
	}
	for rows.Next() {
		var k content.Kind
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return nil, fmt.Errorf("scan content count: %w", err)
		}
		counts[k] = n
	}
	return counts, rows.Err()
}
