package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/sitecms/internal/domain"
	"github.com/Strob0t/sitecms/internal/domain/request"
)

const requestColumns = `id, site_id, requester_name, requester_email, service_type, description,
	status, created_by, handled_by, handled_at, created_at`

func scanRequest(row scannable) (request.Request, error) {
	var r request.Request
	var handledBy *string
	err := row.Scan(&r.ID, &r.SiteID, &r.RequesterName, &r.RequesterEmail, &r.ServiceType, &r.Description,
		&r.Status, &r.CreatedBy, &handledBy, &r.HandledAt, &r.CreatedAt)
	r.HandledBy = derefString(handledBy)
	return r, err
}

// --- Service requests ---

func (s *Store) CreateRequest(ctx context.Context, req *request.Request) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO service_requests (id, namespace, site_id, requester_name, requester_email, service_type,
		                               description, status, created_by, handled_by, handled_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		req.ID, s.ns, req.SiteID, req.RequesterName, req.RequesterEmail, req.ServiceType,
		req.Description, req.Status, req.CreatedBy, nullIfEmpty(req.HandledBy), req.HandledAt, req.CreatedAt)
	if err != nil {
		return uniqueViolation(err, "create request %s", req.ID)
	}
	return nil
}

func (s *Store) ListRequests(ctx context.Context, siteID string) ([]request.Request, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+requestColumns+`
		 FROM service_requests WHERE namespace = $1 AND site_id = $2
		 ORDER BY created_at DESC, seq DESC`, s.ns, siteID)
	if err != nil {
		return nil, fmt.Errorf("list requests %s: %w", siteID, err)
	}
	defer rows.Close()

	var out []request.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, r)
	}
	return orEmpty(out), rows.Err()
}

func (s *Store) GetRequest(ctx context.Context, siteID, id string) (*request.Request, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+requestColumns+`
		 FROM service_requests WHERE namespace = $1 AND site_id = $2 AND id = $3`, s.ns, siteID, id)
	r, err := scanRequest(row)
	if err != nil {
		return nil, notFoundWrap(err, "get request %s", id)
	}
	return &r, nil
}

// UpdateRequestStatus writes the new status only while the stored one is in
// from. When no row matches it tells "missing" apart from "moved on".
func (s *Store) UpdateRequestStatus(ctx context.Context, siteID, id string, from []request.Status, to request.Status, handledBy string, handledAt time.Time) (*request.Request, error) {
	allowed := make([]string, len(from))
	for i, st := range from {
		allowed[i] = string(st)
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE service_requests SET status = $4, handled_by = $5, handled_at = $6
		 WHERE namespace = $1 AND site_id = $2 AND id = $3 AND status = ANY($7)
		 RETURNING `+requestColumns,
		s.ns, siteID, id, to, handledBy, handledAt, allowed)
	r, err := scanRequest(row)
	if err == nil {
		return &r, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update request %s: %w", id, err)
	}

	cur, getErr := s.GetRequest(ctx, siteID, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("update request %s from %s: %w", id, cur.Status, domain.ErrConflict)
}

func (s *Store) CountRequests(ctx context.Context, siteID string) (map[request.Status]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, count(*) FROM service_requests
		 WHERE namespace = $1 AND site_id = $2 GROUP BY status`, s.ns, siteID)
	if err != nil {
		return nil, fmt.Errorf("count requests %s: %w", siteID, err)
	}
	defer rows.Close()

	counts := map[request.Status]int{
		request.StatusNew:        0,
		request.StatusInProgress: 0,
		request.StatusDone:       0,
	}
	for rows.Next() {
		var st request.Status
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("scan request count: %w", err)
		}
		counts[st] = n
	}
	return counts, rows.Err()
}
