package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/driveguard/backend/internal/domain"
)

// PostgresRepository implements domain.EmergencyRepository
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// SaveRequest persists an emergency request to PostgreSQL
func (r *PostgresRepository) SaveRequest(ctx context.Context, req domain.EmergencyRequest) error {
	query := `
		INSERT INTO emergency_requests (
			id, service_type, latitude, longitude, user_id,
			additional_info, phone_number, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		req.ID, req.ServiceType, req.Latitude, req.Longitude, req.UserID,
		req.AdditionalInfo, req.PhoneNumber, req.Status, req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save emergency request: %w", err)
	}

	return nil
}

// GetRequest retrieves a single emergency request by id
func (r *PostgresRepository) GetRequest(ctx context.Context, id string) (domain.EmergencyRequest, bool, error) {
	query := `
		SELECT id, service_type, latitude, longitude, user_id,
			   additional_info, phone_number, status, created_at
		FROM emergency_requests
		WHERE id = $1
	`

	var req domain.EmergencyRequest
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&req.ID, &req.ServiceType, &req.Latitude, &req.Longitude, &req.UserID,
		&req.AdditionalInfo, &req.PhoneNumber, &req.Status, &req.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.EmergencyRequest{}, false, nil
	}
	if err != nil {
		return domain.EmergencyRequest{}, false, fmt.Errorf("postgres: failed to query emergency request: %w", err)
	}

	return req, true, nil
}

// ListRequests retrieves all emergency requests, newest first
func (r *PostgresRepository) ListRequests(ctx context.Context) ([]domain.EmergencyRequest, error) {
	query := `
		SELECT id, service_type, latitude, longitude, user_id,
			   additional_info, phone_number, status, created_at
		FROM emergency_requests
		ORDER BY created_at DESC
		LIMIT 500
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query emergency requests: %w", err)
	}
	defer rows.Close()

	var results []domain.EmergencyRequest
	for rows.Next() {
		var req domain.EmergencyRequest
		err := rows.Scan(
			&req.ID, &req.ServiceType, &req.Latitude, &req.Longitude, &req.UserID,
			&req.AdditionalInfo, &req.PhoneNumber, &req.Status, &req.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan emergency request row: %w", err)
		}
		results = append(results, req)
	}

	return results, nil
}

// PurgeOlderThan removes requests created before the cutoff
func (r *PostgresRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM emergency_requests WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to purge emergency requests: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}
