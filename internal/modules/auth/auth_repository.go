package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"quickclean/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryInterface defines the contract for profile persistence used by auth.
type RepositoryInterface interface {
	Create(ctx context.Context, p *models.Profile) (*models.Profile, error)
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
	FindByID(ctx context.Context, id string) (*models.Profile, error)
	UpsertAdmin(ctx context.Context, name, email, passwordHash string) (*models.Profile, error)
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

const profileColumns = `id, name, email, phone, password_hash, role, availability_status, rating, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	query := `
		INSERT INTO profiles (name, email, phone, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + profileColumns
	row := r.db.QueryRow(ctx, query, p.Name, strings.ToLower(p.Email), p.Phone, p.PasswordHash, string(p.Role))
	created, err := ScanProfile(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, models.ErrEmailTaken
		}
		return nil, fmt.Errorf("repository.CreateProfile: %w", err)
	}
	return created, nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	row := r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE email = $1`, strings.ToLower(email))
	p, err := ScanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("repository.FindByEmail: %w", err)
	}
	return p, nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	row := r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	p, err := ScanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("repository.FindProfileByID: %w", err)
	}
	return p, nil
}

// UpsertAdmin creates the admin account or promotes and re-keys an existing one.
func (r *Repository) UpsertAdmin(ctx context.Context, name, email, passwordHash string) (*models.Profile, error) {
	query := `
		INSERT INTO profiles (name, email, password_hash, role)
		VALUES ($1, $2, $3, 'admin')
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			password_hash = EXCLUDED.password_hash,
			role = 'admin',
			updated_at = now()
		RETURNING ` + profileColumns
	p, err := ScanProfile(r.db.QueryRow(ctx, query, name, strings.ToLower(email), passwordHash))
	if err != nil {
		return nil, fmt.Errorf("repository.UpsertAdmin: %w", err)
	}
	return p, nil
}

// ScanProfile scans the profileColumns projection. Other modules reading
// profiles reuse it.
func ScanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	var role, availability string
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.PasswordHash, &role, &availability,
		&p.Rating, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	p.Role = models.Role(role)
	p.Availability = models.Availability(availability)
	return &p, nil
}
