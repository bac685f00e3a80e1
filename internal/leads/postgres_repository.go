package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores leads in the pharmacy_lead table.
type PostgresRepository struct {
	pool rowQuerier
	now  func() time.Time
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return newPostgresRepositoryWithQuerier(pool)
}

func newPostgresRepositoryWithQuerier(q rowQuerier) *PostgresRepository {
	return &PostgresRepository{pool: q, now: func() time.Time { return time.Now().UTC() }}
}

const selectLeadByPhone = `
	SELECT id, phone_number, pharmacy_name, contact_person, email, estimated_rx_volume,
	       notes, address, city, state, created_at, updated_at
	FROM pharmacy_lead
	WHERE phone_number = $1
`

// FindByPhone returns nil, nil when the number has no lead.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (*PharmacyLead, error) {
	var (
		lead                        PharmacyLead
		name, contact, email, notes *string
		address, city, state        *string
	)
	err := r.pool.QueryRow(ctx, selectLeadByPhone, phone).Scan(
		&lead.ID,
		&lead.PhoneNumber,
		&name,
		&contact,
		&email,
		&lead.EstimatedRxVolume,
		&notes,
		&address,
		&city,
		&state,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	lead.PharmacyName = deref(name)
	lead.ContactPerson = deref(contact)
	lead.Email = deref(email)
	lead.Notes = deref(notes)
	lead.Address = deref(address)
	lead.City = deref(city)
	lead.State = deref(state)
	return &lead, nil
}

// Save upserts on phone_number. Columns are only overwritten with non-null
// values so concurrent partial saves cannot clear each other's fields.
const upsertLead = `
	INSERT INTO pharmacy_lead (phone_number, pharmacy_name, contact_person, email, estimated_rx_volume,
	                           notes, address, city, state, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	ON CONFLICT (phone_number) DO UPDATE SET
		pharmacy_name       = COALESCE(EXCLUDED.pharmacy_name, pharmacy_lead.pharmacy_name),
		contact_person      = COALESCE(EXCLUDED.contact_person, pharmacy_lead.contact_person),
		email               = COALESCE(EXCLUDED.email, pharmacy_lead.email),
		estimated_rx_volume = COALESCE(EXCLUDED.estimated_rx_volume, pharmacy_lead.estimated_rx_volume),
		notes               = COALESCE(EXCLUDED.notes, pharmacy_lead.notes),
		address             = COALESCE(EXCLUDED.address, pharmacy_lead.address),
		city                = COALESCE(EXCLUDED.city, pharmacy_lead.city),
		state               = COALESCE(EXCLUDED.state, pharmacy_lead.state),
		updated_at          = EXCLUDED.updated_at
	RETURNING id, created_at, updated_at
`

func (r *PostgresRepository) Save(ctx context.Context, lead *PharmacyLead) error {
	if lead == nil || strings.TrimSpace(lead.PhoneNumber) == "" {
		return ErrMissingPhone
	}
	var volume *int
	if lead.EstimatedRxVolume != nil && *lead.EstimatedRxVolume > 0 {
		volume = lead.EstimatedRxVolume
	}
	if err := r.pool.QueryRow(ctx, upsertLead,
		lead.PhoneNumber,
		nullable(lead.PharmacyName),
		nullable(lead.ContactPerson),
		nullable(lead.Email),
		volume,
		nullable(lead.Notes),
		nullable(lead.Address),
		nullable(lead.City),
		nullable(lead.State),
		r.now(),
	).Scan(&lead.ID, &lead.CreatedAt, &lead.UpdatedAt); err != nil {
		return fmt.Errorf("leads: upsert failed: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
