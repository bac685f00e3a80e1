package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/pharmesol-assistant/internal/pharmacy"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// PostgresStore persists conversations and messages in PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresStore creates a store over db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	if db == nil {
		panic("conversation: sql db required")
	}
	return &PostgresStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const conversationColumns = `id, phone_number, status, state, pharmacy_id, is_returning_pharmacy, pharmacy_data, created_at, updated_at`

func (s *PostgresStore) FindActiveByPhone(ctx context.Context, phone string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversation
		WHERE phone_number = $1 AND status = 'ACTIVE'
		ORDER BY id DESC
		LIMIT 1
	`, phone)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: find active: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64, withMessages bool) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversation
		WHERE id = $1
	`, id)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: find by id: %w", err)
	}
	if !withMessages {
		return c, nil
	}
	c.Messages, err = s.listMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) Save(ctx context.Context, c *Conversation) error {
	now := s.now()
	if c.ID == 0 {
		return s.insert(ctx, c, now)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversation
		SET status = $2, state = $3, updated_at = $4
		WHERE id = $1
	`, c.ID, string(c.Status), string(c.State), now)
	if err != nil {
		return fmt.Errorf("conversation: update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("conversation: update rows affected: %w", err)
	}
	if affected == 0 {
		return ErrConversationNotFound
	}
	c.UpdatedAt = now
	return nil
}

func (s *PostgresStore) insert(ctx context.Context, c *Conversation, now time.Time) error {
	if c.Status == "" {
		c.Status = StatusActive
	}
	var snapshot any
	if c.PharmacyData != nil {
		raw, err := json.Marshal(c.PharmacyData)
		if err != nil {
			return fmt.Errorf("conversation: marshal pharmacy snapshot: %w", err)
		}
		snapshot = string(raw)
	}
	var pharmacyID any
	if c.PharmacyID != nil {
		pharmacyID = *c.PharmacyID
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO conversation (phone_number, status, state, pharmacy_id, is_returning_pharmacy, pharmacy_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id
	`, c.PhoneNumber, string(c.Status), string(c.State), pharmacyID, c.IsReturningPharmacy, snapshot, now).Scan(&c.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrActiveConversationExists
		}
		return fmt.Errorf("conversation: insert: %w", err)
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

// AppendMessage clamps the timestamp to the latest one already stored for
// the conversation so ordering by timestamp matches insertion order.
func (s *PostgresStore) AppendMessage(ctx context.Context, m *Message) error {
	var metadata any
	if m.Metadata != nil {
		raw, err := json.Marshal(m.Metadata)
		if err != nil {
			return fmt.Errorf("conversation: marshal message metadata: %w", err)
		}
		metadata = string(raw)
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO message (conversation_id, role, content, metadata, timestamp)
		VALUES ($1, $2, $3, $4, GREATEST($5, COALESCE((SELECT MAX(timestamp) FROM message WHERE conversation_id = $1), $5)))
		RETURNING id, timestamp
	`, m.ConversationID, string(m.Role), m.Content, metadata, s.now()).Scan(&m.ID, &m.Timestamp)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return ErrConversationNotFound
		}
		return fmt.Errorf("conversation: insert message: %w", err)
	}
	return nil
}

func (s *PostgresStore) listMessages(ctx context.Context, conversationID int64) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, metadata, timestamp
		FROM message
		WHERE conversation_id = $1
		ORDER BY timestamp ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("conversation: list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m        Message
			role     string
			metadata []byte
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &metadata, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("conversation: scan message: %w", err)
		}
		m.Role = Role(role)
		if len(metadata) > 0 {
			var md MessageMetadata
			if err := json.Unmarshal(metadata, &md); err != nil {
				return nil, fmt.Errorf("conversation: decode message metadata: %w", err)
			}
			m.Metadata = &md
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: iterate messages: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var (
		c          Conversation
		status     string
		state      string
		pharmacyID sql.NullString
		snapshot   []byte
	)
	if err := row.Scan(&c.ID, &c.PhoneNumber, &status, &state, &pharmacyID, &c.IsReturningPharmacy, &snapshot, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Status = Status(status)
	c.State = State(state)
	if pharmacyID.Valid {
		id := pharmacyID.String
		c.PharmacyID = &id
	}
	if len(snapshot) > 0 {
		var p pharmacy.Pharmacy
		if err := json.Unmarshal(snapshot, &p); err != nil {
			return nil, fmt.Errorf("decode pharmacy snapshot: %w", err)
		}
		c.PharmacyData = &p
	}
	return &c, nil
}
