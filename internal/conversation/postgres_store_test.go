package conversation

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/pharmesol-assistant/internal/pharmacy"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, time.Time) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	now := time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC)
	store := NewPostgresStore(db)
	store.now = func() time.Time { return now }
	return store, mock, now
}

var conversationRowColumns = []string{
	"id", "phone_number", "status", "state", "pharmacy_id", "is_returning_pharmacy", "pharmacy_data", "created_at", "updated_at",
}

func TestPostgresStoreInsertConversation(t *testing.T) {
	store, mock, now := newMockStore(t)
	id := "ph-1"
	conv := &Conversation{
		PhoneNumber:         "15551234567",
		State:               StatePharmacyIdentified,
		IsReturningPharmacy: true,
		PharmacyID:          &id,
		PharmacyData:        &pharmacy.Pharmacy{ID: id, Name: "Main"},
	}

	mock.ExpectQuery("INSERT INTO conversation").
		WithArgs("15551234567", "ACTIVE", "PHARMACY_IDENTIFIED", "ph-1", true, sqlmock.AnyArg(), now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	if err := store.Save(context.Background(), conv); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if conv.ID != 11 || conv.Status != StatusActive || !conv.CreatedAt.Equal(now) {
		t.Fatalf("unexpected conversation after insert: %+v", conv)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreInsertMapsUniqueViolation(t *testing.T) {
	store, mock, _ := newMockStore(t)
	mock.ExpectQuery("INSERT INTO conversation").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := store.Save(context.Background(), &Conversation{PhoneNumber: "1", State: StateCollectingLeadInfo})
	if !errors.Is(err, ErrActiveConversationExists) {
		t.Fatalf("expected ErrActiveConversationExists, got %v", err)
	}
}

func TestPostgresStoreUpdateConversation(t *testing.T) {
	store, mock, now := newMockStore(t)
	mock.ExpectExec("UPDATE conversation").
		WithArgs(int64(4), "FOLLOWUP_SCHEDULED", "SCHEDULING_FOLLOWUP", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE conversation").
		WithArgs(int64(5), "ACTIVE", "COMPLETED", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	conv := &Conversation{ID: 4, Status: StatusFollowupScheduled, State: StateSchedulingFollowup}
	if err := store.Save(context.Background(), conv); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	missing := &Conversation{ID: 5, Status: StatusActive, State: StateCompleted}
	if err := store.Save(context.Background(), missing); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreFindByIDWithMessages(t *testing.T) {
	store, mock, now := newMockStore(t)
	snapshot := []byte(`{"id":"ph-1","name":"Main","phone":"15551234567","rxVolume":12000,"email":null}`)

	mock.ExpectQuery("SELECT id, phone_number").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(conversationRowColumns).
			AddRow(int64(3), "15551234567", "ACTIVE", "PHARMACY_IDENTIFIED", "ph-1", true, snapshot, now, now))
	mock.ExpectQuery("SELECT id, conversation_id, role, content, metadata, timestamp").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "conversation_id", "role", "content", "metadata", "timestamp"}).
			AddRow(int64(1), int64(3), "ASSISTANT", "Hello!", nil, now).
			AddRow(int64(2), int64(3), "USER", "Hi", nil, now).
			AddRow(int64(3), int64(3), "ASSISTANT", "Sure", []byte(`{"toolCalls":[{"function":"highlight_rx_benefits","arguments":{"volume_tier":"HIGH"}}]}`), now))

	conv, err := store.FindByID(context.Background(), 3, true)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if conv.PharmacyData == nil || conv.PharmacyData.RxVolume != 12000 {
		t.Fatalf("expected decoded pharmacy snapshot, got %+v", conv.PharmacyData)
	}
	if conv.PharmacyID == nil || *conv.PharmacyID != "ph-1" {
		t.Fatalf("unexpected pharmacy id %v", conv.PharmacyID)
	}
	if len(conv.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(conv.Messages))
	}
	md := conv.Messages[2].Metadata
	if md == nil || len(md.ToolCalls) != 1 || md.ToolCalls[0].Function != "highlight_rx_benefits" {
		t.Fatalf("unexpected metadata %+v", md)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreFindByIDNotFound(t *testing.T) {
	store, mock, _ := newMockStore(t)
	mock.ExpectQuery("SELECT id, phone_number").
		WithArgs(int64(8)).
		WillReturnError(sql.ErrNoRows)

	if _, err := store.FindByID(context.Background(), 8, false); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestPostgresStoreFindActiveByPhone(t *testing.T) {
	store, mock, now := newMockStore(t)
	mock.ExpectQuery("WHERE phone_number = \\$1 AND status = 'ACTIVE'").
		WithArgs("5550000000").
		WillReturnRows(sqlmock.NewRows(conversationRowColumns))
	mock.ExpectQuery("WHERE phone_number = \\$1 AND status = 'ACTIVE'").
		WithArgs("5551234567").
		WillReturnRows(sqlmock.NewRows(conversationRowColumns).
			AddRow(int64(9), "5551234567", "ACTIVE", "COLLECTING_LEAD_INFO", nil, false, nil, now, now))

	none, err := store.FindActiveByPhone(context.Background(), "5550000000")
	if err != nil || none != nil {
		t.Fatalf("expected nil, nil; got %v %v", none, err)
	}
	conv, err := store.FindActiveByPhone(context.Background(), "5551234567")
	if err != nil || conv == nil {
		t.Fatalf("expected active conversation, got %v %v", conv, err)
	}
	if conv.PharmacyData != nil || conv.PharmacyID != nil || conv.IsReturningPharmacy {
		t.Fatalf("new lead conversation should carry no pharmacy: %+v", conv)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreAppendMessage(t *testing.T) {
	store, mock, now := newMockStore(t)
	mock.ExpectQuery("INSERT INTO message").
		WithArgs(int64(3), "ASSISTANT", "Done", sqlmock.AnyArg(), now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "timestamp"}).AddRow(int64(21), now))

	msg := &Message{
		ConversationID: 3,
		Role:           RoleAssistant,
		Content:        "Done",
		Metadata:       &MessageMetadata{ToolCalls: []ToolCallRecord{{Function: "schedule_callback"}}},
	}
	if err := store.AppendMessage(context.Background(), msg); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if msg.ID != 21 || !msg.Timestamp.Equal(now) {
		t.Fatalf("unexpected message after append: %+v", msg)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
