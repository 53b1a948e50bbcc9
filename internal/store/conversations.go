// ABOUTME: Conversation persistence and the atomic ownership-transfer write
// ABOUTME: Updates the owner pointer and appends the audit record in one transaction

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateConversation inserts a new conversation
func (s *SQLiteStore) CreateConversation(ctx context.Context, c *Conversation) error {
	now := c.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, tenant_id, agent_id, queue_id, subject, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, nullable(c.AgentID), nullable(c.QueueID), c.Subject,
		now.UTC().Format(time.RFC3339Nano), now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}
	return nil
}

// GetConversation returns the conversation with the given ID
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, agent_id, queue_id, subject, created_at, updated_at
		 FROM conversations WHERE id = ?`, id)
	return scanConversation(row)
}

// TransferConversation atomically repoints the conversation's owner to the
// given target and appends an immutable TransferRecord. The previous owner is
// captured inside the same transaction so concurrent transfers serialize into
// a consistent audit trail. Returns the stored record.
func (s *SQLiteStore) TransferConversation(ctx context.Context, conversationID string, to TransferTarget, note, tenantID, actor string) (*TransferRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transfer tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT agent_id, queue_id FROM conversations WHERE id = ?`, conversationID)
	var agentID, queueID sql.NullString
	if err := row.Scan(&agentID, &queueID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading conversation owner: %w", err)
	}

	var from *TransferTarget
	switch {
	case agentID.Valid && agentID.String != "":
		from = &TransferTarget{Type: TargetAgent, ID: agentID.String}
	case queueID.Valid && queueID.String != "":
		from = &TransferTarget{Type: TargetQueue, ID: queueID.String}
	}

	now := time.Now().UTC()
	var newAgent, newQueue any
	if to.Type == TargetAgent {
		newAgent = to.ID
	} else {
		newQueue = to.ID
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET agent_id = ?, queue_id = ?, updated_at = ? WHERE id = ?`,
		newAgent, newQueue, now.Format(time.RFC3339Nano), conversationID); err != nil {
		return nil, fmt.Errorf("updating conversation owner: %w", err)
	}

	rec := &TransferRecord{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		FromTarget:     from,
		ToTarget:       to,
		Note:           note,
		TenantID:       tenantID,
		Actor:          actor,
		CreatedAt:      now,
	}

	var fromType, fromID any
	if from != nil {
		fromType = from.Type
		fromID = from.ID
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversation_transfers
		 (id, conversation_id, from_type, from_id, to_type, to_id, note, tenant_id, actor, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ConversationID, fromType, fromID, rec.ToTarget.Type, rec.ToTarget.ID,
		rec.Note, rec.TenantID, rec.Actor, now.Format(time.RFC3339Nano)); err != nil {
		return nil, fmt.Errorf("appending transfer record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transfer: %w", err)
	}

	s.logger.Debug("conversation transferred",
		"conversation_id", conversationID,
		"to_type", to.Type,
		"to_id", to.ID,
		"actor", actor)
	return rec, nil
}

// ListTransfers returns transfer records, newest first. If conversationID is
// non-empty only that conversation's transfers are returned.
func (s *SQLiteStore) ListTransfers(ctx context.Context, conversationID string, limit int) ([]*TransferRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, conversation_id, from_type, from_id, to_type, to_id, note, tenant_id, actor, created_at
		 FROM conversation_transfers`
	args := []any{}
	if conversationID != "" {
		query += ` WHERE conversation_id = ?`
		args = append(args, conversationID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transfers: %w", err)
	}
	defer rows.Close()

	var records []*TransferRecord
	for rows.Next() {
		var rec TransferRecord
		var fromType, fromID sql.NullString
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.ConversationID, &fromType, &fromID,
			&rec.ToTarget.Type, &rec.ToTarget.ID, &rec.Note, &rec.TenantID, &rec.Actor, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning transfer record: %w", err)
		}
		if fromType.Valid && fromType.String != "" {
			rec.FromTarget = &TransferTarget{Type: fromType.String, ID: fromID.String}
		}
		rec.CreatedAt = parseTime(createdAt)
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func scanConversation(row scanner) (*Conversation, error) {
	var c Conversation
	var agentID, queueID sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.TenantID, &agentID, &queueID, &c.Subject, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}
	c.AgentID = agentID.String
	c.QueueID = queueID.String
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

// nullable maps an empty string to NULL for optional text columns
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
