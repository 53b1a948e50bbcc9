// ABOUTME: ConversationTransferService authorizes and records ownership transfers
// ABOUTME: Validation, caller identity, atomic storage write and change publication

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lanternhq/lantern/internal/auth"
	"github.com/lanternhq/lantern/internal/metrics"
	"github.com/lanternhq/lantern/internal/realtime"
	"github.com/lanternhq/lantern/internal/store"
)

// Service errors. ErrValidation and ErrUnauthorized are wrapped with detail;
// anything else surfaces to callers as an opaque internal error.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("not authenticated")
)

// conversationsTable is the change-stream table for conversation rows
const conversationsTable = "conversations"

// TransferStore defines what the service needs from storage
type TransferStore interface {
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	TransferConversation(ctx context.Context, conversationID string, to store.TransferTarget, note, tenantID, actor string) (*store.TransferRecord, error)
}

// TransferRequest is a single transfer call. Exactly one of ToAgentID and
// ToQueueID must be set. TenantID is recorded as supplied by the caller.
type TransferRequest struct {
	ConversationID string
	ToAgentID      string
	ToQueueID      string
	Note           string
	TenantID       string
}

// Service performs conversation ownership transfers
type Service struct {
	store   TransferStore
	broker  *realtime.Broker
	metrics *metrics.Collector
	logger  *slog.Logger

	// allowAnonymous is the local-development bypass: when set, a missing
	// caller principal is accepted and the transfer is recorded without an
	// actor. Never enable this in a trusted deployment.
	allowAnonymous bool
}

// New creates a transfer service. Pass nil logger for default.
func New(transferStore TransferStore, broker *realtime.Broker, collector *metrics.Collector, allowAnonymous bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:          transferStore,
		broker:         broker,
		metrics:        collector,
		allowAnonymous: allowAnonymous,
		logger:         logger.With("component", "conversation"),
	}
}

// Transfer validates the request, resolves the caller from the context, and
// atomically repoints the conversation while appending the audit record. The
// updated conversation row is published on the change feed so live views
// reconcile without a reload.
func (s *Service) Transfer(ctx context.Context, req *TransferRequest) (*store.TransferRecord, error) {
	if req.ConversationID == "" {
		return nil, fmt.Errorf("%w: conversationId is required", ErrValidation)
	}
	if (req.ToAgentID == "") == (req.ToQueueID == "") {
		return nil, fmt.Errorf("%w: exactly one of toAgentId and toQueueId is required", ErrValidation)
	}

	principal := auth.FromContext(ctx)
	if principal == nil && !s.allowAnonymous {
		return nil, ErrUnauthorized
	}

	target := store.TransferTarget{Type: store.TargetAgent, ID: req.ToAgentID}
	if req.ToQueueID != "" {
		target = store.TransferTarget{Type: store.TargetQueue, ID: req.ToQueueID}
	}

	actor := ""
	if principal != nil {
		actor = principal.ID
	}

	record, err := s.store.TransferConversation(ctx, req.ConversationID, target, req.Note, req.TenantID, actor)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: conversation %s not found", ErrValidation, req.ConversationID)
		}
		return nil, fmt.Errorf("transferring conversation: %w", err)
	}

	s.metrics.RecordTransfer(target.Type)
	s.logger.Info("conversation transferred",
		"conversation_id", req.ConversationID,
		"to_type", target.Type,
		"to_id", target.ID,
		"actor", actor)

	s.publishChange(ctx, req.ConversationID)
	return record, nil
}

// publishChange emits the updated conversation row on the change feed.
// Publication is best effort: the transfer is already committed and a missed
// notification heals on the next full fetch.
func (s *Service) publishChange(ctx context.Context, conversationID string) {
	if s.broker == nil {
		return
	}
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		s.logger.Error("failed to load conversation for change publish",
			"conversation_id", conversationID,
			"error", err)
		return
	}
	if err := s.broker.Publish("public", conversationsTable, realtime.OpUpdate, nil, convRow(conv)); err != nil {
		s.logger.Error("failed to publish conversation change",
			"conversation_id", conversationID,
			"error", err)
	}
}

// ConvRow is the change-stream payload for a conversation row
type ConvRow struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	AgentID  string `json:"agent_id,omitempty"`
	QueueID  string `json:"queue_id,omitempty"`
	Subject  string `json:"subject"`
}

// RowID implements realtime.Row
func (r ConvRow) RowID() string { return r.ID }

func convRow(c *store.Conversation) ConvRow {
	return ConvRow{
		ID:       c.ID,
		TenantID: c.TenantID,
		AgentID:  c.AgentID,
		QueueID:  c.QueueID,
		Subject:  c.Subject,
	}
}
