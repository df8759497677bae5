package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/recall-ai/cli/internal/domain"
)

// CreateConversation creates a new conversation record
func (db *DB) CreateConversation(ctx context.Context, title string) (*domain.Conversation, error) {
	if title == "" {
		title = "New Chat"
	}
	var conv domain.Conversation
	err := db.pool.QueryRow(ctx,
		`INSERT INTO conversations (title)
		 VALUES ($1)
		 RETURNING id, title, created_at`,
		title,
	).Scan(&conv.ID, &conv.Title, &conv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return &conv, nil
}

// ListConversations retrieves all conversations, newest first, without
// transcripts or sources.
func (db *DB) ListConversations(ctx context.Context) ([]*domain.Conversation, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, title, created_at
		 FROM conversations ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var convs []*domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, &conv)
	}
	return convs, rows.Err()
}

// GetConversation retrieves a conversation with its transcript and sources.
// Turns come back in chronological append order.
func (db *DB) GetConversation(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := db.pool.QueryRow(ctx,
		`SELECT id, title, created_at FROM conversations WHERE id = $1`,
		id,
	).Scan(&conv.ID, &conv.Title, &conv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM turns WHERE conversation_id = $1
		 ORDER BY created_at, id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get turns: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t domain.Turn
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		conv.Turns = append(conv.Turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	srcRows, err := db.pool.Query(ctx,
		`SELECT id, conversation_id, name, kind, created_at
		 FROM sources WHERE conversation_id = $1
		 ORDER BY created_at`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}
	defer srcRows.Close()
	for srcRows.Next() {
		var s domain.Source
		if err := srcRows.Scan(&s.ID, &s.ConversationID, &s.Name, &s.Kind, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		conv.Sources = append(conv.Sources, s)
	}
	return &conv, srcRows.Err()
}

// DeleteConversation deletes a conversation; turns and sources cascade.
func (db *DB) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

// AppendTurn appends a turn to a conversation transcript.
func (db *DB) AppendTurn(ctx context.Context, conversationID uuid.UUID, role, content string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO turns (conversation_id, role, content)
		 VALUES ($1, $2, $3)`,
		conversationID, role, content,
	)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// AddSource records an ingested source on a conversation. Source names are
// deletion keys, so duplicates within a conversation are rejected.
func (db *DB) AddSource(ctx context.Context, conversationID uuid.UUID, name, kind string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO sources (conversation_id, name, kind)
		 VALUES ($1, $2, $3)`,
		conversationID, name, kind,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrDuplicateSource
	}
	if err != nil {
		return fmt.Errorf("failed to add source: %w", err)
	}
	return nil
}

// RemoveSource removes a source record by name. Removing a name that does
// not exist is a no-op.
func (db *DB) RemoveSource(ctx context.Context, conversationID uuid.UUID, name string) error {
	_, err := db.pool.Exec(ctx,
		`DELETE FROM sources WHERE conversation_id = $1 AND name = $2`,
		conversationID, name,
	)
	if err != nil {
		return fmt.Errorf("failed to remove source: %w", err)
	}
	return nil
}
