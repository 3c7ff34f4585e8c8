// Package store reads the article, source and chat tables owned by the Epion
// backend, and caches source lists in Redis.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/epion-news/epion/internal/circuitbreaker"
	"github.com/epion-news/epion/internal/sources"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store is a read-only view over the collaborator-owned tables.
type Store struct {
	db      *sqlx.DB
	breaker *circuitbreaker.Breaker
	logger  *zap.Logger
}

// New creates a store. Calls are guarded by a circuit breaker named
// "postgres"; missing rows do not count as failures.
func New(db *sqlx.DB, logger *zap.Logger) *Store {
	cfg := circuitbreaker.PostgresConfig()
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrNotFound)
	}
	return &Store{
		db:      db,
		breaker: circuitbreaker.New("postgres", cfg, logger),
		logger:  logger,
	}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.breaker.Do(ctx, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

// Article loads an article that has not been deleted.
func (s *Store) Article(ctx context.Context, id string) (*Article, error) {
	var row struct {
		ID       string `db:"id"`
		Title    string `db:"title"`
		Category []byte `db:"category"`
		Summary  string `db:"ai_summary"`
	}

	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		err := s.db.GetContext(ctx, &row, `
			SELECT id, title, category, COALESCE(ai_summary, '') AS ai_summary
			FROM articles
			WHERE id = $1 AND deleted_at IS NULL
		`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("article %s: %w", id, err)
	}

	article := &Article{ID: row.ID, Title: row.Title, Summary: row.Summary}
	if len(row.Category) > 0 {
		if err := json.Unmarshal(row.Category, &article.Category); err != nil {
			s.logger.Warn("Ignoring malformed article category",
				zap.String("article_id", id),
				zap.Error(err),
			)
		}
	}
	return article, nil
}

// ArticleSources returns the numbered sources of an article's summary,
// ordered by position.
func (s *Store) ArticleSources(ctx context.Context, articleID string) ([]sources.Source, error) {
	var rows []struct {
		Position    int          `db:"position"`
		URL         string       `db:"url"`
		Title       string       `db:"title"`
		PublishedAt sql.NullTime `db:"published_at"`
	}

	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &rows, `
			SELECT position, url, COALESCE(title, '') AS title, published_at
			FROM article_sources
			WHERE article_id = $1
			ORDER BY position ASC
		`, articleID)
	})
	if err != nil {
		return nil, fmt.Errorf("article %s sources: %w", articleID, err)
	}

	list := make([]sources.Source, 0, len(rows))
	for _, r := range rows {
		src := sources.Source{Position: r.Position, URL: r.URL, Title: r.Title}
		if r.PublishedAt.Valid {
			t := r.PublishedAt.Time.UTC()
			src.PublishedAt = &t
		}
		list = append(list, src)
	}
	return list, nil
}

// ChatMessage loads a chat message together with the sources its reply
// cites. The sources column is a JSON array in citation order.
func (s *Store) ChatMessage(ctx context.Context, id string) (*ChatMessage, error) {
	var row struct {
		ID        string `db:"id"`
		SessionID string `db:"session_id"`
		Role      string `db:"role"`
		Content   string `db:"content"`
		Sources   []byte `db:"sources"`
	}

	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		err := s.db.GetContext(ctx, &row, `
			SELECT id, session_id, role, content, COALESCE(sources, '[]'::jsonb) AS sources
			FROM chat_messages
			WHERE id = $1
		`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("chat message %s: %w", id, err)
	}

	msg := &ChatMessage{
		ID:        row.ID,
		SessionID: row.SessionID,
		Role:      row.Role,
		Content:   row.Content,
		Sources:   []sources.Source{},
	}
	if len(row.Sources) > 0 {
		var stored []struct {
			URL         string     `json:"url"`
			Title       string     `json:"title"`
			PublishedAt *time.Time `json:"published_at"`
		}
		if err := json.Unmarshal(row.Sources, &stored); err != nil {
			return nil, fmt.Errorf("chat message %s sources: %w", id, err)
		}
		for i, st := range stored {
			msg.Sources = append(msg.Sources, sources.Source{
				Position:    i + 1,
				URL:         st.URL,
				Title:       st.Title,
				PublishedAt: st.PublishedAt,
			})
		}
	}
	return msg, nil
}
