// Package annotate attaches citation structure and resolved sources to
// article summaries and chat replies.
package annotate

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/epion-news/epion/internal/citations"
	"github.com/epion-news/epion/internal/metrics"
	"github.com/epion-news/epion/internal/sources"
	"github.com/epion-news/epion/internal/store"
	"github.com/epion-news/epion/internal/tracing"
)

// Origins label metrics and logs.
const (
	OriginText    = "text"
	OriginArticle = "article"
	OriginChat    = "chat"
	OriginStream  = "stream"
)

// Repository is the storage the service reads from.
type Repository interface {
	Article(ctx context.Context, id string) (*store.Article, error)
	ArticleSources(ctx context.Context, articleID string) ([]sources.Source, error)
	ChatMessage(ctx context.Context, id string) (*store.ChatMessage, error)
}

// Cache holds prepared source lists.
type Cache interface {
	Get(ctx context.Context, kind, id string) ([]sources.Source, bool)
	Set(ctx context.Context, kind, id string, list []sources.Source) error
}

// Annotation is a text broken into citation segments with each segment's
// resolved sources.
type Annotation struct {
	Segments   []sources.ResolvedSegment `json:"segments"`
	Sources    []sources.Source          `json:"sources"`
	Unresolved []int                     `json:"unresolved"`
	Diversity  float64                   `json:"source_diversity"`
}

// ArticleAnnotation is the annotated AI summary of an article.
type ArticleAnnotation struct {
	ArticleID string         `json:"article_id"`
	Title     string         `json:"title"`
	Category  store.Category `json:"category"`
	*Annotation
}

// MessageAnnotation is an annotated chat message.
type MessageAnnotation struct {
	MessageID string `json:"message_id"`
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	*Annotation
}

// Service annotates texts. It holds no per-text state; every call
// re-parses the text it is given.
type Service struct {
	repo   Repository
	cache  Cache
	scorer *sources.Scorer
	logger *zap.Logger
}

// NewService creates a service. repo and cache may be nil when only
// caller-supplied texts are annotated.
func NewService(repo Repository, cache Cache, scorer *sources.Scorer, logger *zap.Logger) *Service {
	if scorer == nil {
		scorer = sources.NewScorer(nil, logger)
	}
	return &Service{repo: repo, cache: cache, scorer: scorer, logger: logger}
}

// Annotate segments text and resolves its citation ids against list, which
// is prepared (positions, domains, credibility) first.
func (s *Service) Annotate(ctx context.Context, text string, list []sources.Source) *Annotation {
	return s.annotate(ctx, OriginText, text, sources.Prepare(list, s.scorer))
}

// PrepareSources fills positions, domains and credibility scores with the
// service's scorer.
func (s *Service) PrepareSources(list []sources.Source) []sources.Source {
	return sources.Prepare(list, s.scorer)
}

// AnnotateSegments resolves segments a stream Buffer already produced
// against a prepared source list.
func (s *Service) AnnotateSegments(ctx context.Context, segments []citations.TextSegment, prepared []sources.Source) *Annotation {
	return s.resolve(ctx, OriginStream, segments, prepared)
}

func (s *Service) annotate(ctx context.Context, origin, text string, prepared []sources.Source) *Annotation {
	return s.resolve(ctx, origin, citations.Segment(text), prepared)
}

func (s *Service) resolve(ctx context.Context, origin string, segments []citations.TextSegment, prepared []sources.Source) *Annotation {
	_, span := tracing.StartSpan(ctx, "annotate.segment")
	defer span.End()

	res := sources.Resolve(segments, prepared)

	span.SetAttributes(
		attribute.String("annotate.origin", origin),
		attribute.Int("annotate.segments", len(segments)),
		attribute.Int("annotate.unresolved", len(res.Unresolved)),
	)
	metrics.SegmentsProduced.Observe(float64(len(segments)))
	if len(res.Unresolved) > 0 {
		metrics.UnresolvedCitations.WithLabelValues(origin).Add(float64(len(res.Unresolved)))
		s.logger.Warn("Citations without a matching source",
			zap.String("origin", origin),
			zap.Ints("ids", res.Unresolved),
			zap.Int("source_count", len(prepared)),
		)
	}

	if prepared == nil {
		prepared = []sources.Source{}
	}
	return &Annotation{
		Segments:   res.Segments,
		Sources:    prepared,
		Unresolved: res.Unresolved,
		Diversity:  sources.Diversity(prepared),
	}
}

// Inline renders text as display tokens. See citations.RenderInline.
func (s *Service) Inline(ctx context.Context, text string, highlight bool, onSourceClick func(int)) []citations.Token {
	_, span := tracing.StartSpan(ctx, "annotate.inline")
	defer span.End()

	tokens := citations.RenderInline(text, highlight, onSourceClick)

	mode := "static"
	if highlight {
		mode = "highlight"
	}
	refs := len(citations.References(tokens))
	metrics.TokensRendered.WithLabelValues("reference", mode).Add(float64(refs))
	metrics.TokensRendered.WithLabelValues("text", mode).Add(float64(len(tokens) - refs))
	span.SetAttributes(attribute.Int("annotate.tokens", len(tokens)))
	return tokens
}

// ArticleSummary annotates the AI summary of an article. Source lists come
// from the cache when possible.
func (s *Service) ArticleSummary(ctx context.Context, articleID string) (*ArticleAnnotation, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "annotate.article")
	defer span.End()
	span.SetAttributes(attribute.String("article.id", articleID))

	article, err := s.repo.Article(ctx, articleID)
	if err != nil {
		s.finish(OriginArticle, start, err)
		return nil, err
	}

	list, err := s.articleSources(ctx, articleID)
	if err != nil {
		s.finish(OriginArticle, start, err)
		return nil, err
	}

	result := &ArticleAnnotation{
		ArticleID:  article.ID,
		Title:      article.Title,
		Category:   article.Category,
		Annotation: s.annotate(ctx, OriginArticle, article.Summary, list),
	}
	s.finish(OriginArticle, start, nil)
	return result, nil
}

func (s *Service) articleSources(ctx context.Context, articleID string) ([]sources.Source, error) {
	if s.cache != nil {
		if list, ok := s.cache.Get(ctx, store.KindArticle, articleID); ok {
			metrics.SourceCacheLookups.WithLabelValues("hit").Inc()
			return list, nil
		}
		metrics.SourceCacheLookups.WithLabelValues("miss").Inc()
	}

	raw, err := s.repo.ArticleSources(ctx, articleID)
	if err != nil {
		return nil, err
	}
	list := sources.Prepare(raw, s.scorer)

	if s.cache != nil {
		if err := s.cache.Set(ctx, store.KindArticle, articleID, list); err != nil {
			s.logger.Warn("Failed to cache article sources", zap.String("article_id", articleID), zap.Error(err))
		}
	}
	return list, nil
}

// ChatMessage annotates a stored chat message with the sources saved
// alongside it.
func (s *Service) ChatMessage(ctx context.Context, messageID string) (*MessageAnnotation, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "annotate.chat_message")
	defer span.End()
	span.SetAttributes(attribute.String("chat.message_id", messageID))

	msg, err := s.repo.ChatMessage(ctx, messageID)
	if err != nil {
		s.finish(OriginChat, start, err)
		return nil, err
	}

	result := &MessageAnnotation{
		MessageID:  msg.ID,
		SessionID:  msg.SessionID,
		Role:       msg.Role,
		Annotation: s.annotate(ctx, OriginChat, msg.Content, sources.Prepare(msg.Sources, s.scorer)),
	}
	s.finish(OriginChat, start, nil)
	return result, nil
}

func (s *Service) finish(origin string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.Annotations.WithLabelValues(origin, status).Inc()
	metrics.AnnotationDuration.WithLabelValues(origin).Observe(time.Since(start).Seconds())
}
