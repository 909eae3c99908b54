package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Asdisarson/ss/internal/cache"
	"github.com/Asdisarson/ss/internal/catalog"
	"github.com/Asdisarson/ss/internal/domain"
	"github.com/Asdisarson/ss/internal/ranking"
	apperrors "github.com/Asdisarson/ss/pkg/errors"
	"github.com/Asdisarson/ss/pkg/pagination"
	"github.com/Asdisarson/ss/pkg/validator"
)

// DefaultMaxQueryLength bounds the query length in runes.
const DefaultMaxQueryLength = 256

// SearchCache is the part of the cache coordinator the search path uses.
type SearchCache interface {
	Generation() uint64
	Get(ctx context.Context, sig cache.Signature) (*domain.Envelope, bool)
	Set(ctx context.Context, sig cache.Signature, gen uint64, env *domain.Envelope, ttl time.Duration)
}

// SearchConfig tunes the search path.
type SearchConfig struct {
	CacheTTL       time.Duration
	MaxQueryLength int
}

// SearchService answers search queries from the cache or the catalog store.
type SearchService struct {
	store  catalog.Store
	ranker *ranking.Ranker
	cache  SearchCache
	cfg    SearchConfig
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(store catalog.Store, ranker *ranking.Ranker, c SearchCache, cfg SearchConfig, logger *slog.Logger) *SearchService {
	if cfg.MaxQueryLength <= 0 {
		cfg.MaxQueryLength = DefaultMaxQueryLength
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &SearchService{
		store:  store,
		ranker: ranker,
		cache:  c,
		cfg:    cfg,
		logger: logger,
	}
}

// Search returns one page of ranked products for q. Page and page size are
// coerced to valid values; only malformed query text is rejected.
func (s *SearchService) Search(ctx context.Context, q domain.SearchQuery) (*domain.Envelope, error) {
	start := time.Now()
	params := pagination.Normalize(q.Page, q.PageSize)

	if err := s.validateQuery(q.Query); err != nil {
		return nil, err
	}

	terms := domain.Tokenize(q.Query)
	if len(terms) == 0 {
		return domain.EmptyEnvelope(params), nil
	}

	normalized := domain.NormalizedQuery(terms)
	sig := cache.NewSignature(normalized, params.Page, params.PageSize)
	gen := s.cache.Generation()

	if env, ok := s.cache.Get(ctx, sig); ok {
		env.Cached = true
		s.observe(ctx, normalized, env, start)
		return env, nil
	}

	env, err := s.compute(ctx, terms, params)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, sig, gen, env, s.cfg.CacheTTL)
	s.observe(ctx, normalized, env, start)
	return env, nil
}

func (s *SearchService) compute(ctx context.Context, terms []string, params pagination.Params) (*domain.Envelope, error) {
	n, err := s.store.Count(ctx, terms)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("count candidates: %w", err))
	}
	if n == 0 {
		return domain.EmptyEnvelope(params), nil
	}

	candidates, err := s.store.FindCandidates(ctx, terms)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("find candidates: %w", err))
	}

	ranked := s.ranker.Rank(candidates, terms)
	return domain.Paginate(ranked, params), nil
}

func (s *SearchService) validateQuery(raw string) error {
	if !utf8.ValidString(raw) {
		return apperrors.InvalidInput("query must be valid UTF-8")
	}
	if strings.ContainsRune(raw, 0) {
		return apperrors.InvalidInput("query must not contain NUL characters")
	}
	return validator.Var("query", raw, "max="+strconv.Itoa(s.cfg.MaxQueryLength))
}

func (s *SearchService) observe(ctx context.Context, normalized string, env *domain.Envelope, start time.Time) {
	outcome := "miss"
	if env.Cached {
		outcome = "hit"
	}
	elapsed := time.Since(start)
	searchDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())

	s.logger.DebugContext(ctx, "search executed",
		slog.String("query", normalized),
		slog.String("cache", outcome),
		slog.Int("total", env.Total),
		slog.Int("page", env.Page),
		slog.Int("page_size", env.PageSize),
		slog.Int64("took_ms", elapsed.Milliseconds()),
	)
}
