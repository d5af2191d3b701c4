// Package numerator provides the PostgreSQL implementation of document code allocation.
// It implements core/numerator.Generator on top of the sys_sequences counter table.
package numerator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"stockkeeper/internal/core/apperror"
	"stockkeeper/internal/core/code"
	corenumerator "stockkeeper/internal/core/numerator"
	"stockkeeper/internal/infrastructure/storage/postgres"
	"stockkeeper/pkg/logger"
)

var tracer = otel.Tracer("stockkeeper/numerator")

// errExhausted means the bucket counter already reached code.MaxSequence and
// the guarded upsert left it untouched.
var errExhausted = errors.New("sequence exhausted")

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierFunc resolves the querier for ctx, the enclosing transaction when
// there is one.
type QuerierFunc func(ctx context.Context) Querier

// Tables where each entity type persists its codes. Used by Resync.
var codeTables = map[code.EntityType]string{
	code.Products:         "products",
	code.StockOpnames:     "stock_opnames",
	code.ManagementStocks: "management_stocks",
}

const (
	sqlIncrement = `
		INSERT INTO sys_sequences (entity_type, year, month, last_index)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (entity_type, year, month)
		DO UPDATE SET last_index = sys_sequences.last_index + EXCLUDED.last_index, updated_at = now()
		WHERE sys_sequences.last_index < $5
		RETURNING last_index`

	sqlCurrent = `
		SELECT last_index FROM sys_sequences
		WHERE entity_type = $1 AND year = $2 AND month = $3`

	sqlRaise = `
		INSERT INTO sys_sequences (entity_type, year, month, last_index)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (entity_type, year, month)
		DO UPDATE SET last_index = GREATEST(sys_sequences.last_index, EXCLUDED.last_index), updated_at = now()
		RETURNING last_index`
)

type cachedRange struct {
	current int64
	max     int64
}

// Service allocates codes using PostgreSQL counters.
//
// Strict allocations run on the transaction found in ctx so the counter row
// stays locked until the caller commits. Cached ranges are reserved on the
// direct querier, outside any transaction: a rolled back reservation would
// otherwise let two processes hand out the same range.
type Service struct {
	conn   QuerierFunc
	direct Querier
	policy corenumerator.Policy
	loc    *time.Location

	// cacheMu protects ranges
	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

// Ensure compile-time interface compliance.
var _ corenumerator.Generator = (*Service)(nil)

// Option customizes the Service.
type Option func(*Service)

// WithLocation sets the time zone used to derive the (year, month) bucket.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithPolicy sets per entity type allocation options.
func WithPolicy(p corenumerator.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// New creates a numerator service. conn resolves the transaction-aware
// querier, direct must not be bound to a transaction.
func New(conn QuerierFunc, direct Querier, opts ...Option) *Service {
	s := &Service{
		conn:   conn,
		direct: direct,
		loc:    time.Local,
		ranges: make(map[string]*cachedRange),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStatic creates a service that always uses q. Convenient for tools and tests.
func NewStatic(q Querier, opts ...Option) *Service {
	return New(func(context.Context) Querier { return q }, q, opts...)
}

// Next allocates the next code for entityType.
func (s *Service) Next(ctx context.Context, entityType code.EntityType, now time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	abbr, err := entityType.Abbreviation()
	if err != nil {
		return "", err
	}
	bucket := code.BucketOf(now.In(s.loc))

	ctx, span := tracer.Start(ctx, "numerator.next")
	defer span.End()
	span.SetAttributes(
		attribute.String("numerator.entity_type", string(entityType)),
		attribute.String("numerator.bucket", bucket.String()),
	)

	var num int64
	opts := s.policy.For(entityType)
	switch opts.Strategy {
	case corenumerator.StrategyCached:
		num, err = s.nextCached(ctx, entityType, bucket, int64(opts.RangeSize))
	default:
		num, err = s.nextStrict(ctx, entityType, bucket)
	}
	if errors.Is(err, errExhausted) {
		return "", apperror.NewSequenceExhausted(string(entityType), bucket.Year, bucket.Month)
	}
	if err != nil {
		span.RecordError(err)
		return "", unavailable(entityType, err)
	}

	if num > code.MaxSequence {
		return "", apperror.NewSequenceExhausted(string(entityType), bucket.Year, bucket.Month)
	}

	result, err := code.Format(abbr, bucket.Month, bucket.Year, int(num))
	if err != nil {
		return "", err
	}
	logger.Debug(ctx, "code allocated", "entity_type", entityType, "code", result)
	return result, nil
}

// nextStrict increments the counter row and returns the new value.
func (s *Service) nextStrict(ctx context.Context, entityType code.EntityType, b code.Bucket) (int64, error) {
	var num int64
	err := s.conn(ctx).QueryRow(ctx, sqlIncrement, string(entityType), b.Year, b.Month, int64(1), int64(code.MaxSequence)).Scan(&num)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, errExhausted
	}
	if err != nil {
		return 0, fmt.Errorf("strict next: %w", err)
	}
	return num, nil
}

// nextCached hands out a value from memory, reserving a new range when the
// current one is used up.
func (s *Service) nextCached(ctx context.Context, entityType code.EntityType, b code.Bucket, size int64) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	key := cacheKey(entityType, b)
	rng, ok := s.ranges[key]
	if !ok {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	if rng.current >= rng.max {
		var newMax int64
		err := s.direct.QueryRow(ctx, sqlIncrement, string(entityType), b.Year, b.Month, size, int64(code.MaxSequence)).Scan(&newMax)
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errExhausted
		}
		if err != nil {
			return 0, fmt.Errorf("reserve range: %w", err)
		}
		// Reserved (newMax-size, newMax].
		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

// Peek returns the code the next allocation would produce.
func (s *Service) Peek(ctx context.Context, entityType code.EntityType, now time.Time) (string, error) {
	abbr, err := entityType.Abbreviation()
	if err != nil {
		return "", err
	}
	bucket := code.BucketOf(now.In(s.loc))

	if s.policy.For(entityType).Strategy == corenumerator.StrategyCached {
		s.cacheMu.Lock()
		rng, ok := s.ranges[cacheKey(entityType, bucket)]
		if ok && rng.current < rng.max {
			next := rng.current + 1
			s.cacheMu.Unlock()
			return code.Format(abbr, bucket.Month, bucket.Year, int(next))
		}
		s.cacheMu.Unlock()
	}

	last, err := s.current(ctx, entityType, bucket)
	if err != nil {
		return "", unavailable(entityType, err)
	}
	if last+1 > code.MaxSequence {
		return "", apperror.NewSequenceExhausted(string(entityType), bucket.Year, bucket.Month)
	}
	return code.Format(abbr, bucket.Month, bucket.Year, int(last+1))
}

func (s *Service) current(ctx context.Context, entityType code.EntityType, b code.Bucket) (int64, error) {
	var last int64
	err := s.conn(ctx).QueryRow(ctx, sqlCurrent, string(entityType), b.Year, b.Month).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return last, err
}

// Resync raises the bucket counter to the highest persisted code, found by
// prefix match and descending sort on the owning table.
func (s *Service) Resync(ctx context.Context, entityType code.EntityType, bucket code.Bucket) (int, error) {
	abbr, err := entityType.Abbreviation()
	if err != nil {
		return 0, err
	}
	table, ok := codeTables[entityType]
	if !ok {
		return 0, apperror.NewValidation("entity type has no persisted codes").
			WithDetail("entity_type", string(entityType))
	}

	highest, err := s.highestSequence(ctx, table, code.Prefix(abbr, bucket))
	if err != nil {
		return 0, unavailable(entityType, err)
	}

	var counter int64
	err = s.conn(ctx).QueryRow(ctx, sqlRaise, string(entityType), bucket.Year, bucket.Month, highest).Scan(&counter)
	if err != nil {
		return 0, unavailable(entityType, err)
	}

	s.cacheMu.Lock()
	delete(s.ranges, cacheKey(entityType, bucket))
	s.cacheMu.Unlock()

	logger.Info(ctx, "sequence resynced",
		"entity_type", entityType, "bucket", bucket.String(), "highest", highest, "counter", counter)
	return int(counter), nil
}

func (s *Service) highestSequence(ctx context.Context, table, prefix string) (int64, error) {
	query, args, err := highestCodeQuery(table, prefix).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var last string
	err = s.conn(ctx).QueryRow(ctx, query, args...).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("highest code: %w", err)
	}

	parts, err := code.Parse(last)
	if err != nil {
		return 0, err
	}
	return int64(parts.Sequence), nil
}

func highestCodeQuery(table, prefix string) sq.SelectBuilder {
	return sq.Select("code").
		From(table).
		Where(sq.Like{"code": prefix + "%"}).
		OrderBy("code DESC").
		Limit(1).
		PlaceholderFormat(sq.Dollar)
}

// unavailable classifies a counter failure. Lock timeouts, deadlocks and
// serialization failures on the counter row stay retryable as
// CONCURRENT_MODIFICATION; anything else means the store is unreachable.
func unavailable(entityType code.EntityType, err error) error {
	if translated := postgres.TranslateError(err); apperror.IsConcurrentModification(translated) {
		return translated
	}
	return apperror.NewAllocationUnavailable(string(entityType), err)
}

func cacheKey(t code.EntityType, b code.Bucket) string {
	return fmt.Sprintf("%s_%04d_%02d", t, b.Year, b.Month)
}
