package documents

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/unifiedui/docstore/internal/core/cache"
	"github.com/unifiedui/docstore/internal/domain/models"
	"github.com/unifiedui/docstore/internal/pkg/bsonutil"
	"github.com/unifiedui/docstore/internal/pkg/encryption"
	"github.com/unifiedui/docstore/internal/pkg/objectid"
)

// DefaultCacheTTL is the default lifetime of a cached document.
const DefaultCacheTTL = 3 * time.Minute

// EvictionHold is how long an evicted key refuses refills, so a lookup that
// read the store before a mutation cannot cache the old version after it.
const EvictionHold = 10 * time.Second

var tombstone = []byte("\x00evicted")

// CacheConfig holds the configuration for the read-through cache.
type CacheConfig struct {
	Cache  cache.Cache
	Sealer encryption.Sealer
	TTL    time.Duration
	// Namespace separates collections sharing one cache, usually
	// "<database>.<collection>".
	Namespace string
	Logger    *zerolog.Logger
}

// cachedService caches Find results by identifier and replaces the entry with
// a short-lived tombstone on every mutation of that identifier. Fills only
// succeed on an absent key. Cache failures never fail an operation.
type cachedService struct {
	Service
	cache     cache.Cache
	sealer    encryption.Sealer
	ttl       time.Duration
	namespace string
	logger    zerolog.Logger
}

// NewCachedService wraps next with a read-through cache for Find.
func NewCachedService(next Service, cfg *CacheConfig) (Service, error) {
	if next == nil {
		return nil, fmt.Errorf("service is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if cfg.Namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}

	sealer := cfg.Sealer
	if sealer == nil {
		sealer = encryption.NewPlain()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &cachedService{
		Service:   next,
		cache:     cfg.Cache,
		sealer:    sealer,
		ttl:       ttl,
		namespace: cfg.Namespace,
		logger:    logger.With().Str("cache", cfg.Namespace).Logger(),
	}, nil
}

// Disconnect closes the connection and purges the collection's entries.
func (s *cachedService) Disconnect(ctx context.Context) error {
	err := s.Service.Disconnect(ctx)
	if _, cerr := s.cache.DeletePattern(ctx, s.key("*")); cerr != nil {
		s.logger.Warn().Err(cerr).Msg("failed to purge cached documents")
	}
	return err
}

func (s *cachedService) Find(ctx context.Context, id interface{}) (models.Document, error) {
	oid, err := objectid.Normalize(id)
	if err != nil {
		// Let the wrapped service report the malformed identifier.
		return s.Service.Find(ctx, id)
	}

	if doc := s.load(ctx, oid); doc != nil {
		return doc, nil
	}

	doc, err := s.Service.Find(ctx, oid)
	if err != nil {
		return nil, err
	}
	s.store(ctx, oid, doc)
	return doc, nil
}

func (s *cachedService) Update(ctx context.Context, id interface{}, doc models.Document, opts ...UpdateOption) (models.Document, error) {
	defer s.evictID(ctx, id)
	return s.Service.Update(ctx, id, doc, opts...)
}

func (s *cachedService) UpdateBy(ctx context.Context, selector models.Selector, sort models.Sort, doc models.Document, opts ...UpdateOption) (models.Document, error) {
	updated, err := s.Service.UpdateBy(ctx, selector, sort, doc, opts...)
	if err == nil {
		s.evictID(ctx, updated.ID())
	}
	return updated, err
}

func (s *cachedService) UpdatePartial(ctx context.Context, id interface{}, fields models.Document, opts ...UpdateOption) (models.Document, error) {
	defer s.evictID(ctx, id)
	return s.Service.UpdatePartial(ctx, id, fields, opts...)
}

func (s *cachedService) UpdatePartialBy(ctx context.Context, selector models.Selector, sort models.Sort, fields models.Document, opts ...UpdateOption) (models.Document, error) {
	updated, err := s.Service.UpdatePartialBy(ctx, selector, sort, fields, opts...)
	if err == nil {
		s.evictID(ctx, updated.ID())
	}
	return updated, err
}

func (s *cachedService) Remove(ctx context.Context, id interface{}) (models.Document, error) {
	defer s.evictID(ctx, id)
	return s.Service.Remove(ctx, id)
}

func (s *cachedService) RemoveBy(ctx context.Context, selector models.Selector, sort models.Sort) (models.Document, error) {
	removed, err := s.Service.RemoveBy(ctx, selector, sort)
	if err == nil {
		s.evictID(ctx, removed.ID())
	}
	return removed, err
}

// load returns the cached document, or nil on a miss. Entries that cannot be
// opened or decoded (e.g. after a key rotation) are dropped.
func (s *cachedService) load(ctx context.Context, oid primitive.ObjectID) models.Document {
	key := s.key(oid.Hex())

	sealed, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to read cached document")
		return nil
	}
	if sealed == nil || bytes.Equal(sealed, tombstone) {
		return nil
	}

	data, err := s.sealer.Open(sealed)
	if err != nil {
		_, _ = s.cache.Delete(ctx, key)
		return nil
	}
	doc, err := bsonutil.UnmarshalDocument(data)
	if err != nil {
		_, _ = s.cache.Delete(ctx, key)
		return nil
	}
	return doc
}

func (s *cachedService) store(ctx context.Context, oid primitive.ObjectID, doc models.Document) {
	key := s.key(oid.Hex())

	data, err := bsonutil.MarshalDocument(doc)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("document not cacheable")
		return
	}
	sealed, err := s.sealer.Seal(data)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to seal document")
		return
	}
	stored, err := s.cache.SetNX(ctx, key, sealed, s.ttl)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to cache document")
		return
	}
	if !stored {
		s.logger.Debug().Str("key", key).Msg("document changed during lookup, not cached")
	}
}

func (s *cachedService) evictID(ctx context.Context, id interface{}) {
	oid, err := objectid.Normalize(id)
	if err != nil {
		return
	}
	key := s.key(oid.Hex())
	if err := s.cache.Set(ctx, key, tombstone, EvictionHold); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to evict cached document")
	}
}

func (s *cachedService) key(suffix string) string {
	return fmt.Sprintf("doc:%s:%s", s.namespace, suffix)
}
