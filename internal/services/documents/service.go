// Package documents provides the document access layer over a lazily
// connected collection.
package documents

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/unifiedui/docstore/internal/core/docdb"
	"github.com/unifiedui/docstore/internal/core/metrics"
	domainerrors "github.com/unifiedui/docstore/internal/domain/errors"
	"github.com/unifiedui/docstore/internal/domain/models"
	"github.com/unifiedui/docstore/internal/pkg/objectid"
)

// Metric names emitted per operation. Each is suffixed with .success or .error.
const (
	MetricFind          = "find"
	MetricFindOne       = "findOne"
	MetricInsert        = "insert"
	MetricFindAndModify = "findAndModify"
	MetricFindAndRemove = "findAndRemove"
)

const resourceName = "document"

// MetricsScope returns the metrics namespace used for a collection.
func MetricsScope(database, collection string) string {
	return fmt.Sprintf("db.%s.%s", database, collection)
}

// Connection hands out the shared collection handle.
type Connection interface {
	Acquire(ctx context.Context) (docdb.Collection, error)
	Release(ctx context.Context) error
}

// UpdateOption configures an update.
type UpdateOption func(*updateOptions)

type updateOptions struct {
	preserveModified bool
}

// PreserveModified keeps the stored modification timestamp.
func PreserveModified() UpdateOption {
	return func(o *updateOptions) {
		o.preserveModified = true
	}
}

// Service is the document access layer. Every single-document operation
// returns a NOT_FOUND domain error when nothing matches; malformed calls fail
// with a VALIDATION_ERROR before any I/O.
type Service interface {
	// Connect opens the connection, or waits for the attempt in flight.
	Connect(ctx context.Context) error

	// Disconnect closes the connection if it is open.
	Disconnect(ctx context.Context) error

	// FindAll returns every document matching selector. A nil selector matches all.
	FindAll(ctx context.Context, selector models.Selector) ([]models.Document, error)

	// Find returns the document with the given identifier.
	Find(ctx context.Context, id interface{}) (models.Document, error)

	// FindBy returns one document matching selector.
	FindBy(ctx context.Context, selector models.Selector) (models.Document, error)

	// Insert stores a new document and returns it with its identifier and timestamps.
	Insert(ctx context.Context, doc models.Document) (models.Document, error)

	// Update replaces the document with the given identifier. The new
	// modified stamp is strictly later than any earlier stamp issued by this
	// service.
	Update(ctx context.Context, id interface{}, doc models.Document, opts ...UpdateOption) (models.Document, error)

	// UpdateBy replaces the first document in sort order matching selector.
	UpdateBy(ctx context.Context, selector models.Selector, sort models.Sort, doc models.Document, opts ...UpdateOption) (models.Document, error)

	// UpdatePartial merges fields into the document with the given identifier.
	UpdatePartial(ctx context.Context, id interface{}, fields models.Document, opts ...UpdateOption) (models.Document, error)

	// UpdatePartialBy merges fields into the first document in sort order matching selector.
	UpdatePartialBy(ctx context.Context, selector models.Selector, sort models.Sort, fields models.Document, opts ...UpdateOption) (models.Document, error)

	// Remove deletes the document with the given identifier and returns it.
	Remove(ctx context.Context, id interface{}) (models.Document, error)

	// RemoveBy deletes the first document in sort order matching selector and returns it.
	RemoveBy(ctx context.Context, selector models.Selector, sort models.Sort) (models.Document, error)
}

// Config holds the configuration for the document service.
type Config struct {
	Connection Connection
	// Translator maps store errors onto domain errors. Defaults to docdb.PassThrough.
	Translator docdb.ErrorTranslator
	// Metrics must already be scoped, see MetricsScope.
	Metrics metrics.Sink
	Logger  *zerolog.Logger
	// Now defaults to the current UTC time truncated to milliseconds, the
	// store's datetime precision. Stamps never repeat within a service: a
	// clock that has not advanced is bumped by one millisecond.
	Now func() time.Time
}

// service implements the Service interface.
type service struct {
	conn       Connection
	translator docdb.ErrorTranslator
	metrics    metrics.Sink
	logger     zerolog.Logger
	now        func() time.Time
}

// NewService creates a new document service.
func NewService(cfg *Config) (Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Connection == nil {
		return nil, fmt.Errorf("connection is required")
	}

	translator := cfg.Translator
	if translator == nil {
		translator = docdb.PassThrough
	}
	sink := cfg.Metrics
	if sink == nil {
		sink = metrics.NewNoOp()
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time {
			return time.Now().UTC().Truncate(time.Millisecond)
		}
	}

	return &service{
		conn:       cfg.Connection,
		translator: translator,
		metrics:    sink,
		logger:     logger,
		now:        (&monotonicClock{now: now}).Now,
	}, nil
}

// monotonicClock returns strictly increasing millisecond stamps.
type monotonicClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func (c *monotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now()
	if !t.After(c.last) {
		t = c.last.Add(time.Millisecond)
	}
	c.last = t
	return t
}

func (s *service) Connect(ctx context.Context) error {
	_, err := s.conn.Acquire(ctx)
	return err
}

func (s *service) Disconnect(ctx context.Context) error {
	return s.conn.Release(ctx)
}

func (s *service) FindAll(ctx context.Context, selector models.Selector) ([]models.Document, error) {
	if selector == nil {
		selector = models.Selector{}
	}

	coll, err := s.conn.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	var docs []models.Document
	err = s.instrument(MetricFind, func() error {
		var err error
		docs, err = coll.Find(ctx, selector)
		return s.translator.Translate(err, nil)
	})
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []models.Document{}
	}
	return docs, nil
}

func (s *service) Find(ctx context.Context, id interface{}) (models.Document, error) {
	oid, err := decodeID(id)
	if err != nil {
		return nil, err
	}
	return s.FindBy(ctx, models.Selector{models.FieldID: oid})
}

func (s *service) FindBy(ctx context.Context, selector models.Selector) (models.Document, error) {
	if selector == nil {
		return nil, domainerrors.NewValidationError("selector is required", "")
	}

	coll, err := s.conn.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	var doc models.Document
	err = s.instrument(MetricFindOne, func() error {
		var err error
		doc, err = coll.FindOne(ctx, selector)
		return s.single(err, nil, selector)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *service) Insert(ctx context.Context, doc models.Document) (models.Document, error) {
	if doc == nil {
		return nil, domainerrors.NewValidationError("document is required", "")
	}
	if doc.HasID() {
		return nil, domainerrors.NewValidationError("document already has an identifier", fmt.Sprintf("%v", doc.ID()))
	}

	coll, err := s.conn.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	record := doc.Clone()
	record[models.FieldID] = objectid.New()
	record.Stamp(s.now())

	err = s.instrument(MetricInsert, func() error {
		_, err := coll.InsertOne(ctx, record)
		return s.translator.Translate(err, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *service) Update(ctx context.Context, id interface{}, doc models.Document, opts ...UpdateOption) (models.Document, error) {
	oid, err := decodeID(id)
	if err != nil {
		return nil, err
	}
	return s.UpdateBy(ctx, models.Selector{models.FieldID: oid}, models.ByID, doc, opts...)
}

func (s *service) UpdateBy(ctx context.Context, selector models.Selector, sort models.Sort, doc models.Document, opts ...UpdateOption) (models.Document, error) {
	if err := validateTarget(selector, sort); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domainerrors.NewValidationError("document is required", "")
	}

	body := s.updateBody(doc, opts)

	coll, err := s.conn.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	var updated models.Document
	err = s.instrument(MetricFindAndModify, func() error {
		var err error
		updated, err = coll.FindOneAndReplace(ctx, selector, sort, body)
		return s.single(err, body, selector)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) UpdatePartial(ctx context.Context, id interface{}, fields models.Document, opts ...UpdateOption) (models.Document, error) {
	oid, err := decodeID(id)
	if err != nil {
		return nil, err
	}
	return s.UpdatePartialBy(ctx, models.Selector{models.FieldID: oid}, models.ByID, fields, opts...)
}

func (s *service) UpdatePartialBy(ctx context.Context, selector models.Selector, sort models.Sort, fields models.Document, opts ...UpdateOption) (models.Document, error) {
	if err := validateTarget(selector, sort); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, domainerrors.NewValidationError("fields are required", "")
	}

	body := s.updateBody(fields, opts)

	coll, err := s.conn.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	var updated models.Document
	err = s.instrument(MetricFindAndModify, func() error {
		var err error
		updated, err = coll.FindOneAndUpdate(ctx, selector, sort, body)
		return s.single(err, body, selector)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Remove(ctx context.Context, id interface{}) (models.Document, error) {
	oid, err := decodeID(id)
	if err != nil {
		return nil, err
	}
	return s.RemoveBy(ctx, models.Selector{models.FieldID: oid}, models.ByID)
}

func (s *service) RemoveBy(ctx context.Context, selector models.Selector, sort models.Sort) (models.Document, error) {
	if err := validateTarget(selector, sort); err != nil {
		return nil, err
	}

	coll, err := s.conn.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	var removed models.Document
	err = s.instrument(MetricFindAndRemove, func() error {
		var err error
		removed, err = coll.FindOneAndDelete(ctx, selector, sort)
		return s.single(err, nil, selector)
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// updateBody builds the write body: the identifier and creation timestamp
// are never written, the modification timestamp is refreshed unless preserved.
func (s *service) updateBody(doc models.Document, opts []UpdateOption) models.Document {
	var o updateOptions
	for _, opt := range opts {
		opt(&o)
	}

	body := doc.Clone()
	delete(body, models.FieldID)
	delete(body, models.FieldCreated)
	if o.preserveModified {
		delete(body, models.FieldModified)
	} else {
		body[models.FieldModified] = s.now()
	}
	return body
}

// instrument records op under metric and logs failures at debug level.
func (s *service) instrument(metric string, op func() error) error {
	err := metrics.Instrument(s.metrics, metric, op)
	if err != nil {
		s.logger.Debug().Err(err).Str("op", metric).Msg("document operation failed")
	}
	return err
}

// single translates the outcome of a single-document call.
func (s *service) single(err error, doc models.Document, selector models.Selector) error {
	if errors.Is(err, docdb.ErrNoDocuments) {
		return domainerrors.NewNotFoundError(resourceName, fmt.Sprintf("%v", map[string]interface{}(selector)))
	}
	return s.translator.Translate(err, doc)
}

func decodeID(id interface{}) (interface{}, error) {
	oid, err := objectid.Normalize(id)
	if err != nil {
		return nil, domainerrors.NewValidationError("invalid document id", err.Error())
	}
	return oid, nil
}

func validateTarget(selector models.Selector, sort models.Sort) error {
	if selector == nil {
		return domainerrors.NewValidationError("selector is required", "")
	}
	if len(sort) == 0 {
		return domainerrors.NewValidationError("sort is required", "")
	}
	for _, f := range sort {
		if f.Field == "" || (f.Order != models.SortAsc && f.Order != models.SortDesc) {
			return domainerrors.NewValidationError("invalid sort", fmt.Sprintf("%s:%d", f.Field, f.Order))
		}
	}
	return nil
}
