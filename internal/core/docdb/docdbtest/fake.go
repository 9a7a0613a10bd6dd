// Package docdbtest provides an in-memory docdb.Connector for tests.
package docdbtest

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/unifiedui/docstore/internal/core/docdb"
	"github.com/unifiedui/docstore/internal/domain/models"
)

// Connector is an in-memory docdb.Connector. Failure fields are read on every
// call, so tests may change them between connection cycles.
type Connector struct {
	mu        sync.Mutex
	connected bool
	database  string

	collections map[string]*Collection

	// OpenErr, AuthErr and CollectionErr fail the matching pipeline step.
	OpenErr       error
	AuthErr       error
	CollectionErr error

	// OpenGate, when set, blocks Open until it is closed or receives.
	OpenGate chan struct{}
	// OpenStarted, when set, is signalled each time Open begins.
	OpenStarted chan struct{}

	openCalls  atomic.Int32
	authCalls  atomic.Int32
	closeCalls atomic.Int32
	lastAuth   atomic.Value
}

// NewConnector creates a disconnected in-memory connector.
func NewConnector(database string) *Connector {
	return &Connector{
		database:    database,
		collections: make(map[string]*Collection),
	}
}

// Open marks the connector connected unless OpenErr is set.
func (c *Connector) Open(ctx context.Context) error {
	c.openCalls.Add(1)
	if c.OpenStarted != nil {
		c.OpenStarted <- struct{}{}
	}
	if c.OpenGate != nil {
		<-c.OpenGate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.OpenErr != nil {
		return c.OpenErr
	}
	c.connected = true
	return nil
}

// IsConnected reports the connection flag.
func (c *Connector) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Collection returns the named collection, creating it on first use.
func (c *Connector) Collection(name string) (docdb.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CollectionErr != nil {
		return nil, c.CollectionErr
	}
	return c.collectionLocked(name), nil
}

// Store returns the named collection for direct inspection.
func (c *Connector) Store(name string) *Collection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collectionLocked(name)
}

func (c *Connector) collectionLocked(name string) *Collection {
	coll, ok := c.collections[name]
	if !ok {
		coll = NewCollection(c.database, name)
		c.collections[name] = coll
	}
	return coll
}

// Authenticate records the credentials unless AuthErr is set.
func (c *Connector) Authenticate(ctx context.Context, creds docdb.Credentials) error {
	c.authCalls.Add(1)
	c.lastAuth.Store(creds)
	return c.AuthErr
}

// Ping fails when the connector is closed.
func (c *Connector) Ping(ctx context.Context) error {
	if !c.IsConnected() {
		return fmt.Errorf("not connected")
	}
	return nil
}

// Close marks the connector disconnected.
func (c *Connector) Close(ctx context.Context) error {
	c.closeCalls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

// Database returns the database name.
func (c *Connector) Database() string {
	return c.database
}

// OpenCalls returns how many times Open was called.
func (c *Connector) OpenCalls() int { return int(c.openCalls.Load()) }

// AuthCalls returns how many times Authenticate was called.
func (c *Connector) AuthCalls() int { return int(c.authCalls.Load()) }

// CloseCalls returns how many times Close was called.
func (c *Connector) CloseCalls() int { return int(c.closeCalls.Load()) }

// LastCredentials returns the credentials of the last Authenticate call.
func (c *Connector) LastCredentials() (docdb.Credentials, bool) {
	creds, ok := c.lastAuth.Load().(docdb.Credentials)
	return creds, ok
}

// Collection is an in-memory docdb.Collection supporting equality filters,
// sorting and unique indices.
type Collection struct {
	mu       sync.Mutex
	database string
	name     string
	docs     []models.Document
	indices  []models.IndexSpec

	// IndexErrs fails CreateIndex for the index with the given name.
	IndexErrs map[string]error
	// IndexDelay delays every CreateIndex call.
	IndexDelay time.Duration
	// OpErr fails every data operation while set.
	OpErr error

	indexCalls atomic.Int32
}

// NewCollection creates an empty collection.
func NewCollection(database, name string) *Collection {
	return &Collection{
		database:  database,
		name:      name,
		IndexErrs: make(map[string]error),
	}
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// IndexCalls returns how many times CreateIndex was called.
func (c *Collection) IndexCalls() int { return int(c.indexCalls.Load()) }

// Len returns the number of stored documents.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

// Seed stores documents without any checks.
func (c *Collection) Seed(docs ...models.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range docs {
		c.docs = append(c.docs, d.Clone())
	}
}

// InsertOne stores a copy of the document.
func (c *Collection) InsertOne(ctx context.Context, document models.Document) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.OpErr != nil {
		return nil, c.OpErr
	}

	doc := document.Clone()
	if !doc.HasID() {
		doc[models.FieldID] = primitive.NewObjectID()
	}
	if err := c.checkUniqueLocked(doc, -1); err != nil {
		return nil, err
	}
	c.docs = append(c.docs, doc)
	return doc.ID(), nil
}

// FindOne returns the first match in insertion order.
func (c *Collection) FindOne(ctx context.Context, filter models.Selector) (models.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.OpErr != nil {
		return nil, c.OpErr
	}
	for _, d := range c.docs {
		if matches(d, filter) {
			return d.Clone(), nil
		}
	}
	return nil, docdb.ErrNoDocuments
}

// Find returns copies of every match in insertion order.
func (c *Collection) Find(ctx context.Context, filter models.Selector) ([]models.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.OpErr != nil {
		return nil, c.OpErr
	}
	out := make([]models.Document, 0)
	for _, d := range c.docs {
		if matches(d, filter) {
			out = append(out, d.Clone())
		}
	}
	return out, nil
}

// FindOneAndReplace replaces the first match in sort order.
func (c *Collection) FindOneAndReplace(ctx context.Context, filter models.Selector, sortSpec models.Sort, replacement models.Document) (models.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.OpErr != nil {
		return nil, c.OpErr
	}

	idx := c.firstLocked(filter, sortSpec)
	if idx < 0 {
		return nil, docdb.ErrNoDocuments
	}
	old := c.docs[idx]
	next := replacement.Clone()
	next[models.FieldID] = old[models.FieldID]
	if created, ok := old[models.FieldCreated]; ok {
		next[models.FieldCreated] = created
	}
	if _, ok := next[models.FieldModified]; !ok {
		if modified, ok := old[models.FieldModified]; ok {
			next[models.FieldModified] = modified
		}
	}
	if err := c.checkUniqueLocked(next, idx); err != nil {
		return nil, err
	}
	c.docs[idx] = next
	return next.Clone(), nil
}

// FindOneAndUpdate merges fields into the first match in sort order.
func (c *Collection) FindOneAndUpdate(ctx context.Context, filter models.Selector, sortSpec models.Sort, fields models.Document) (models.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.OpErr != nil {
		return nil, c.OpErr
	}

	idx := c.firstLocked(filter, sortSpec)
	if idx < 0 {
		return nil, docdb.ErrNoDocuments
	}
	next := c.docs[idx].Clone()
	for k, v := range fields {
		next[k] = v
	}
	if err := c.checkUniqueLocked(next, idx); err != nil {
		return nil, err
	}
	c.docs[idx] = next
	return next.Clone(), nil
}

// FindOneAndDelete removes the first match in sort order.
func (c *Collection) FindOneAndDelete(ctx context.Context, filter models.Selector, sortSpec models.Sort) (models.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.OpErr != nil {
		return nil, c.OpErr
	}

	idx := c.firstLocked(filter, sortSpec)
	if idx < 0 {
		return nil, docdb.ErrNoDocuments
	}
	removed := c.docs[idx]
	c.docs = append(c.docs[:idx], c.docs[idx+1:]...)
	return removed, nil
}

// CreateIndex records the index unless an error is configured for it.
func (c *Collection) CreateIndex(ctx context.Context, spec models.IndexSpec) error {
	c.indexCalls.Add(1)
	if c.IndexDelay > 0 {
		time.Sleep(c.IndexDelay)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.IndexErrs[IndexName(spec)]; ok && err != nil {
		return err
	}
	c.indices = append(c.indices, spec)
	return nil
}

// Indices returns the provisioned indices.
func (c *Collection) Indices() []models.IndexSpec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.IndexSpec(nil), c.indices...)
}

func (c *Collection) firstLocked(filter models.Selector, sortSpec models.Sort) int {
	candidates := make([]int, 0)
	for i, d := range c.docs {
		if matches(d, filter) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return -1
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		da, db := c.docs[candidates[a]], c.docs[candidates[b]]
		for _, f := range sortSpec {
			cmp := compare(da[f.Field], db[f.Field])
			if cmp == 0 {
				continue
			}
			if f.Order == models.SortDesc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return candidates[0]
}

// checkUniqueLocked returns a server-shaped duplicate key error when doc
// collides with another stored document on a unique index. skip is the
// position of the document being rewritten.
func (c *Collection) checkUniqueLocked(doc models.Document, skip int) error {
	for _, idx := range c.indices {
		if !idx.Unique {
			continue
		}
		for i, other := range c.docs {
			if i == skip {
				continue
			}
			same := true
			for _, k := range idx.Keys {
				if !reflect.DeepEqual(doc[k.Field], other[k.Field]) {
					same = false
					break
				}
			}
			if same {
				return DuplicateKeyError(c.database, c.name, idx, doc)
			}
		}
	}
	return nil
}

// IndexName returns the name an index is stored under: the explicit name or
// the store's default <field>_<order> form.
func IndexName(spec models.IndexSpec) string {
	if spec.Name != "" {
		return spec.Name
	}
	parts := make([]string, 0, len(spec.Keys)*2)
	for _, k := range spec.Keys {
		parts = append(parts, k.Field, fmt.Sprintf("%d", k.Order))
	}
	return strings.Join(parts, "_")
}

// DuplicateKeyError builds the error a server reports for a unique index
// violation, without the structured keyValue field.
func DuplicateKeyError(database, collection string, idx models.IndexSpec, doc models.Document) error {
	pairs := make([]string, 0, len(idx.Keys))
	for _, k := range idx.Keys {
		pairs = append(pairs, fmt.Sprintf("%s: %q", k.Field, fmt.Sprint(doc[k.Field])))
	}
	return mongo.WriteException{
		WriteErrors: mongo.WriteErrors{{
			Code: 11000,
			Message: fmt.Sprintf("E11000 duplicate key error collection: %s.%s index: %s dup key: { %s }",
				database, collection, IndexName(idx), strings.Join(pairs, ", ")),
		}},
	}
}

func matches(doc models.Document, filter models.Selector) bool {
	for k, v := range filter {
		if !reflect.DeepEqual(doc[k], v) {
			return false
		}
	}
	return true
}

func compare(a, b interface{}) int {
	switch av := a.(type) {
	case primitive.ObjectID:
		if bv, ok := b.(primitive.ObjectID); ok {
			return strings.Compare(av.Hex(), bv.Hex())
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case int:
		if bv, ok := b.(int); ok {
			return av - bv
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	}
	return 0
}
