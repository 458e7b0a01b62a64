// Package mockstore implements the mock data store: named in-memory tables of
// flat records, seeded once from fixtures and mirrored to a key-value store as
// whole-table JSON arrays on every mutation.
//
// Concurrency model: a single RWMutex guards every table. Mirror writes happen
// under the write lock so the mirror always reflects mutations in order.
// Observers are notified after the lock is released.
package mockstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/gts-portal/internal/apperr"
	"github.com/starford/gts-portal/internal/checksum"
	"github.com/starford/gts-portal/internal/kv"
	"github.com/starford/gts-portal/internal/metrics"
	"github.com/starford/gts-portal/internal/models"
	"github.com/starford/gts-portal/internal/seed"
)

// Timestamp layout of created_at and updated_at.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Change kinds.
const (
	ChangeCreated  = "created"
	ChangeUpdated  = "updated"
	ChangeDeleted  = "deleted"
	ChangeReset    = "reset"
	ChangeReloaded = "reloaded"
)

// Change describes an applied mutation.
type Change struct {
	Kind  string `json:"kind"`
	Table string `json:"table"`
	ID    string `json:"id,omitempty"`
}

// Observer is notified of every applied change.
type Observer interface {
	OnChange(Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Change)

func (f ObserverFunc) OnChange(c Change) { f(c) }

// FixtureFunc returns the seed rows of every table.
type FixtureFunc func(now time.Time) (map[string][]map[string]any, error)

// Options configures a Store. Zero values select the defaults.
type Options struct {
	Now      func() time.Time
	NewID    func() string
	Logger   *slog.Logger
	Fixtures FixtureFunc
}

// TableInfo is a table name with its row count.
type TableInfo struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

// Store is the mock data store.
type Store struct {
	mu     sync.RWMutex
	tables map[string][]Record
	mirror kv.Provider

	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
	fixtures FixtureFunc

	obsMu     sync.RWMutex
	observers []Observer
}

// Open loads every table from the mirror. Tables absent from the mirror (or
// whose mirror copy cannot be decoded) are seeded and written back. A mirror
// read failure aborts Open so a flaky backend never has its data overwritten.
func Open(ctx context.Context, mirror kv.Provider, opts Options) (*Store, error) {
	if mirror == nil {
		return nil, errors.New("mockstore: mirror is required")
	}
	s := &Store{
		tables:   make(map[string][]Record, len(models.Tables)),
		mirror:   mirror,
		now:      opts.Now,
		newID:    opts.NewID,
		logger:   opts.Logger,
		fixtures: opts.Fixtures,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.fixtures == nil {
		s.fixtures = seed.Load
	}

	var fixtures map[string][]map[string]any
	for _, table := range models.Tables {
		rows, found, err := s.readMirror(ctx, table)
		if err != nil {
			if !errors.Is(err, errCorruptMirror) {
				return nil, err
			}
			s.logger.Warn("mockstore: mirror corrupt, reseeding",
				slog.String("table", table), slog.String("error", err.Error()))
		}
		if found {
			s.tables[table] = rows
			continue
		}
		if fixtures == nil {
			if fixtures, err = s.fixtures(s.now()); err != nil {
				return nil, fmt.Errorf("mockstore: load fixtures: %w", err)
			}
		}
		if s.tables[table], err = s.seedRows(fixtures[table]); err != nil {
			return nil, fmt.Errorf("mockstore: seed %s: %w", table, err)
		}
		s.persist(ctx, table)
		s.logger.Debug("mockstore: seeded", slog.String("table", table), slog.Int("rows", len(s.tables[table])))
	}
	return s, nil
}

// Observe registers o for change notifications.
func (s *Store) Observe(o Observer) {
	s.obsMu.Lock()
	s.observers = append(s.observers, o)
	s.obsMu.Unlock()
}

func (s *Store) notify(c Change) {
	s.obsMu.RLock()
	obs := append([]Observer(nil), s.observers...)
	s.obsMu.RUnlock()
	for _, o := range obs {
		o.OnChange(c)
	}
}

// Tables returns every table with its row count, in seed order.
func (s *Store) Tables() []TableInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TableInfo, 0, len(models.Tables))
	for _, t := range models.Tables {
		out = append(out, TableInfo{Name: t, Rows: len(s.tables[t])})
	}
	return out
}

// Select returns copies of the rows of table matching q.
func (s *Store) Select(_ context.Context, table string, q Query) (rows []Record, err error) {
	defer func() { metrics.StoreOps.WithLabelValues("select", table, metrics.Result(err)).Inc() }()

	if err := checkTable(table); err != nil {
		return nil, err
	}
	q, err = q.normalize()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := q.apply(s.tables[table])
	out := make([]Record, len(matched))
	for i, r := range matched {
		out[i] = cloneRecord(r)
	}
	s.mu.RUnlock()
	return out, nil
}

// SelectPage is Select plus the number of rows matching q.Where before
// pagination, both taken from the same snapshot of the table.
func (s *Store) SelectPage(_ context.Context, table string, q Query) (rows []Record, total int, err error) {
	defer func() { metrics.StoreOps.WithLabelValues("select", table, metrics.Result(err)).Inc() }()

	if err := checkTable(table); err != nil {
		return nil, 0, err
	}
	q, err = q.normalize()
	if err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	matched := q.filterSort(s.tables[table])
	total = len(matched)
	paged := q.page(matched)
	out := make([]Record, len(paged))
	for i, r := range paged {
		out[i] = cloneRecord(r)
	}
	s.mu.RUnlock()
	return out, total, nil
}

// Count returns the number of rows matching q.Where, ignoring pagination.
func (s *Store) Count(_ context.Context, table string, q Query) (int, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	q, err := q.normalize()
	if err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.tables[table] {
		if q.matches(r) {
			n++
		}
	}
	return n, nil
}

// Get returns a copy of a single row.
func (s *Store) Get(_ context.Context, table, id string) (Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexOf(s.tables[table], id)
	if i < 0 {
		return nil, apperr.ErrNotFound
	}
	return cloneRecord(s.tables[table][i]), nil
}

// Insert adds a row. A missing id is generated; a supplied id must be unique.
// created_at and updated_at are always stamped with the current time.
func (s *Store) Insert(ctx context.Context, table string, rec Record) (row Record, err error) {
	defer func() { metrics.StoreOps.WithLabelValues("insert", table, metrics.Result(err)).Inc() }()

	if err := checkTable(table); err != nil {
		return nil, err
	}
	row, err = normalizeRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}

	switch id := row[models.FieldID].(type) {
	case nil:
		row[models.FieldID] = s.newID()
	case string:
		if id == "" {
			row[models.FieldID] = s.newID()
		}
	default:
		return nil, fmt.Errorf("%w: id must be a string", apperr.ErrInvalidInput)
	}

	ts := s.timestamp()
	row[models.FieldCreatedAt] = ts
	row[models.FieldUpdatedAt] = ts

	s.mu.Lock()
	if indexOf(s.tables[table], row.ID()) >= 0 {
		s.mu.Unlock()
		return nil, apperr.ErrAlreadyExists
	}
	s.tables[table] = append(s.tables[table], row)
	s.persist(ctx, table)
	out := cloneRecord(row)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeCreated, Table: table, ID: out.ID()})
	return out, nil
}

// Update shallow-merges patch into the row with the given id. id and
// created_at in the patch are ignored. When ifMatch is non-empty it must equal
// the current row checksum.
func (s *Store) Update(ctx context.Context, table, id string, patch Record, ifMatch string) (row Record, err error) {
	defer func() { metrics.StoreOps.WithLabelValues("update", table, metrics.Result(err)).Inc() }()

	if err := checkTable(table); err != nil {
		return nil, err
	}
	p, err := normalizeRecord(patch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	delete(p, models.FieldID)
	delete(p, models.FieldCreatedAt)

	s.mu.Lock()
	rows := s.tables[table]
	i := indexOf(rows, id)
	if i < 0 {
		s.mu.Unlock()
		return nil, apperr.ErrNotFound
	}
	if ifMatch != "" && ifMatch != checksum.Of(rows[i]) {
		s.mu.Unlock()
		return nil, apperr.ErrConflict
	}

	merged := cloneRecord(rows[i])
	for k, v := range p {
		merged[k] = v
	}
	merged[models.FieldUpdatedAt] = s.timestamp()
	rows[i] = merged
	s.persist(ctx, table)
	out := cloneRecord(merged)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeUpdated, Table: table, ID: id})
	return out, nil
}

// Delete removes the row with the given id. It reports false, without error,
// when no such row exists, so repeated deletes are harmless.
func (s *Store) Delete(ctx context.Context, table, id string) (deleted bool, err error) {
	defer func() { metrics.StoreOps.WithLabelValues("delete", table, metrics.Result(err)).Inc() }()

	if err := checkTable(table); err != nil {
		return false, err
	}

	s.mu.Lock()
	rows := s.tables[table]
	i := indexOf(rows, id)
	if i < 0 {
		s.mu.Unlock()
		return false, nil
	}
	s.tables[table] = append(rows[:i:i], rows[i+1:]...)
	s.persist(ctx, table)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeDeleted, Table: table, ID: id})
	return true, nil
}

// Reset drops every table back to the seed fixtures.
func (s *Store) Reset(ctx context.Context) error {
	fixtures, err := s.fixtures(s.now())
	if err != nil {
		return fmt.Errorf("mockstore: load fixtures: %w", err)
	}

	s.mu.Lock()
	for _, table := range models.Tables {
		rows, err := s.seedRows(fixtures[table])
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("mockstore: seed %s: %w", table, err)
		}
		s.tables[table] = rows
		s.persist(ctx, table)
	}
	s.mu.Unlock()

	s.logger.Info("mockstore: reset to fixtures")
	for _, table := range models.Tables {
		s.notify(Change{Kind: ChangeReset, Table: table})
	}
	return nil
}

// Reload replaces a table with its current mirror copy. A table that has
// disappeared from the mirror is reseeded. A mirror copy identical to the
// in-memory table is a no-op and notifies nobody.
func (s *Store) Reload(ctx context.Context, table string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	// Read under the write lock: a mutation between read and swap would be
	// rolled back by the older copy.
	s.mu.Lock()
	rows, found, err := s.readMirror(ctx, table)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if found && checksum.Of(rows) == checksum.Of(s.tables[table]) {
		// Our own write coming back through a watcher.
		s.mu.Unlock()
		return nil
	}
	if found {
		s.tables[table] = rows
	} else {
		fixtures, ferr := s.fixtures(s.now())
		if ferr != nil {
			s.mu.Unlock()
			return fmt.Errorf("mockstore: load fixtures: %w", ferr)
		}
		if s.tables[table], err = s.seedRows(fixtures[table]); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("mockstore: seed %s: %w", table, err)
		}
		s.persist(ctx, table)
	}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeReloaded, Table: table})
	return nil
}

// errCorruptMirror marks a mirror copy that was read but could not be decoded.
var errCorruptMirror = errors.New("mockstore: corrupt mirror")

// readMirror decodes a table from the mirror. found is false when the key is
// missing. Content that is not a JSON array of objects yields an error
// matching errCorruptMirror. Rows without an id are dropped, and of rows
// sharing an id only the first is kept.
func (s *Store) readMirror(ctx context.Context, table string) ([]Record, bool, error) {
	data, err := s.mirror.Get(ctx, table)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("mockstore: read mirror %s: %w", table, err)
	}
	var rows []Record
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", errCorruptMirror, table, err)
	}
	seen := make(map[string]bool, len(rows))
	out := rows[:0]
	for _, r := range rows {
		id := r.ID()
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, r)
	}
	if dropped := len(rows) - len(out); dropped > 0 {
		s.logger.Warn("mockstore: dropped mirror rows without a unique id",
			slog.String("table", table), slog.Int("rows", dropped))
	}
	return out, true, nil
}

// persist writes the whole table to the mirror. Callers hold the write lock.
// Failures are logged; the in-memory table stays authoritative.
func (s *Store) persist(ctx context.Context, table string) {
	rows := s.tables[table]
	if rows == nil {
		rows = []Record{}
	}
	data, err := json.Marshal(rows)
	if err == nil {
		err = s.mirror.Set(ctx, table, data)
	}
	if err != nil {
		metrics.MirrorWriteFailures.WithLabelValues(table).Inc()
		s.logger.Warn("mockstore: mirror write failed",
			slog.String("table", table), slog.String("error", err.Error()))
	}
}

// seedRows normalises fixture rows and fills in missing ids and timestamps.
func (s *Store) seedRows(fixture []map[string]any) ([]Record, error) {
	ts := s.timestamp()
	rows := make([]Record, 0, len(fixture))
	for _, f := range fixture {
		r, err := normalizeRecord(f)
		if err != nil {
			return nil, err
		}
		if r.ID() == "" {
			r[models.FieldID] = s.newID()
		}
		if _, ok := r[models.FieldCreatedAt]; !ok {
			r[models.FieldCreatedAt] = ts
		}
		if _, ok := r[models.FieldUpdatedAt]; !ok {
			r[models.FieldUpdatedAt] = r[models.FieldCreatedAt]
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(TimeLayout)
}

func checkTable(table string) error {
	if !models.IsTable(table) {
		return fmt.Errorf("%w: %s", apperr.ErrUnknownTable, table)
	}
	return nil
}

func indexOf(rows []Record, id string) int {
	if id == "" {
		return -1
	}
	for i, r := range rows {
		if r.ID() == id {
			return i
		}
	}
	return -1
}
