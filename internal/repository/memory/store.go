// Package memory keeps every repository in process. It backs development
// mode and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/carbon-ledger/internal/domain"
	"github.com/spec-kit/carbon-ledger/internal/repository"
)

// Store holds all tables behind one mutex. Units of work started with
// WithinTransaction record an undo log and replay it when they fail.
type Store struct {
	mu  sync.RWMutex
	seq uint64
	now func() time.Time

	users        *table[domain.User]
	orgs         *table[domain.Organization]
	trips        *table[domain.Trip]
	transactions *table[domain.CreditTransaction]
	history      *table[domain.TransactionHistory]
	entries      *table[domain.LedgerEntry]
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		now:          func() time.Time { return time.Now().UTC() },
		users:        newTable[domain.User](),
		orgs:         newTable[domain.Organization](),
		trips:        newTable[domain.Trip](),
		transactions: newTable[domain.CreditTransaction](),
		history:      newTable[domain.TransactionHistory](),
		entries:      newTable[domain.LedgerEntry](),
	}
}

var _ repository.Transactor = (*Store)(nil)

type unitKey struct{}

type unit struct {
	undo []func()
}

// WithinTransaction runs fn as one unit. Nested calls join the outer unit.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(unitKey{}).(*unit); ok {
		return fn(ctx)
	}

	u := &unit{}
	defer func() {
		if p := recover(); p != nil {
			s.rollback(u)
			panic(p)
		}
		if err != nil {
			s.rollback(u)
		}
	}()

	return fn(context.WithValue(ctx, unitKey{}, u))
}

func (s *Store) rollback(u *unit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.undo = nil
}

// Users returns the user repository view.
func (s *Store) Users() repository.UserRepository { return &userRepository{store: s} }

// Organizations returns the organization repository view.
func (s *Store) Organizations() repository.OrganizationRepository {
	return &organizationRepository{store: s}
}

// Trips returns the trip repository view.
func (s *Store) Trips() repository.TripRepository { return &tripRepository{store: s} }

// CreditTransactions returns the credit transaction repository view.
func (s *Store) CreditTransactions() repository.CreditTransactionRepository {
	return &creditTransactionRepository{store: s}
}

// TransactionHistory returns the history repository view.
func (s *Store) TransactionHistory() repository.TransactionHistoryRepository {
	return &historyRepository{store: s}
}

// LedgerEntries returns the ledger entry repository view.
func (s *Store) LedgerEntries() repository.LedgerEntryRepository {
	return &ledgerEntryRepository{store: s}
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// nextSeq must be called with mu held.
func (s *Store) nextSeq() uint64 {
	s.seq++
	return s.seq
}

// table is an ordered map keyed by id. Callers hold Store.mu.
type table[T any] struct {
	rows map[string]T
	seq  map[string]uint64
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: map[string]T{}, seq: map[string]uint64{}}
}

func (t *table[T]) get(id string) (T, bool) {
	row, ok := t.rows[id]
	return row, ok
}

// put stores row and registers its inverse with the unit bound to ctx.
func (t *table[T]) put(ctx context.Context, s *Store, id string, row T) {
	prev, existed := t.rows[id]
	prevSeq := t.seq[id]
	if !existed {
		t.seq[id] = s.nextSeq()
	}
	t.rows[id] = row

	if u, ok := ctx.Value(unitKey{}).(*unit); ok {
		u.undo = append(u.undo, func() {
			if existed {
				t.rows[id] = prev
				t.seq[id] = prevSeq
				return
			}
			delete(t.rows, id)
			delete(t.seq, id)
		})
	}
}

func (t *table[T]) remove(ctx context.Context, id string) bool {
	prev, existed := t.rows[id]
	if !existed {
		return false
	}
	prevSeq := t.seq[id]
	delete(t.rows, id)
	delete(t.seq, id)

	if u, ok := ctx.Value(unitKey{}).(*unit); ok {
		u.undo = append(u.undo, func() {
			t.rows[id] = prev
			t.seq[id] = prevSeq
		})
	}
	return true
}

// ordered returns the rows matching keep in insertion order.
func (t *table[T]) ordered(keep func(T) bool) []T {
	ids := make([]string, 0, len(t.rows))
	for id, row := range t.rows {
		if keep == nil || keep(row) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return t.seq[ids[i]] < t.seq[ids[j]] })

	result := make([]T, 0, len(ids))
	for _, id := range ids {
		result = append(result, t.rows[id])
	}
	return result
}

func paginate[T any](items []T, page repository.Page) []T {
	page = page.Normalize()
	if page.Offset >= len(items) {
		return nil
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Offset:end]
}
