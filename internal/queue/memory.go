package queue

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and local runs. Rows are
// listed in enqueue order.
type MemoryStore struct {
	mu     sync.Mutex
	rows   map[string]Record
	seq    int64
	listFn func() error
	delFn  func(queueID string) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]Record)}
}

// FailList makes every ListPending call return err (nil clears it).
func (m *MemoryStore) FailList(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		m.listFn = nil
		return
	}
	m.listFn = func() error { return err }
}

// FailDelete makes DeleteByID return err for the given queue id.
func (m *MemoryStore) FailDelete(queueID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.delFn
	m.delFn = func(id string) error {
		if id == queueID {
			return err
		}
		if prev != nil {
			return prev(id)
		}
		return nil
	}
}

func (m *MemoryStore) ListPending(_ context.Context, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listFn != nil {
		if err := m.listFn(); err != nil {
			return nil, err
		}
	}

	all := make([]Record, 0, len(m.rows))
	for _, r := range m.rows {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool {
		a, _ := strconv.ParseInt(all[i].QueueID, 10, 64)
		b, _ := strconv.ParseInt(all[j].QueueID, 10, 64)
		return a < b
	})
	if limit < len(all) {
		all = all[:max(limit, 0)]
	}
	return all, nil
}

func (m *MemoryStore) DeleteByID(_ context.Context, queueID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.delFn != nil {
		if err := m.delFn(queueID); err != nil {
			return err
		}
	}
	if _, ok := m.rows[queueID]; !ok {
		return ErrNotFound
	}
	delete(m.rows, queueID)
	return nil
}

func (m *MemoryStore) Enqueue(_ context.Context, externalID, productID string) (Record, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return Record{}, errors.New("missing external id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	rec := Record{
		QueueID:    strconv.FormatInt(m.seq, 10),
		ExternalID: externalID,
		ProductID:  strings.TrimSpace(productID),
		EnqueuedAt: time.Now().UTC(),
	}
	m.rows[rec.QueueID] = rec
	return rec, nil
}

// Has reports whether a row with queueID is still pending.
func (m *MemoryStore) Has(queueID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[queueID]
	return ok
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

var _ Store = (*MemoryStore)(nil)
