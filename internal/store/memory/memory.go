// Package memory provides in-memory UserStore/OrderStore/BanList/AuditLog
// implementations. The teacher repo substitutes in-memory stores at the
// repository seam for unit tests (internal/persist's *Repo types wrap a
// *persist.DB); this package plays the same role without a database.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/metaserver/metaserver/internal/store"
)

type Users struct {
	mu     sync.RWMutex
	byID   map[int64]*store.User
	byName map[string]int64 // lowercased login -> id
	nextID int64
}

func NewUsers() *Users {
	return &Users{
		byID:   make(map[int64]*store.User),
		byName: make(map[string]int64),
	}
}

func (s *Users) GetByID(_ context.Context, id int64) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Users) GetByName(_ context.Context, login string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[strings.ToLower(login)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *Users) Insert(_ context.Context, u *store.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(u.Login)
	if _, exists := s.byName[key]; exists {
		return 0, store.ErrConflict
	}
	s.nextID++
	id := s.nextID
	cp := *u
	cp.ID = id
	s.byID[id] = &cp
	s.byName[key] = id
	return id, nil
}

func (s *Users) Update(_ context.Context, u *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[u.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *u
	s.byID[u.ID] = &cp
	return nil
}

func (s *Users) IterateAll(_ context.Context, fn func(*store.User) error) error {
	s.mu.RLock()
	snapshot := make([]*store.User, 0, len(s.byID))
	for _, u := range s.byID {
		cp := *u
		snapshot = append(snapshot, &cp)
	}
	s.mu.RUnlock()

	for _, u := range snapshot {
		if err := fn(u); err != nil {
			return err
		}
	}
	return nil
}

type Orders struct {
	mu     sync.RWMutex
	byID   map[int64]*store.Order
	byName map[string]int64
	nextID int64
}

func NewOrders() *Orders {
	return &Orders{
		byID:   make(map[int64]*store.Order),
		byName: make(map[string]int64),
	}
}

func (s *Orders) GetByID(_ context.Context, id int64) (*store.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *Orders) GetByName(_ context.Context, name string) (*store.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[strings.ToLower(name)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *Orders) Insert(_ context.Context, o *store.Order) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(o.Name)
	if _, exists := s.byName[key]; exists {
		return 0, store.ErrConflict
	}
	s.nextID++
	id := s.nextID
	cp := *o
	cp.ID = id
	s.byID[id] = &cp
	s.byName[key] = id
	return id, nil
}

func (s *Orders) Update(_ context.Context, o *store.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[o.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *o
	s.byID[o.ID] = &cp
	return nil
}

func (s *Orders) MarkUnused(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	o.Unused = true
	return nil
}

func (s *Orders) IterateAll(_ context.Context, fn func(*store.Order) error) error {
	s.mu.RLock()
	snapshot := make([]*store.Order, 0, len(s.byID))
	for _, o := range s.byID {
		cp := *o
		snapshot = append(snapshot, &cp)
	}
	s.mu.RUnlock()

	for _, o := range snapshot {
		if err := fn(o); err != nil {
			return err
		}
	}
	return nil
}

// BanList is a trivial in-memory ban list keyed by IP and login.
type BanList struct {
	mu     sync.RWMutex
	ips    map[uint32]bool
	logins map[string]bool
}

func NewBanList() *BanList {
	return &BanList{ips: make(map[uint32]bool), logins: make(map[string]bool)}
}

func (b *BanList) BanIP(ip uint32)        { b.mu.Lock(); b.ips[ip] = true; b.mu.Unlock() }
func (b *BanList) BanLogin(login string)  { b.mu.Lock(); b.logins[strings.ToLower(login)] = true; b.mu.Unlock() }

func (b *BanList) IsIPBanned(_ context.Context, ip uint32) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ips[ip], nil
}

func (b *BanList) IsLoginBanned(_ context.Context, login string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.logins[strings.ToLower(login)], nil
}

// AuditLog is an in-memory append-only audit sink, useful for tests that
// assert on what was recorded.
type AuditLog struct {
	mu      sync.Mutex
	entries []store.AuditEntry
}

func NewAuditLog() *AuditLog { return &AuditLog{} }

func (a *AuditLog) Record(_ context.Context, e store.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *AuditLog) Entries() []store.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]store.AuditEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// ScoredGames tracks which game ids have already had scores applied,
// making score application idempotent (spec.md §4.4/§8).
type ScoredGames struct {
	mu    sync.Mutex
	seen  map[int64]bool
}

func NewScoredGames() *ScoredGames {
	return &ScoredGames{seen: make(map[int64]bool)}
}

func (s *ScoredGames) MarkScored(_ context.Context, gameID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[gameID] {
		return false, nil
	}
	s.seen[gameID] = true
	return true, nil
}
