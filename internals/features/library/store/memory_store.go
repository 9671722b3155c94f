package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	model "library_backend/internals/features/library/model"
)

var _ RecordStore = (*MemoryStore)(nil)

var (
	ErrDuplicateHolderName = errors.New("holder name already exists")
	ErrEmptyHolderName     = errors.New("holder name must not be empty")
	ErrUnknownHolder       = errors.New("holder does not exist")
)

// Op names a memory store operation that can be made to fail with FailNext.
type Op string

const (
	OpBegin      Op = "begin"
	OpFindBook   Op = "find_book"
	OpFindHolder Op = "find_holder"
	OpSaveBook   Op = "save_book"
	OpCommit     Op = "commit"
)

// MemoryStore keeps holders and books in maps with the same constraints the
// relational schema enforces: unique non-empty holder names, books always
// pointing at an existing holder, and cascade delete from holder to books.
//
// Writes made through a unit of work are staged and applied together on Commit.
// Concurrent commits on the same book resolve to whichever commits last.
type MemoryStore struct {
	mu           sync.Mutex
	holders      map[uint]model.HolderModel
	books        map[uint]model.BookModel
	nextHolderID uint
	nextBookID   uint
	open         int
	faults       map[Op]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		holders: map[uint]model.HolderModel{},
		books:   map[uint]model.BookModel{},
		faults:  map[Op]error{},
	}
}

// FailNext makes the next call of op return err, once.
func (s *MemoryStore) FailNext(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

// OpenUnits reports how many units of work have begun but not yet finished.
func (s *MemoryStore) OpenUnits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *MemoryStore) takeFault(op Op) error {
	err, ok := s.faults[op]
	if !ok {
		return nil
	}
	delete(s.faults, op)
	return err
}

/* ===============================
   Direct record access (plumbing)
=================================*/

func (s *MemoryStore) CreateHolder(name string) (model.HolderModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name = strings.TrimSpace(name)
	if name == "" {
		return model.HolderModel{}, ErrEmptyHolderName
	}
	for _, h := range s.holders {
		if h.Name == name {
			return model.HolderModel{}, fmt.Errorf("%w: %q", ErrDuplicateHolderName, name)
		}
	}
	s.nextHolderID++
	h := model.HolderModel{ID: s.nextHolderID, Name: name}
	s.holders[h.ID] = h
	return h, nil
}

func (s *MemoryStore) CreateBook(b model.BookModel) (model.BookModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.holders[b.HolderID]; !ok {
		return model.BookModel{}, fmt.Errorf("%w: %d", ErrUnknownHolder, b.HolderID)
	}
	s.nextBookID++
	b.ID = s.nextBookID
	b.Holder = nil
	s.books[b.ID] = b
	return b, nil
}

// DeleteHolder removes the holder and every book it currently holds.
func (s *MemoryStore) DeleteHolder(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.holders[id]; !ok {
		return ErrNotFound
	}
	delete(s.holders, id)
	for bid, b := range s.books {
		if b.HolderID == id {
			delete(s.books, bid)
		}
	}
	return nil
}

func (s *MemoryStore) DeleteBook(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[id]; !ok {
		return ErrNotFound
	}
	delete(s.books, id)
	return nil
}

func (s *MemoryStore) Book(id uint) (model.BookModel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	return b, ok
}

func (s *MemoryStore) Holder(id uint) (model.HolderModel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.holders[id]
	return h, ok
}

// Books returns every book ordered by id.
func (s *MemoryStore) Books() []model.BookModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.BookModel, 0, len(s.books))
	for _, b := range s.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

/* ===============================
   Units of work
=================================*/

func (s *MemoryStore) Begin(_ context.Context) (UnitOfWork, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault(OpBegin); err != nil {
		return nil, err
	}
	s.open++
	return &memoryUnit{store: s, staged: map[uint]model.BookModel{}}, nil
}

type memoryUnit struct {
	store  *MemoryStore
	staged map[uint]model.BookModel
	closed bool
}

func (u *memoryUnit) FindBookByID(_ context.Context, id uint) (*model.BookModel, error) {
	if u.closed {
		return nil, ErrUnitClosed
	}
	if b, ok := u.staged[id]; ok {
		return &b, nil
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault(OpFindBook); err != nil {
		return nil, err
	}
	b, ok := s.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (u *memoryUnit) FindHolderByID(_ context.Context, id uint) (*model.HolderModel, error) {
	if u.closed {
		return nil, ErrUnitClosed
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault(OpFindHolder); err != nil {
		return nil, err
	}
	h, ok := s.holders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &h, nil
}

func (u *memoryUnit) FindHolderByName(_ context.Context, name string) (*model.HolderModel, error) {
	if u.closed {
		return nil, ErrUnitClosed
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault(OpFindHolder); err != nil {
		return nil, err
	}
	for _, h := range s.holders {
		if h.Name == name {
			found := h
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (u *memoryUnit) SaveBook(_ context.Context, book *model.BookModel) error {
	if u.closed {
		return ErrUnitClosed
	}
	s := u.store
	s.mu.Lock()
	err := s.takeFault(OpSaveBook)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	staged := *book
	staged.Holder = nil
	u.staged[book.ID] = staged
	return nil
}

// Commit validates every staged row first and applies nothing if one fails.
func (u *memoryUnit) Commit() error {
	if u.closed {
		return ErrUnitClosed
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	u.closed = true
	s.open--
	if err := s.takeFault(OpCommit); err != nil {
		return err
	}
	for id, b := range u.staged {
		if _, ok := s.books[id]; !ok {
			return fmt.Errorf("save book %d: %w", id, ErrNotFound)
		}
		if _, ok := s.holders[b.HolderID]; !ok {
			return fmt.Errorf("save book %d: %w: %d", id, ErrUnknownHolder, b.HolderID)
		}
	}
	for id, b := range u.staged {
		s.books[id] = b
	}
	return nil
}

func (u *memoryUnit) Rollback() error {
	if u.closed {
		return nil
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	u.closed = true
	s.open--
	u.staged = nil
	return nil
}
