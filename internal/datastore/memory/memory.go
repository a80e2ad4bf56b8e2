package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"finboard/internal/core"
)

// Store keeps ledger data in memory. It is safe for concurrent use and hands
// out copies so callers cannot mutate stored records.
type Store struct {
	mu         sync.RWMutex
	items      map[string]core.FinanceItem
	templates  map[string]core.FixedTemplate
	boards     map[string]core.FinanceBoard
	categories map[string][]string
	now        func() time.Time
}

func New() *Store {
	return &Store{
		items:      make(map[string]core.FinanceItem),
		templates:  make(map[string]core.FixedTemplate),
		boards:     make(map[string]core.FinanceBoard),
		categories: make(map[string][]string),
		now:        time.Now,
	}
}

func inScope(scope core.Scope, ownerID, boardID string) bool {
	if scope.IsBoard() {
		return boardID == scope.BoardID
	}
	return boardID == "" && ownerID == scope.OwnerID
}

func (s *Store) ListItems(_ context.Context, scope core.Scope, month core.Month) ([]core.FinanceItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.FinanceItem
	for _, it := range s.items {
		if inScope(scope, it.OwnerID, it.BoardID) && month.Contains(it.Date) {
			out = append(out, it)
		}
	}
	slices.SortFunc(out, func(a, b core.FinanceItem) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) GetItem(_ context.Context, id string) (core.FinanceItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return core.FinanceItem{}, core.ErrNotFound
	}
	return it, nil
}

func (s *Store) SaveItem(_ context.Context, item core.FinanceItem) (core.FinanceItem, error) {
	if item.IsSynthetic || core.IsSyntheticID(item.ID) {
		return core.FinanceItem{}, core.ErrSyntheticImmutable
	}
	if err := item.Validate(); err != nil {
		return core.FinanceItem{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = uuid.NewString()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now().UTC()
	}
	s.items[item.ID] = item
	return item, nil
}

func (s *Store) UpdateItem(_ context.Context, item core.FinanceItem) error {
	if item.IsSynthetic || core.IsSyntheticID(item.ID) {
		return core.ErrSyntheticImmutable
	}
	if err := item.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		return core.ErrNotFound
	}
	s.items[item.ID] = item
	return nil
}

func (s *Store) DeleteItem(_ context.Context, id string) error {
	if core.IsSyntheticID(id) {
		return core.ErrSyntheticImmutable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *Store) ListActiveTemplates(ctx context.Context, scope core.Scope) ([]core.FixedTemplate, error) {
	all, err := s.ListTemplates(ctx, scope)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(t core.FixedTemplate) bool { return !t.Active }), nil
}

func (s *Store) ListTemplates(_ context.Context, scope core.Scope) ([]core.FixedTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.FixedTemplate
	for _, t := range s.templates {
		if inScope(scope, t.OwnerID, t.BoardID) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b core.FixedTemplate) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) GetTemplate(_ context.Context, id string) (core.FixedTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return core.FixedTemplate{}, core.ErrNotFound
	}
	return t, nil
}

func (s *Store) SaveTemplate(_ context.Context, tpl core.FixedTemplate) (core.FixedTemplate, error) {
	if err := tpl.Validate(); err != nil {
		return core.FixedTemplate{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = s.now().UTC()
	}
	s.templates[tpl.ID] = tpl
	return tpl, nil
}

func (s *Store) SetTemplateActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return core.ErrNotFound
	}
	t.Active = active
	s.templates[id] = t
	return nil
}

func (s *Store) GetBoard(_ context.Context, id string) (core.FinanceBoard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.boards[id]
	if !ok {
		return core.FinanceBoard{}, core.ErrNotFound
	}
	b.MemberIDs = slices.Clone(b.MemberIDs)
	return b, nil
}

func (s *Store) SaveBoard(_ context.Context, board core.FinanceBoard) (core.FinanceBoard, error) {
	if strings.TrimSpace(board.Name) == "" {
		return core.FinanceBoard{}, core.ErrEmptyName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if board.ID == "" {
		board.ID = uuid.NewString()
	}
	if board.CreatedAt.IsZero() {
		board.CreatedAt = s.now().UTC()
	}
	board.MemberIDs = slices.Clone(board.MemberIDs)
	s.boards[board.ID] = board
	return board, nil
}

func (s *Store) ListBoardsForUser(_ context.Context, userID string) ([]core.FinanceBoard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.FinanceBoard
	for _, b := range s.boards {
		if b.IsOwnerOrMember(userID) {
			b.MemberIDs = slices.Clone(b.MemberIDs)
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) ListCustomCategories(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.categories[userID]), nil
}

func (s *Store) SaveCategory(_ context.Context, userID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.categories[userID], name) {
		return core.ErrDuplicateCategory
	}
	s.categories[userID] = append(s.categories[userID], name)
	return nil
}
