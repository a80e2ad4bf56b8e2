package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"finboard/internal/amqp"
	"finboard/internal/cache"
	"finboard/internal/core"
	"finboard/internal/datastore"
	"finboard/internal/log"
)

// DefaultMaxMetricsMonths bounds the range a metrics request may span.
const DefaultMaxMetricsMonths = 24

var ErrRangeTooLong = errors.New("month range too long")

// Publisher fans change events out to the other instances.
type Publisher interface {
	PublishChange(ctx context.Context, ev amqp.ChangeEvent) error
}

// LedgerOptions configures a LedgerService. Zero values fall back to
// defaults; a nil Cache disables caching and a nil Events disables
// publishing.
type LedgerOptions struct {
	Cache     cache.Cache[Reconciliation]
	Events    Publisher
	Engine    MetricsEngine
	Origin    string
	Location  *time.Location
	Now       func() time.Time
	MaxMonths int
	Logger    *log.Logger
}

// LedgerService reconciles months, computes metrics and applies item
// mutations for authorized users.
type LedgerService struct {
	store  datastore.Store
	cache  cache.Cache[Reconciliation]
	group  singleflight.Group
	events Publisher

	// Generations advance on every invalidation. A load only fills the
	// cache if its scope's generation did not move while it ran.
	genMu sync.Mutex
	gens  map[string]uint64
	epoch uint64

	engine    MetricsEngine
	origin    string
	loc       *time.Location
	now       func() time.Time
	maxMonths int
	logger    *log.Logger
	audit     *log.StructuredLogger
}

type (
	// NewItem is a create request. An empty BoardID files the item in the
	// creator's personal ledger.
	NewItem struct {
		BoardID       string          `json:"boardId,omitempty"`
		Title         string          `json:"title"`
		Amount        decimal.Decimal `json:"amount"`
		Date          core.Date       `json:"date"`
		Type          core.ItemType   `json:"type"`
		Status        core.StatusType `json:"status,omitempty"`
		PaidAmount    decimal.Decimal `json:"paidAmount"`
		Category      string          `json:"category"`
		CreatedByName string          `json:"createdByName,omitempty"`
		// Recurring also registers a monthly template on the item's day.
		Recurring bool `json:"recurring"`
	}

	// ItemPatch lists the fields to change; nil fields are kept.
	ItemPatch struct {
		Title      *string          `json:"title,omitempty"`
		Amount     *decimal.Decimal `json:"amount,omitempty"`
		Date       *core.Date       `json:"date,omitempty"`
		Type       *core.ItemType   `json:"type,omitempty"`
		PaidAmount *decimal.Decimal `json:"paidAmount,omitempty"`
		Category   *string          `json:"category,omitempty"`
	}
)

func NewLedgerService(store datastore.Store, opts LedgerOptions) *LedgerService {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxMonths <= 0 {
		opts.MaxMonths = DefaultMaxMetricsMonths
	}
	if opts.Origin == "" {
		opts.Origin = uuid.NewString()
	}
	logger := opts.Logger.WithComponent(log.ComponentLedger)
	return &LedgerService{
		store:     store,
		cache:     opts.Cache,
		gens:      make(map[string]uint64),
		events:    opts.Events,
		engine:    opts.Engine.withDefaults(),
		origin:    opts.Origin,
		loc:       opts.Location,
		now:       opts.Now,
		maxMonths: opts.MaxMonths,
		logger:    logger,
		audit:     log.NewStructuredLogger(logger),
	}
}

// Origin identifies this instance in published change events.
func (s *LedgerService) Origin() string {
	return s.origin
}

// Today is the current date in the service's time zone.
func (s *LedgerService) Today() core.Date {
	return core.DateOf(s.now().In(s.loc))
}

// Invalidate drops cached snapshots of scope; a zero month drops them all.
// Loads of scope already in flight will not be cached.
func (s *LedgerService) Invalidate(scope core.Scope, month core.Month) int {
	s.genMu.Lock()
	s.gens[scope.Key()]++
	s.genMu.Unlock()
	if s.cache == nil {
		return 0
	}
	return cache.Invalidate(s.cache, scope, month)
}

// InvalidateAll drops every cached snapshot, for when change events may
// have been missed.
func (s *LedgerService) InvalidateAll() int {
	s.genMu.Lock()
	s.epoch++
	s.genMu.Unlock()
	if s.cache == nil {
		return 0
	}
	return cache.InvalidateAll(s.cache)
}

func (s *LedgerService) generation(scope core.Scope) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.epoch + s.gens[scope.Key()]
}

// fill caches rec unless scope was invalidated since gen was read. The
// check and the write share the lock so an invalidation cannot slip in
// between; its delete then runs after the write.
func (s *LedgerService) fill(key string, scope core.Scope, gen uint64, rec Reconciliation) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.epoch+s.gens[scope.Key()] != gen {
		return false
	}
	s.cache.Set(key, rec)
	return true
}

// authorize checks that user may act on scope and returns the owner used
// for projected items.
func (s *LedgerService) authorize(ctx context.Context, user string, scope core.Scope) (string, error) {
	if strings.TrimSpace(user) == "" {
		return "", core.ErrUnauthorized
	}
	if !scope.IsBoard() {
		if scope.OwnerID != user {
			return "", core.ErrUnauthorized
		}
		return user, nil
	}
	board, err := s.store.GetBoard(ctx, scope.BoardID)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return "", fmt.Errorf("board %s: %w", scope.BoardID, core.ErrUnauthorized)
	case err != nil:
		return "", fmt.Errorf("load board %s: %w: %w", scope.BoardID, core.ErrUpstreamUnavailable, err)
	}
	if !board.IsOwnerOrMember(user) {
		return "", core.ErrUnauthorized
	}
	return board.OwnerID, nil
}

// Reconciled returns the reconciled items of scope for month. When the
// templates cannot be read the result holds only real items and its Err is
// set; such results are not cached.
func (s *LedgerService) Reconciled(ctx context.Context, user string, scope core.Scope, month core.Month) (Reconciliation, error) {
	if month.IsZero() {
		return Reconciliation{}, &core.FieldError{Field: "month", Err: core.ErrInvalidMonth}
	}
	owner, err := s.authorize(ctx, user, scope)
	if err != nil {
		return Reconciliation{}, err
	}
	return s.reconciled(ctx, owner, scope, month)
}

func (s *LedgerService) reconciled(ctx context.Context, owner string, scope core.Scope, month core.Month) (Reconciliation, error) {
	key := cache.Key(scope, month)
	if s.cache != nil {
		if rec, ok := s.cache.Get(key); ok {
			return withOwnItems(rec), nil
		}
	}

	// Callers arriving after an invalidation start a fresh load instead of
	// sharing one that may have read stale rows.
	gen := s.generation(scope)
	v, err, _ := s.group.Do(key+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		rec, err := s.load(ctx, owner, scope, month)
		if err != nil {
			return Reconciliation{}, err
		}
		if s.cache != nil && !rec.Degraded() && !s.fill(key, scope, gen, rec) {
			s.logger.DebugContext(ctx, "Discarded reconciliation invalidated during load",
				log.FieldScope, scope.Key(),
				log.FieldMonth, month.String())
		}
		return rec, nil
	})
	if err != nil {
		return Reconciliation{}, err
	}
	return withOwnItems(v.(Reconciliation)), nil
}

// withOwnItems copies the item slice so callers cannot alter shared snapshots.
func withOwnItems(rec Reconciliation) Reconciliation {
	rec.Items = slices.Clone(rec.Items)
	return rec
}

func (s *LedgerService) load(ctx context.Context, owner string, scope core.Scope, month core.Month) (Reconciliation, error) {
	var (
		g         errgroup.Group
		items     []core.FinanceItem
		templates []core.FixedTemplate
		tplErr    error
	)
	g.Go(func() error {
		var err error
		items, err = s.store.ListItems(ctx, scope, month)
		return err
	})
	g.Go(func() error {
		templates, tplErr = s.store.ListActiveTemplates(ctx, scope)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Reconciliation{}, fmt.Errorf("list items for %s %s: %w: %w", scope.Key(), month, core.ErrUpstreamUnavailable, err)
	}

	rec := reconcile(owner, month, items, templates)
	if tplErr != nil {
		rec.Err = fmt.Errorf("list templates for %s: %w: %w", scope.Key(), core.ErrUpstreamUnavailable, tplErr)
		s.logger.WarnContext(ctx, "Reconciliation degraded to real items",
			log.FieldScope, scope.Key(),
			log.FieldMonth, month.String(),
			log.FieldError, tplErr)
	}
	s.logger.DebugContext(ctx, "Month reconciled",
		log.FieldScope, scope.Key(),
		log.FieldMonth, month.String(),
		log.FieldCount, len(rec.Items),
		"synthetic", rec.Synthetic,
		"suppressed", rec.Suppressed)
	return rec, nil
}

// Metrics reconciles every month from from to to inclusive and aggregates
// the result. Collaborators are only reported for board scopes.
func (s *LedgerService) Metrics(ctx context.Context, user string, scope core.Scope, from, to core.Month) (MetricsReport, error) {
	_, report, err := s.Range(ctx, user, scope, from, to)
	return report, err
}

// Range reconciles each month from from to to inclusive once and returns
// the months in order together with their aggregate metrics.
func (s *LedgerService) Range(ctx context.Context, user string, scope core.Scope, from, to core.Month) ([]Reconciliation, MetricsReport, error) {
	if from.IsZero() {
		return nil, MetricsReport{}, &core.FieldError{Field: "from", Err: core.ErrInvalidMonth}
	}
	if to.IsZero() {
		return nil, MetricsReport{}, &core.FieldError{Field: "to", Err: core.ErrInvalidMonth}
	}
	n, err := core.MonthsBetween(from, to)
	if err != nil {
		return nil, MetricsReport{}, &core.FieldError{Field: "from", Err: err}
	}
	if n > s.maxMonths {
		return nil, MetricsReport{}, &core.FieldError{Field: "from", Err: fmt.Errorf("%w: %d months, max %d", ErrRangeTooLong, n, s.maxMonths)}
	}

	owner, err := s.authorize(ctx, user, scope)
	if err != nil {
		return nil, MetricsReport{}, err
	}

	var (
		months   = make([]Reconciliation, 0, n)
		items    []core.FinanceItem
		degraded bool
	)
	for _, month := range from.Range(to) {
		rec, err := s.reconciled(ctx, owner, scope, month)
		if err != nil {
			return nil, MetricsReport{}, err
		}
		months = append(months, rec)
		degraded = degraded || rec.Degraded()
		items = append(items, rec.Items...)
	}

	report := s.engine.Compute(items, s.Today())
	report.Diagnostics.Degraded = degraded
	if !scope.IsBoard() {
		report.Collaborators = nil
	}
	if report.Diagnostics.Skipped > 0 {
		s.logger.WarnContext(ctx, "Skipped malformed items in metrics",
			log.FieldScope, scope.Key(),
			log.FieldSkipped, report.Diagnostics.Skipped)
	}
	return months, report, nil
}

func itemScope(user, boardID string) core.Scope {
	if boardID != "" {
		return core.BoardScope(boardID)
	}
	return core.PersonalScope(user)
}

// CreateItem stores a new real item. Amounts are rounded to cents. A
// recurring expense also registers a template on the item's day of month;
// the template is stored first so a failure leaves nothing behind to retry
// around.
func (s *LedgerService) CreateItem(ctx context.Context, user string, in NewItem) (core.FinanceItem, error) {
	if _, err := s.authorize(ctx, user, itemScope(user, in.BoardID)); err != nil {
		return core.FinanceItem{}, err
	}

	item := core.FinanceItem{
		OwnerID:       user,
		BoardID:       in.BoardID,
		Title:         strings.TrimSpace(in.Title),
		Amount:        core.Cents(in.Amount),
		Date:          in.Date,
		Type:          in.Type,
		Status:        in.Status,
		PaidAmount:    core.Cents(in.PaidAmount),
		Category:      strings.TrimSpace(in.Category),
		IsFixed:       in.Recurring,
		CreatedBy:     user,
		CreatedByName: strings.TrimSpace(in.CreatedByName),
		CreatedAt:     s.now().UTC(),
	}
	switch item.Status {
	case "":
		item.Status = core.Pending
		item.PaidAmount = decimal.Zero
	case core.Paid:
		item.PaidAmount = item.Amount
	case core.Pending:
		item.PaidAmount = decimal.Zero
	}
	if err := item.Validate(); err != nil {
		return core.FinanceItem{}, err
	}

	var tpl core.FixedTemplate
	if in.Recurring {
		if item.Type != core.Expense {
			return core.FinanceItem{}, &core.FieldError{Field: "recurring", Err: core.ErrInvalidType}
		}
		tpl = core.FixedTemplate{
			OwnerID:   user,
			BoardID:   item.BoardID,
			Title:     item.Title,
			Amount:    item.Amount,
			Category:  item.Category,
			Day:       item.Date.Day(),
			Active:    true,
			CreatedAt: item.CreatedAt,
		}
		if err := tpl.Validate(); err != nil {
			return core.FinanceItem{}, err
		}
	}

	if in.Recurring {
		savedTpl, err := s.store.SaveTemplate(ctx, tpl)
		if err != nil {
			return core.FinanceItem{}, fmt.Errorf("save template: %w", err)
		}
		s.templateChanged(ctx, savedTpl)
		tpl = savedTpl
	}

	saved, err := s.store.SaveItem(ctx, item)
	if err != nil {
		if in.Recurring {
			s.rollbackTemplate(ctx, tpl)
		}
		return core.FinanceItem{}, fmt.Errorf("save item: %w", err)
	}
	s.audit.LogItemChanged(ctx, log.OpCreate, user, saved)
	s.itemChanged(ctx, amqp.OpItemCreated, saved)
	return saved, nil
}

// rollbackTemplate deactivates a template whose item could not be stored.
func (s *LedgerService) rollbackTemplate(ctx context.Context, tpl core.FixedTemplate) {
	if err := s.store.SetTemplateActive(ctx, tpl.ID, false); err != nil {
		s.logger.ErrorContext(ctx, "Failed to deactivate orphaned template",
			log.FieldTemplateID, tpl.ID,
			log.FieldError, err)
		return
	}
	tpl.Active = false
	s.templateChanged(ctx, tpl)
}

// editable loads a real item user may change.
func (s *LedgerService) editable(ctx context.Context, user, id string) (core.FinanceItem, error) {
	if core.IsSyntheticID(id) {
		return core.FinanceItem{}, core.ErrSyntheticImmutable
	}
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return core.FinanceItem{}, fmt.Errorf("get item %s: %w", id, err)
	}
	if _, err := s.authorize(ctx, user, itemScope(item.OwnerID, item.BoardID)); err != nil {
		return core.FinanceItem{}, err
	}
	return item, nil
}

// UpdateItem applies patch and derives the status from the paid amount.
// Patched amounts are rounded to cents.
func (s *LedgerService) UpdateItem(ctx context.Context, user, id string, patch ItemPatch) (core.FinanceItem, error) {
	item, err := s.editable(ctx, user, id)
	if err != nil {
		return core.FinanceItem{}, err
	}
	before := item

	if patch.Title != nil {
		item.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Amount != nil {
		item.Amount = core.Cents(*patch.Amount)
	}
	if patch.Date != nil {
		item.Date = *patch.Date
	}
	if patch.Type != nil {
		item.Type = *patch.Type
	}
	if patch.Category != nil {
		item.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.PaidAmount != nil {
		item.PaidAmount = core.Cents(*patch.PaidAmount)
	}
	item.Status = core.StatusForPaid(item.Amount, item.PaidAmount)
	if item.Status == core.Paid {
		item.PaidAmount = item.Amount
	}
	if err := item.Validate(); err != nil {
		return core.FinanceItem{}, err
	}

	if err := s.store.UpdateItem(ctx, item); err != nil {
		return core.FinanceItem{}, fmt.Errorf("update item %s: %w", id, err)
	}
	s.audit.LogItemChanged(ctx, log.OpUpdate, user, item)
	if before.Date.MonthOf() != item.Date.MonthOf() {
		s.itemChanged(ctx, amqp.OpItemUpdated, before)
	}
	s.itemChanged(ctx, amqp.OpItemUpdated, item)
	return item, nil
}

// ToggleStatus flips an item between paid and pending.
func (s *LedgerService) ToggleStatus(ctx context.Context, user, id string) (core.FinanceItem, error) {
	item, err := s.editable(ctx, user, id)
	if err != nil {
		return core.FinanceItem{}, err
	}
	if item.Status == core.Paid {
		item.Status = core.Pending
		item.PaidAmount = decimal.Zero
	} else {
		item.Status = core.Paid
		item.PaidAmount = item.Amount
	}
	if err := s.store.UpdateItem(ctx, item); err != nil {
		return core.FinanceItem{}, fmt.Errorf("toggle item %s: %w", id, err)
	}
	s.audit.LogItemChanged(ctx, log.OpToggle, user, item)
	s.itemChanged(ctx, amqp.OpItemUpdated, item)
	return item, nil
}

func (s *LedgerService) DeleteItem(ctx context.Context, user, id string) error {
	item, err := s.editable(ctx, user, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteItem(ctx, id); err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	s.audit.LogItemChanged(ctx, log.OpDelete, user, item)
	s.itemChanged(ctx, amqp.OpItemDeleted, item)
	return nil
}

// ConfirmFixed turns the projection syntheticID into a real recurring item
// with the given status. The projection is then suppressed by dedup.
func (s *LedgerService) ConfirmFixed(ctx context.Context, user string, scope core.Scope, syntheticID string, status core.StatusType) (core.FinanceItem, error) {
	month, err := syntheticMonth(syntheticID)
	if err != nil {
		return core.FinanceItem{}, err
	}
	switch status {
	case "":
		status = core.Paid
	case core.Paid, core.Pending:
	default:
		return core.FinanceItem{}, &core.FieldError{Field: "status", Err: core.ErrInvalidStatus}
	}
	owner, err := s.authorize(ctx, user, scope)
	if err != nil {
		return core.FinanceItem{}, err
	}

	templates, err := s.store.ListActiveTemplates(ctx, scope)
	if err != nil {
		return core.FinanceItem{}, fmt.Errorf("list templates: %w: %w", core.ErrUpstreamUnavailable, err)
	}
	tpl, err := findSynthetic(syntheticID, month, templates)
	if err != nil {
		return core.FinanceItem{}, err
	}

	day := month.ClampDay(tpl.Day)
	items, err := s.store.ListItems(ctx, scope, month)
	if err != nil {
		return core.FinanceItem{}, fmt.Errorf("list items: %w: %w", core.ErrUpstreamUnavailable, err)
	}
	key := dedupKey(tpl.Title, core.AmountKey(tpl.Amount), tpl.Category, day)
	for _, it := range items {
		if month.Contains(it.Date) && dedupKey(it.Title, core.AmountKey(it.Amount), it.Category, it.Date.Day()) == key {
			return core.FinanceItem{}, fmt.Errorf("synthetic item %s already confirmed: %w", syntheticID, core.ErrNotFound)
		}
	}

	item := project(owner, month, day, tpl)
	item.ID = ""
	item.IsSynthetic = false
	item.OwnerID = user
	item.CreatedBy = user
	item.CreatedAt = s.now().UTC()
	item.Amount = core.Cents(item.Amount)
	item.Status = status
	if status == core.Paid {
		item.PaidAmount = item.Amount
	}

	saved, err := s.store.SaveItem(ctx, item)
	if err != nil {
		return core.FinanceItem{}, fmt.Errorf("confirm %s: %w", syntheticID, err)
	}
	s.audit.LogItemChanged(ctx, log.OpConfirm, user, saved)
	s.itemChanged(ctx, amqp.OpItemCreated, saved)
	return saved, nil
}

// syntheticMonth reads the month suffix of a projected item id.
func syntheticMonth(id string) (core.Month, error) {
	notFound := fmt.Errorf("synthetic item %s: %w", id, core.ErrNotFound)
	if !core.IsSyntheticID(id) {
		return core.Month{}, notFound
	}
	i := strings.LastIndexByte(id, '_')
	if i < len(core.SyntheticPrefix) {
		return core.Month{}, notFound
	}
	month, err := core.ParseMonth(id[i+1:])
	if err != nil {
		return core.Month{}, notFound
	}
	return month, nil
}

func (s *LedgerService) ListTemplates(ctx context.Context, user string, scope core.Scope) ([]core.FixedTemplate, error) {
	if _, err := s.authorize(ctx, user, scope); err != nil {
		return nil, err
	}
	templates, err := s.store.ListTemplates(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// DeactivateTemplate stops a template from projecting into any month.
func (s *LedgerService) DeactivateTemplate(ctx context.Context, user, id string) error {
	tpl, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return fmt.Errorf("get template %s: %w", id, err)
	}
	if _, err := s.authorize(ctx, user, itemScope(tpl.OwnerID, tpl.BoardID)); err != nil {
		return err
	}
	if err := s.store.SetTemplateActive(ctx, id, false); err != nil {
		return fmt.Errorf("deactivate template %s: %w", id, err)
	}
	tpl.Active = false
	s.logger.InfoContext(ctx, "Template deactivated",
		log.FieldTemplateID, id,
		log.FieldUserID, user)
	s.templateChanged(ctx, tpl)
	return nil
}

// ListCategories returns the built-in categories followed by the user's own.
func (s *LedgerService) ListCategories(ctx context.Context, user string) ([]string, error) {
	if strings.TrimSpace(user) == "" {
		return nil, core.ErrUnauthorized
	}
	custom, err := s.store.ListCustomCategories(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return core.MergeCategories(custom), nil
}

func (s *LedgerService) CreateCategory(ctx context.Context, user, name string) (string, error) {
	if strings.TrimSpace(user) == "" {
		return "", core.ErrUnauthorized
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &core.FieldError{Field: "name", Err: core.ErrEmptyName}
	}
	if core.IsBuiltinCategory(name) {
		return "", &core.FieldError{Field: "name", Err: core.ErrDuplicateCategory}
	}
	if err := s.store.SaveCategory(ctx, user, name); err != nil {
		if errors.Is(err, core.ErrDuplicateCategory) {
			return "", &core.FieldError{Field: "name", Err: err}
		}
		return "", fmt.Errorf("save category: %w", err)
	}
	return name, nil
}

// CreateBoard opens a board owned by user with user as its only member.
func (s *LedgerService) CreateBoard(ctx context.Context, user, name string) (core.FinanceBoard, error) {
	if strings.TrimSpace(user) == "" {
		return core.FinanceBoard{}, core.ErrUnauthorized
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return core.FinanceBoard{}, &core.FieldError{Field: "name", Err: core.ErrEmptyName}
	}
	board, err := s.store.SaveBoard(ctx, core.FinanceBoard{
		Name:       name,
		OwnerID:    user,
		MemberIDs:  []string{user},
		IsPersonal: true,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return core.FinanceBoard{}, fmt.Errorf("save board: %w", err)
	}
	s.logger.InfoContext(ctx, "Board created", "board_id", board.ID, log.FieldUserID, user)
	return board, nil
}

// ListBoards returns the boards user owns or joined, newest first.
func (s *LedgerService) ListBoards(ctx context.Context, user string) ([]core.FinanceBoard, error) {
	if strings.TrimSpace(user) == "" {
		return nil, core.ErrUnauthorized
	}
	boards, err := s.store.ListBoardsForUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	seen := make(map[string]struct{}, len(boards))
	out := make([]core.FinanceBoard, 0, len(boards))
	for _, b := range boards {
		if _, ok := seen[b.ID]; ok {
			continue
		}
		seen[b.ID] = struct{}{}
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b core.FinanceBoard) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), strings.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *LedgerService) itemChanged(ctx context.Context, op amqp.ChangeOp, item core.FinanceItem) {
	s.Invalidate(item.Scope(), item.Date.MonthOf())
	s.publish(ctx, amqp.NewItemEvent(op, item))
}

func (s *LedgerService) templateChanged(ctx context.Context, tpl core.FixedTemplate) {
	s.Invalidate(itemScope(tpl.OwnerID, tpl.BoardID), core.Month{})
	s.publish(ctx, amqp.NewTemplateEvent(tpl))
}

// publish is best effort: the change is already stored and other instances
// catch up when their cache entries expire.
func (s *LedgerService) publish(ctx context.Context, ev amqp.ChangeEvent) {
	if s.events == nil {
		return
	}
	ev.Origin = s.origin
	if err := s.events.PublishChange(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish change event",
			log.FieldOperation, log.OpPublish,
			log.FieldScope, ev.Scope().Key(),
			log.FieldError, err)
	}
}
