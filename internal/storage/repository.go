package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"finboard/internal/core"
	"finboard/internal/log"
)

const timestampLayout = time.RFC3339Nano

// SQLiteRepository implements datastore.Store on a SQLite file.
type SQLiteRepository struct {
	db            *sql.DB
	logger        *log.Logger
	now           func() time.Time
	schemaVersion uint
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	version, err := migrateUp(dbPath)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger = logger.WithComponent(log.ComponentStorage)
	logger.Info("SQLite store ready", "path", dbPath, "schema_version", version)
	return &SQLiteRepository{
		db:            db,
		logger:        logger,
		now:           time.Now,
		schemaVersion: version,
	}, nil
}

// SchemaVersion is the migration version the store was opened at.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.schemaVersion
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// scopeClause filters rows of a table with owner_id and board_id columns.
func scopeClause(scope core.Scope) (string, []any) {
	if scope.IsBoard() {
		return "board_id = ?", []any{scope.BoardID}
	}
	return "owner_id = ? AND board_id = ''", []any{scope.OwnerID}
}

const itemColumns = `id, owner_id, board_id, title, amount, date, type, status, paid_amount,
	category, is_fixed, created_by, created_by_name, created_at`

func (r *SQLiteRepository) ListItems(ctx context.Context, scope core.Scope, month core.Month) ([]core.FinanceItem, error) {
	where, args := scopeClause(scope)
	args = append(args, month.First().String(), month.Last().String())

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM finance_items
		 WHERE `+where+` AND date >= ? AND date <= ?
		 ORDER BY date DESC, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []core.FinanceItem
	for rows.Next() {
		row, err := scanItemRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		item, err := decodeItem(row)
		if err != nil {
			r.logger.WarnContext(ctx, "Dropping invalid item row",
				log.FieldOperation, log.OpDecode,
				log.FieldItemID, row.ID,
				log.FieldError, err)
			continue
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func (r *SQLiteRepository) GetItem(ctx context.Context, id string) (core.FinanceItem, error) {
	row, err := scanItemRow(r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM finance_items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.FinanceItem{}, core.ErrNotFound
	}
	if err != nil {
		return core.FinanceItem{}, fmt.Errorf("get item %s: %w", id, err)
	}
	item, err := decodeItem(row)
	if err != nil {
		return core.FinanceItem{}, fmt.Errorf("decode item %s: %w", id, err)
	}
	return item, nil
}

func (r *SQLiteRepository) SaveItem(ctx context.Context, item core.FinanceItem) (core.FinanceItem, error) {
	if item.IsSynthetic || core.IsSyntheticID(item.ID) {
		return core.FinanceItem{}, core.ErrSyntheticImmutable
	}
	if err := item.Validate(); err != nil {
		return core.FinanceItem{}, err
	}
	item.ID = uuid.NewString()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = r.now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO finance_items (`+itemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.OwnerID, item.BoardID, item.Title,
		core.FormatAmount(item.Amount), item.Date.String(), string(item.Type), string(item.Status),
		core.FormatAmount(item.PaidAmount), item.Category, boolInt(item.IsFixed),
		item.CreatedBy, item.CreatedByName, item.CreatedAt.Format(timestampLayout))
	if err != nil {
		return core.FinanceItem{}, fmt.Errorf("insert item: %w", err)
	}
	return item, nil
}

func (r *SQLiteRepository) UpdateItem(ctx context.Context, item core.FinanceItem) error {
	if item.IsSynthetic || core.IsSyntheticID(item.ID) {
		return core.ErrSyntheticImmutable
	}
	if err := item.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE finance_items
		 SET title = ?, amount = ?, date = ?, type = ?, status = ?, paid_amount = ?,
		     category = ?, is_fixed = ?
		 WHERE id = ?`,
		item.Title, core.FormatAmount(item.Amount), item.Date.String(), string(item.Type),
		string(item.Status), core.FormatAmount(item.PaidAmount), item.Category,
		boolInt(item.IsFixed), item.ID)
	if err != nil {
		return fmt.Errorf("update item %s: %w", item.ID, err)
	}
	return expectOneRow(res)
}

func (r *SQLiteRepository) DeleteItem(ctx context.Context, id string) error {
	if core.IsSyntheticID(id) {
		return core.ErrSyntheticImmutable
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM finance_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	return expectOneRow(res)
}

const templateColumns = `id, owner_id, board_id, title, amount, category, day, active, created_at`

func (r *SQLiteRepository) ListActiveTemplates(ctx context.Context, scope core.Scope) ([]core.FixedTemplate, error) {
	return r.listTemplates(ctx, scope, true)
}

func (r *SQLiteRepository) ListTemplates(ctx context.Context, scope core.Scope) ([]core.FixedTemplate, error) {
	return r.listTemplates(ctx, scope, false)
}

func (r *SQLiteRepository) listTemplates(ctx context.Context, scope core.Scope, activeOnly bool) ([]core.FixedTemplate, error) {
	where, args := scopeClause(scope)
	if activeOnly {
		where += " AND active = 1"
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM finance_fixed_templates WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []core.FixedTemplate
	for rows.Next() {
		row, err := scanTemplateRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		tpl, err := decodeTemplate(row)
		if err != nil {
			r.logger.WarnContext(ctx, "Dropping invalid template row",
				log.FieldOperation, log.OpDecode,
				log.FieldTemplateID, row.ID,
				log.FieldError, err)
			continue
		}
		out = append(out, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetTemplate(ctx context.Context, id string) (core.FixedTemplate, error) {
	row, err := scanTemplateRow(r.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM finance_fixed_templates WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.FixedTemplate{}, core.ErrNotFound
	}
	if err != nil {
		return core.FixedTemplate{}, fmt.Errorf("get template %s: %w", id, err)
	}
	tpl, err := decodeTemplate(row)
	if err != nil {
		return core.FixedTemplate{}, fmt.Errorf("decode template %s: %w", id, err)
	}
	return tpl, nil
}

func (r *SQLiteRepository) SaveTemplate(ctx context.Context, tpl core.FixedTemplate) (core.FixedTemplate, error) {
	if err := tpl.Validate(); err != nil {
		return core.FixedTemplate{}, err
	}
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = r.now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO finance_fixed_templates (`+templateColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title, amount = excluded.amount, category = excluded.category,
		   day = excluded.day, active = excluded.active`,
		tpl.ID, tpl.OwnerID, tpl.BoardID, tpl.Title, core.FormatAmount(tpl.Amount),
		tpl.Category, tpl.Day, boolInt(tpl.Active), tpl.CreatedAt.Format(timestampLayout))
	if err != nil {
		return core.FixedTemplate{}, fmt.Errorf("save template: %w", err)
	}
	return tpl, nil
}

func (r *SQLiteRepository) SetTemplateActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE finance_fixed_templates SET active = ? WHERE id = ?`, boolInt(active), id)
	if err != nil {
		return fmt.Errorf("set template %s active: %w", id, err)
	}
	return expectOneRow(res)
}

func (r *SQLiteRepository) GetBoard(ctx context.Context, id string) (core.FinanceBoard, error) {
	var (
		b          core.FinanceBoard
		isPersonal int
		createdAt  string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, owner_id, is_personal, created_at FROM finance_boards WHERE id = ?`, id).
		Scan(&b.ID, &b.Name, &b.OwnerID, &isPersonal, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.FinanceBoard{}, core.ErrNotFound
	}
	if err != nil {
		return core.FinanceBoard{}, fmt.Errorf("get board %s: %w", id, err)
	}
	b.IsPersonal = isPersonal == 1
	b.CreatedAt, _ = time.Parse(timestampLayout, createdAt)

	members, err := r.boardMembers(ctx, id)
	if err != nil {
		return core.FinanceBoard{}, err
	}
	b.MemberIDs = members
	return b, nil
}

func (r *SQLiteRepository) boardMembers(ctx context.Context, boardID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM finance_board_members WHERE board_id = ? ORDER BY rowid`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list board members: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan board member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// SaveBoard inserts or replaces a board together with its member set.
func (r *SQLiteRepository) SaveBoard(ctx context.Context, board core.FinanceBoard) (core.FinanceBoard, error) {
	if strings.TrimSpace(board.Name) == "" {
		return core.FinanceBoard{}, core.ErrEmptyName
	}
	if board.ID == "" {
		board.ID = uuid.NewString()
	}
	if board.CreatedAt.IsZero() {
		board.CreatedAt = r.now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.FinanceBoard{}, fmt.Errorf("begin board tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO finance_boards (id, name, owner_id, is_personal, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, is_personal = excluded.is_personal`,
		board.ID, board.Name, board.OwnerID, boolInt(board.IsPersonal), board.CreatedAt.Format(timestampLayout))
	if err != nil {
		return core.FinanceBoard{}, fmt.Errorf("save board: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM finance_board_members WHERE board_id = ?`, board.ID); err != nil {
		return core.FinanceBoard{}, fmt.Errorf("reset board members: %w", err)
	}
	for _, m := range board.MemberIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO finance_board_members (board_id, user_id) VALUES (?, ?)`, board.ID, m); err != nil {
			return core.FinanceBoard{}, fmt.Errorf("add board member: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return core.FinanceBoard{}, fmt.Errorf("commit board: %w", err)
	}
	return board, nil
}

func (r *SQLiteRepository) ListBoardsForUser(ctx context.Context, userID string) ([]core.FinanceBoard, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM finance_boards WHERE owner_id = ?
		 UNION
		 SELECT board_id FROM finance_board_members WHERE user_id = ?`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan board id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}

	boards := make([]core.FinanceBoard, 0, len(ids))
	for _, id := range ids {
		b, err := r.GetBoard(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		boards = append(boards, b)
	}
	return boards, nil
}

func (r *SQLiteRepository) ListCustomCategories(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM finance_categories WHERE user_id = ? ORDER BY created_at, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (r *SQLiteRepository) SaveCategory(ctx context.Context, userID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyName
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO finance_categories (user_id, name, created_at) VALUES (?, ?, ?)`,
		userID, name, r.now().UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("save category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrDuplicateCategory
	}
	return nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
