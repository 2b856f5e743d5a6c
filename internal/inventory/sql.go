package inventory

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/guarzo/cardshop/internal/model"
	"github.com/guarzo/cardshop/internal/pricing"
)

// Dialect covers the differences between the supported SQL backends.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// rebind rewrites "?" placeholders for the dialect.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) createTable() string {
	floatType, timeType := "DOUBLE PRECISION", "TIMESTAMPTZ"
	if d == MySQL {
		floatType, timeType = "DOUBLE", "DATETIME(6)"
	}
	return `CREATE TABLE IF NOT EXISTS inventory_items (
		sku                  VARCHAR(64) PRIMARY KEY,
		card_id              VARCHAR(64) NOT NULL,
		card_name            VARCHAR(255) NOT NULL,
		set_id               VARCHAR(64) NOT NULL,
		set_name             VARCHAR(255) NOT NULL,
		card_number          VARCHAR(32) NOT NULL,
		rarity               VARCHAR(64) NOT NULL,
		printing             VARCHAR(64) NOT NULL,
		card_condition       VARCHAR(8) NOT NULL,
		acquisition_type     VARCHAR(32) NOT NULL,
		market_price         ` + floatType + ` NOT NULL,
		cost_basis           ` + floatType + ` NOT NULL,
		sell_price           ` + floatType + ` NOT NULL,
		status               VARCHAR(16) NOT NULL,
		sell_price_locked_at ` + timeType + ` NULL,
		created_at           ` + timeType + ` NOT NULL,
		updated_at           ` + timeType + ` NOT NULL
	)`
}

func (d Dialect) upsert() string {
	insert := `INSERT INTO inventory_items (sku, card_id, card_name, set_id, set_name, card_number, rarity,
		printing, card_condition, acquisition_type, market_price, cost_basis, sell_price, status,
		sell_price_locked_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	cols := []string{"card_id", "card_name", "set_id", "set_name", "card_number", "rarity", "printing",
		"card_condition", "acquisition_type", "market_price", "cost_basis", "sell_price", "status",
		"sell_price_locked_at", "updated_at"}

	sets := make([]string, len(cols))
	for i, c := range cols {
		if d == MySQL {
			sets[i] = c + " = VALUES(" + c + ")"
		} else {
			sets[i] = c + " = EXCLUDED." + c
		}
	}
	if d == MySQL {
		return d.rebind(insert + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", "))
	}
	return d.rebind(insert + " ON CONFLICT (sku) DO UPDATE SET " + strings.Join(sets, ", "))
}

const selectColumns = `SELECT sku, card_id, card_name, set_id, set_name, card_number, rarity, printing,
	card_condition, acquisition_type, market_price, cost_basis, sell_price, status,
	sell_price_locked_at, created_at, updated_at FROM inventory_items`

// SQLStore is a Store over Postgres (lib/pq) or MySQL (go-sql-driver).
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// Open connects with the named driver ("postgres" or "mysql").
func Open(driver, dsn string) (*SQLStore, error) {
	d := Dialect(driver)
	if d != Postgres && d != MySQL {
		return nil, errors.Newf("unsupported inventory driver %q", driver)
	}
	if d == MySQL && !strings.Contains(dsn, "parseTime=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "parseTime=true"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driver)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return NewSQLStore(db, d), nil
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, now: time.Now}
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Migrate creates the inventory table if it is missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.createTable()); err != nil {
		return errors.Wrap(err, "create inventory_items")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.InventoryItem, error) {
	var (
		item     model.InventoryItem
		lockedAt sql.NullTime
	)
	err := row.Scan(&item.SKU, &item.Card.ID, &item.Card.Name, &item.Card.SetID, &item.Card.SetName,
		&item.Card.Number, &item.Card.Rarity, &item.Printing, &item.Condition, &item.AcquisitionType,
		&item.MarketPrice, &item.CostBasis, &item.SellPrice, &item.Status, &lockedAt,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lockedAt.Valid {
		t := lockedAt.Time
		item.SellPriceLockedAt = &t
	}
	return &item, nil
}

func (s *SQLStore) Get(ctx context.Context, sku string) (*model.InventoryItem, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(selectColumns+" WHERE sku = ?"), sku)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get inventory item %s", sku)
	}
	return item, nil
}

func (f Filter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		clauses = append(clauses, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if f.OnlyUnlocked {
		clauses = append(clauses, "sell_price_locked_at IS NULL")
	}
	q := ""
	if len(clauses) > 0 {
		q = " WHERE " + strings.Join(clauses, " AND ")
	}
	q += " ORDER BY sku"
	if f.Limit > 0 {
		q += " LIMIT " + strconv.Itoa(f.Limit)
	}
	return q, args
}

func (s *SQLStore) List(ctx context.Context, f Filter) ([]*model.InventoryItem, error) {
	where, args := f.where()
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(selectColumns+where), args...)
	if err != nil {
		return nil, errors.Wrap(err, "list inventory")
	}
	defer rows.Close()

	var items []*model.InventoryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan inventory item")
		}
		items = append(items, item)
	}
	return items, errors.Wrap(rows.Err(), "iterate inventory")
}

func (s *SQLStore) Upsert(ctx context.Context, item *model.InventoryItem) error {
	now := s.now()
	created := item.CreatedAt
	if created.IsZero() {
		created = now
	}
	status := item.Status
	if status == "" {
		status = model.StatusIntake
	}
	var lockedAt sql.NullTime
	if item.SellPriceLockedAt != nil {
		lockedAt = sql.NullTime{Time: *item.SellPriceLockedAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, s.dialect.upsert(),
		item.SKU, item.Card.ID, item.Card.Name, item.Card.SetID, item.Card.SetName, item.Card.Number,
		item.Card.Rarity, item.Printing, string(item.Condition), string(item.AcquisitionType),
		item.MarketPrice, item.CostBasis, item.SellPrice, string(status), lockedAt, created, now)
	if err != nil {
		return errors.Wrapf(err, "upsert inventory item %s", item.SKU)
	}
	return nil
}

const updatePricesQuery = `UPDATE inventory_items SET
	market_price = ?,
	cost_basis = ?,
	sell_price = CASE WHEN sell_price_locked_at IS NULL THEN ? ELSE sell_price END,
	status = CASE WHEN status = 'intake' THEN 'priced' ELSE status END,
	updated_at = ?
	WHERE sku = ?`

func (s *SQLStore) UpdatePrices(ctx context.Context, sku string, market, cost, sell float64) error {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(updatePricesQuery), market, cost, sell, s.now(), sku)
	if err != nil {
		return errors.Wrapf(err, "update prices for %s", sku)
	}
	return requireRow(res, sku)
}

func (s *SQLStore) ApplyLock(ctx context.Context, sku string, patch pricing.LockPatch) error {
	q := s.dialect.rebind(`UPDATE inventory_items SET sell_price_locked_at = ?, status = ?, updated_at = ? WHERE sku = ?`)
	res, err := s.db.ExecContext(ctx, q, patch.SellPriceLockedAt, string(patch.Status), s.now(), sku)
	if err != nil {
		return errors.Wrapf(err, "lock sell price for %s", sku)
	}
	return requireRow(res, sku)
}

func requireRow(res sql.Result, sku string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "sku %s", sku)
	}
	return nil
}
