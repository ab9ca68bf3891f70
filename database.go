package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sms-ledger/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// transactionFilter narrows ListTransactions. Zero values mean no filter.
type transactionFilter struct {
	Category  domain.Category
	Direction domain.Direction
	Limit     int
}

// Store is the persistence boundary of the service. Transactions are
// append-only; there is no update or delete.
type Store interface {
	Ping(ctx context.Context) error
	InsertTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, bool, error)
	ListTransactions(ctx context.Context, filter transactionFilter) ([]domain.Transaction, error)
	TransactionsSince(ctx context.Context, since time.Time) ([]domain.Transaction, error)
	LatestBalance(ctx context.Context) (*domain.Transaction, error)
	Settings(ctx context.Context) (domain.Settings, error)
	UpdateSettings(ctx context.Context, update domain.SettingsUpdate) (domain.Settings, error)
}

// openDB connects to PostgreSQL, waiting for it to accept connections.
func openDB(ctx context.Context, databaseURL string, maxRetries int, log zerolog.Logger) (*sql.DB, error) {
	config, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	retryDelay := 2 * time.Second
	for i := 0; i < maxRetries; i++ {
		db := stdlib.OpenDB(*config)
		err := db.PingContext(ctx)
		if err == nil {
			log.Info().Str("host", config.Host).Str("database", config.Database).Msg("Database connection established")
			return db, nil
		}
		db.Close()

		if i == maxRetries-1 {
			return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
		}
		event := log.Warn().Dur("retry_in", retryDelay).Int("attempt", i+1).Int("max_attempts", maxRetries)
		// the full error is noisy while the container boots
		if i%10 == 0 || i < 5 {
			event = event.Err(err)
		}
		event.Msg("Database not ready, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, fmt.Errorf("failed to connect to database: no attempts configured")
}

type pgStore struct {
	db *sql.DB
}

func newPGStore(db *sql.DB) *pgStore {
	return &pgStore{db: db}
}

const transactionColumns = `id, amount, transaction_type, description, merchant, category,
	balance_after, source, source_hash, transaction_date, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var t domain.Transaction
	var direction, category string
	err := row.Scan(
		&t.ID, &t.Amount, &direction, &t.Description, &t.Merchant, &category,
		&t.BalanceAfter, &t.Source, &t.SourceHash, &t.TransactionDate, &t.CreatedAt,
	)
	if err != nil {
		return domain.Transaction{}, err
	}
	t.Direction = domain.Direction(direction)
	t.Category = domain.Category(category)
	return t, nil
}

func collectTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	defer rows.Close()

	// ensure empty array ([]) instead of null when no rows
	transactions := make([]domain.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return transactions, nil
}

func (s *pgStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertTransaction appends tx. When tx carries a SourceHash that is already
// stored, nothing is written and the existing row is returned with inserted
// false.
func (s *pgStore) InsertTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, bool, error) {
	if !tx.Category.Valid() {
		tx.Category = domain.CategoryOther
	}
	if tx.Source == "" {
		tx.Source = domain.SourceManual
	}
	if err := tx.Validate(); err != nil {
		return domain.Transaction{}, false, err
	}

	var date any
	if !tx.TransactionDate.IsZero() {
		date = tx.TransactionDate
	}

	query := `
		INSERT INTO transactions (amount, transaction_type, description, merchant, category,
			balance_after, source, source_hash, transaction_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9::timestamptz, now()))
		ON CONFLICT (source_hash) DO NOTHING
		RETURNING ` + transactionColumns

	stored, err := scanTransaction(s.db.QueryRowContext(ctx, query,
		tx.Amount, string(tx.Direction), tx.Description, tx.Merchant, string(tx.Category),
		tx.BalanceAfter, tx.Source, tx.SourceHash, date,
	))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) || tx.SourceHash == nil {
		return domain.Transaction{}, false, fmt.Errorf("insert transaction: %w", err)
	}

	existing, err := scanTransaction(s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE source_hash = $1`, *tx.SourceHash))
	if err != nil {
		return domain.Transaction{}, false, fmt.Errorf("load duplicate transaction: %w", err)
	}
	return existing, false, nil
}

// ListTransactions returns the newest transactions first.
func (s *pgStore) ListTransactions(ctx context.Context, filter transactionFilter) ([]domain.Transaction, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		conditions = append(conditions, "category = $"+strconv.Itoa(len(args)))
	}
	if filter.Direction != "" {
		args = append(args, string(filter.Direction))
		conditions = append(conditions, "transaction_type = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	args = append(args, clampLimit(filter.Limit))
	query += ` ORDER BY transaction_date DESC, id DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	return collectTransactions(rows)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}

// TransactionsSince returns every transaction dated at or after since.
func (s *pgStore) TransactionsSince(ctx context.Context, since time.Time) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE transaction_date >= $1
		ORDER BY transaction_date DESC, id DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("query transactions since %s: %w", since.Format(time.RFC3339), err)
	}
	return collectTransactions(rows)
}

// LatestBalance returns the most recent transaction that reported a balance,
// or nil when none ever did.
func (s *pgStore) LatestBalance(ctx context.Context) (*domain.Transaction, error) {
	t, err := scanTransaction(s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE balance_after IS NOT NULL
		ORDER BY transaction_date DESC, id DESC
		LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest balance: %w", err)
	}
	return &t, nil
}

func scanSettings(row rowScanner) (domain.Settings, error) {
	var settings domain.Settings
	err := row.Scan(&settings.LowBalanceThreshold, &settings.MonthlyBudget, &settings.UpdatedAt)
	return settings, err
}

// Settings returns the settings row, or the defaults when none exists.
func (s *pgStore) Settings(ctx context.Context) (domain.Settings, error) {
	settings, err := scanSettings(s.db.QueryRowContext(ctx,
		`SELECT low_balance_threshold, monthly_budget, updated_at
		FROM user_settings WHERE id = 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultSettings(), nil
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("query settings: %w", err)
	}
	return settings, nil
}

// UpdateSettings applies a partial update to the single settings row in one
// statement, creating it with defaults for the missing fields on first use.
// Concurrent first updates never create a second row.
func (s *pgStore) UpdateSettings(ctx context.Context, update domain.SettingsUpdate) (domain.Settings, error) {
	if err := update.Validate(); err != nil {
		return domain.Settings{}, err
	}

	initial := domain.DefaultSettings().Apply(update)
	saved, err := scanSettings(s.db.QueryRowContext(ctx,
		`INSERT INTO user_settings (id, low_balance_threshold, monthly_budget)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			low_balance_threshold = COALESCE($3::numeric, user_settings.low_balance_threshold),
			monthly_budget = COALESCE($4::numeric, user_settings.monthly_budget),
			updated_at = now()
		RETURNING low_balance_threshold, monthly_budget, updated_at`,
		initial.LowBalanceThreshold, initial.MonthlyBudget,
		nullableDecimal(update.LowBalanceThreshold), nullableDecimal(update.MonthlyBudget),
	))
	if err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return saved, nil
}

func nullableDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}

// isPermanentStoreError reports whether err is a rejection that retrying the
// same write cannot fix: a validation failure or a PostgreSQL data exception
// (class 22) or integrity constraint violation (class 23).
func isPermanentStoreError(err error) bool {
	if domain.IsValidationError(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgerrcode.IsDataException(pgErr.Code) || pgerrcode.IsIntegrityConstraintViolation(pgErr.Code)
	}
	return false
}
