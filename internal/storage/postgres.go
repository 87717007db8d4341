package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"fintrack/internal/core"
)

const pgUniqueViolation = "23505"

// PostgresRepository stores the ledger in PostgreSQL through a pgx pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// The migrate driver closes the *sql.DB it is given; the pool stays open.
	if err := RunPostgresMigrations(stdlib.OpenDBFromPool(pool)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) CreateRecord(ctx context.Context, rec core.Record) (core.Record, error) {
	t, err := tableFor(rec.Kind)
	if err != nil {
		return core.Record{}, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	cents, err := core.ToCents(rec.Amount)
	if err != nil {
		return core.Record{}, err
	}
	rec.CreatedAt = time.Now().UTC()

	query := fmt.Sprintf(`INSERT INTO %s (id, user_id, amount_cents, %s, date, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, t.name, t.label)
	_, err = r.pool.Exec(ctx, query,
		rec.ID, rec.OwnerID, cents, rec.Label, rec.Date.Time, rec.Description, rec.CreatedAt)
	if err != nil {
		return core.Record{}, fmt.Errorf("insert %s: %w", t.name, err)
	}
	return rec, nil
}

func (r *PostgresRepository) ListRecords(ctx context.Context, ownerID string, kind core.Kind) ([]core.Record, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT id, user_id, amount_cents, %s, date, description, created_at
		FROM %s WHERE user_id = $1 ORDER BY date DESC, created_at DESC`, t.label, t.name)
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.name, err)
	}
	defer rows.Close()

	records := make([]core.Record, 0)
	for rows.Next() {
		rec, err := scanPgRecord(rows, kind)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t.name, err)
	}
	return records, nil
}

func (r *PostgresRepository) GetRecord(ctx context.Context, ownerID string, kind core.Kind, id string) (core.Record, error) {
	t, err := tableFor(kind)
	if err != nil {
		return core.Record{}, err
	}
	query := fmt.Sprintf(`SELECT id, user_id, amount_cents, %s, date, description, created_at
		FROM %s WHERE id = $1 AND user_id = $2`, t.label, t.name)
	rec, err := scanPgRecord(r.pool.QueryRow(ctx, query, id, ownerID), kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Record{}, ErrNotFound
	}
	return rec, err
}

func (r *PostgresRepository) UpdateRecord(ctx context.Context, rec core.Record) (core.Record, error) {
	t, err := tableFor(rec.Kind)
	if err != nil {
		return core.Record{}, err
	}
	cents, err := core.ToCents(rec.Amount)
	if err != nil {
		return core.Record{}, err
	}
	query := fmt.Sprintf(`UPDATE %s SET amount_cents = $1, %s = $2, date = $3, description = $4
		WHERE id = $5 AND user_id = $6`, t.name, t.label)
	tag, err := r.pool.Exec(ctx, query,
		cents, rec.Label, rec.Date.Time, rec.Description, rec.ID, rec.OwnerID)
	if err != nil {
		return core.Record{}, fmt.Errorf("update %s: %w", t.name, err)
	}
	if tag.RowsAffected() == 0 {
		return core.Record{}, ErrNotFound
	}
	return r.GetRecord(ctx, rec.OwnerID, rec.Kind, rec.ID)
}

func (r *PostgresRepository) DeleteRecord(ctx context.Context, ownerID string, kind core.Kind, id string) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND user_id = $2`, t.name), id, ownerID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", t.name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, password_hash, full_name, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.FullName, u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return core.User{}, ErrUserExists
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) UserByUsername(ctx context.Context, username string) (core.User, error) {
	return r.queryUser(ctx, `WHERE username = $1`, username)
}

func (r *PostgresRepository) UserByID(ctx context.Context, id string) (core.User, error) {
	return r.queryUser(ctx, `WHERE id = $1`, id)
}

func (r *PostgresRepository) queryUser(ctx context.Context, where string, arg string) (core.User, error) {
	var u core.User
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, full_name, created_at FROM users `+where, arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FullName, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) DeleteUser(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPgRecord(row pgx.Row, kind core.Kind) (core.Record, error) {
	var (
		rec   core.Record
		cents int64
		date  time.Time
	)
	if err := row.Scan(&rec.ID, &rec.OwnerID, &cents, &rec.Label, &date, &rec.Description, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.Record{}, err
		}
		return core.Record{}, fmt.Errorf("scan record: %w", err)
	}
	rec.Kind = kind
	rec.Amount = core.FromCents(cents)
	rec.Date = core.DateOf(date)
	return rec, nil
}

// Truncate removes every row. Intended for disposable test databases.
func (r *PostgresRepository) Truncate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `TRUNCATE savings, incomes, expenses, users`)
	return err
}
