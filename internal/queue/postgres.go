package queue

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore keeps the queue in the catalog_delete_queue table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres opens a pgx-backed *sql.DB and checks connectivity.
func OpenPostgres(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one Lambda invocation runs at a time per container
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// MigratePostgres applies the embedded migrations. Already-applied
// migrations are skipped.
func MigratePostgres(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, pgx5URL(databaseURL))
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// pgx5URL rewrites a postgres:// URL to the scheme the migrate pgx/v5
// driver registers.
func pgx5URL(databaseURL string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}

func (s *PostgresStore) ListPending(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return []Record{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, external_id, product_id, enqueued_at
		FROM catalog_delete_queue
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select pending: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, limit)
	for rows.Next() {
		var (
			id        int64
			rec       Record
			productID sql.NullString
		)
		if err := rows.Scan(&id, &rec.ExternalID, &productID, &rec.EnqueuedAt); err != nil {
			return nil, fmt.Errorf("scan pending: %w", err)
		}
		rec.QueueID = strconv.FormatInt(id, 10)
		rec.ProductID = productID.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteByID(ctx context.Context, queueID string) error {
	id, err := strconv.ParseInt(queueID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid queue id %q: %w", queueID, err)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM catalog_delete_queue WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete queue row %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete queue row %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Enqueue(ctx context.Context, externalID, productID string) (Record, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return Record{}, errors.New("missing external id")
	}
	productID = strings.TrimSpace(productID)

	var (
		id  int64
		rec = Record{ExternalID: externalID, ProductID: productID}
	)
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO catalog_delete_queue (external_id, product_id)
		VALUES ($1, NULLIF($2, ''))
		RETURNING id, enqueued_at`, externalID, productID).Scan(&id, &rec.EnqueuedAt)
	if err != nil {
		return Record{}, fmt.Errorf("insert queue row: %w", err)
	}
	rec.QueueID = strconv.FormatInt(id, 10)
	return rec, nil
}

var _ Store = (*PostgresStore)(nil)
