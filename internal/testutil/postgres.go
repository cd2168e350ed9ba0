// Package testutil starts throwaway containers and seeds fixtures for
// integration tests. It is imported by _test.go files only.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"storefront-core/internal/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL test container with the application schema.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		t.Fatalf("failed to parse connection string: %v", err)
	}
	poolConfig.MaxConns = 20

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	if err := database.Migrate(ctx, pool, zerolog.Nop()); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// CleanupDB removes all rows from every application table.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `
		TRUNCATE commission_promotions, referral_commissions, payout_requests,
			payment_confirmations, inventory_reservations, order_status_history,
			order_addresses, order_items, orders, inventory_movements, inventory,
			buyer_profiles, products, outbox_events
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("failed to clean tables: %v", err)
	}
}

// SeedProduct inserts an active product and returns its id.
func SeedProduct(t *testing.T, pool *pgxpool.Pool, name string, price, hpp int64) uuid.UUID {
	t.Helper()

	id := uuid.New()
	photo := fmt.Sprintf("https://img.example.com/%s.jpg", id)
	_, err := pool.Exec(context.Background(),
		`INSERT INTO products (id, name, price, hpp, photo_url, is_active) VALUES ($1, $2, $3, $4, $5, TRUE)`,
		id, name, decimal.NewFromInt(price), decimal.NewFromInt(hpp), photo,
	)
	if err != nil {
		t.Fatalf("failed to seed product %s: %v", name, err)
	}
	return id
}

// SeedStock gives a product on-hand stock through an opening "in" movement so
// the movement chain stays consistent.
func SeedStock(t *testing.T, pool *pgxpool.Pool, productID uuid.UUID, quantity, minStock int) {
	t.Helper()

	ctx := context.Background()
	_, err := pool.Exec(ctx,
		`INSERT INTO inventory (product_id, quantity, reserved_quantity, min_stock) VALUES ($1, $2, 0, $3)`,
		productID, quantity, minStock,
	)
	if err != nil {
		t.Fatalf("failed to seed inventory: %v", err)
	}
	_, err = pool.Exec(ctx,
		`INSERT INTO inventory_movements (id, product_id, type, quantity, quantity_before, quantity_after, reason)
		 VALUES ($1, $2, 'in', $3, 0, $3, 'stok awal')`,
		uuid.New(), productID, quantity,
	)
	if err != nil {
		t.Fatalf("failed to seed opening movement: %v", err)
	}
}

// SeedProfile inserts a buyer profile, optionally referred by referrerID.
func SeedProfile(t *testing.T, pool *pgxpool.Pool, fullName string, referrerID *uuid.UUID) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO buyer_profiles (user_id, full_name, referral_code, referrer_id) VALUES ($1, $2, $3, $4)`,
		id, fullName, "REF"+id.String()[:8], referrerID,
	)
	if err != nil {
		t.Fatalf("failed to seed profile %s: %v", fullName, err)
	}
	return id
}

// SeedPromotedCommission records a delivered-order accrual that has already
// been promoted, leaving the profile with a ledger-consistent balance.
func SeedPromotedCommission(t *testing.T, pool *pgxpool.Pool, referrerID, buyerID uuid.UUID, amount int64) {
	t.Helper()

	ctx := context.Background()
	accrualID := uuid.New()
	amt := decimal.NewFromInt(amount)

	_, err := pool.Exec(ctx,
		`INSERT INTO referral_commissions (id, referrer_id, buyer_id, commission_type, amount, percentage, order_subtotal)
		 VALUES ($1, $2, $3, 'accrual', $4, 0, 0)`,
		accrualID, referrerID, buyerID, amt,
	)
	if err != nil {
		t.Fatalf("failed to seed accrual: %v", err)
	}
	if _, err := pool.Exec(ctx, `INSERT INTO commission_promotions (accrual_id) VALUES ($1)`, accrualID); err != nil {
		t.Fatalf("failed to seed promotion: %v", err)
	}
	_, err = pool.Exec(ctx,
		`UPDATE buyer_profiles SET commission_balance = commission_balance + $2 WHERE user_id = $1`,
		referrerID, amt,
	)
	if err != nil {
		t.Fatalf("failed to seed balance: %v", err)
	}
}
