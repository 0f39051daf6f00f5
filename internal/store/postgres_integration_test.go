//go:build integration

package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/monepiceriz/api/internal/database"
	"github.com/monepiceriz/api/internal/money"
	"github.com/monepiceriz/api/internal/order"
	"github.com/monepiceriz/api/internal/store"
)

// TestPostgresRepository_Lifecycle runs create, finalize, capture and a stale
// write against a real PostgreSQL database.
func TestPostgresRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()

	connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()
	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	repo := store.NewPostgresRepository(pool, func(db database.DBTX) store.OrderStore {
		return database.New(db)
	})

	now := time.Now().UTC().Truncate(time.Microsecond)
	actor := uuid.New()
	tomatoes := order.Item{
		ID:              uuid.New(),
		ProductSkuID:    uuid.New(),
		ProductName:     "Tomates",
		SkuName:         "Au poids",
		UnitPrice:       money.New(2000, "XOF"),
		VariableWeight:  true,
		EstimatedWeight: 500,
	}
	o := &order.Order{
		ID:                         uuid.New(),
		Status:                     order.StatusPending,
		PaymentStatus:              order.PaymentPending,
		PaymentFlow:                order.FlowPreauthorized,
		DeliveryMethod:             order.DeliveryDelivery,
		Customer:                   order.Customer{Name: "Awa Diop", Phone: "+221770000000"},
		Currency:                   "XOF",
		Items:                      []order.Item{tomatoes},
		RequiresWeightConfirmation: true,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
	if err := o.RecalculateTotal(money.Kilogram); err != nil {
		t.Fatalf("recalculate: %v", err)
	}

	// --- 1. Create ---
	if err := repo.Create(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}
	if o.Number != "ME-000001" {
		t.Errorf("first order number: got %q", o.Number)
	}

	// --- 2. Authorize, confirm, finalize ---
	loaded, err := repo.Load(ctx, o.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := loaded.ApplyPayment(order.PaymentAuthorized, "pi_test_1", now); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if err := loaded.ApplyTransition(order.StatusConfirmed, now, actor, "confirmed by phone", order.DefaultGuards); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := loaded.FinalizeWeights(map[uuid.UUID]money.Weight{tomatoes.ID: 620}, order.DefaultWeightPolicy(), now, actor); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := repo.Save(ctx, loaded); err != nil {
		t.Fatalf("save: %v", err)
	}
	if loaded.Version != 2 {
		t.Errorf("version after save: got %d, want 2", loaded.Version)
	}

	// --- 3. A copy taken before the save is now stale ---
	o.AddNote(now, actor, "late edit")
	if err := repo.Save(ctx, o); !errors.Is(err, order.ErrConcurrentModification) {
		t.Fatalf("stale save: expected ErrConcurrentModification, got %v", err)
	}

	// --- 4. Reload and verify everything round-tripped ---
	fresh, err := repo.Load(ctx, o.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if fresh.TotalAmount.Minor() != 1240 {
		t.Errorf("total: got %s, want 1240 XOF", fresh.TotalAmount)
	}
	if fresh.Items[0].ActualWeight == nil || *fresh.Items[0].ActualWeight != 620 {
		t.Errorf("actual weight: got %v", fresh.Items[0].ActualWeight)
	}
	if fresh.AuthorizationReference == nil || *fresh.AuthorizationReference != "pi_test_1" {
		t.Errorf("authorization reference: got %v", fresh.AuthorizationReference)
	}
	if len(fresh.Transitions) != 1 || fresh.Transitions[0].To != order.StatusConfirmed {
		t.Errorf("transitions: got %+v", fresh.Transitions)
	}
	if len(fresh.Notes) != 2 {
		t.Errorf("notes: got %d, want 2", len(fresh.Notes))
	}

	// --- 5. Capture ---
	if err := fresh.RecordCapture("ch_test_1", now); err != nil {
		t.Fatalf("record capture: %v", err)
	}
	if err := repo.Save(ctx, fresh); err != nil {
		t.Fatalf("save capture: %v", err)
	}

	// --- 6. List ---
	confirmed := order.StatusConfirmed
	list, err := repo.List(ctx, order.ListFilter{Status: &confirmed, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].PaymentStatus != order.PaymentPaid {
		t.Errorf("list: got %+v", list)
	}
}

func setupPostgresContainer(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("orders_test"),
		tcpostgres.WithUsername("orders"),
		tcpostgres.WithPassword("orders"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}
	return connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://../../migrations", "postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}
