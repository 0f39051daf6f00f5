package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/monepiceriz/api/internal/auth"
	"github.com/monepiceriz/api/internal/config"
	"github.com/monepiceriz/api/internal/database"
	"github.com/monepiceriz/api/internal/enum"
	"github.com/monepiceriz/api/internal/logging"
	"github.com/monepiceriz/api/internal/order"
	"github.com/monepiceriz/api/internal/payment"
	"github.com/monepiceriz/api/internal/service"
	"github.com/monepiceriz/api/internal/store"
)

func main() {
	// CLI flags
	role := flag.String("role", enum.UserRoleAdmin, "Role carried by the printed dev token")
	ttl := flag.Duration("ttl", 24*time.Hour, "Lifetime of the printed dev token")
	skipOrders := flag.Bool("skip-orders", false, "Only print a dev token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	userID := uuid.New()
	token, err := auth.GenerateToken(cfg.JWTSecret, userID, *role, *ttl)
	if err != nil {
		logger.Fatal("generate token", zap.Error(err))
	}

	if !*skipOrders {
		if cfg.StoreDriver != enum.StoreDriverPostgres {
			logger.Fatal("seeding orders needs the postgres store", zap.String("store", cfg.StoreDriver))
		}
		ctx := context.Background()
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("connect database", zap.Error(err))
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			logger.Fatal("ping database", zap.Error(err))
		}

		repo := store.NewPostgresRepository(pool, func(db database.DBTX) store.OrderStore {
			return database.New(db)
		})
		svc := service.NewOrderService(repo, payment.NewManualGateway(), nil, logger,
			service.WithWeightPolicy(cfg.WeightPolicy()),
			service.WithCurrency(cfg.Currency),
		)
		if err := seedOrders(ctx, svc, userID, logger); err != nil {
			logger.Fatal("seed orders", zap.Error(err))
		}
	}

	logger.Info("seed completed", zap.Stringer("user_id", userID), zap.String("role", *role))
	fmt.Println(token)
}

// seedOrders creates one order per checkout shape the back-office deals with:
// fixed items paid directly, and a pre-authorized basket with weighed produce.
func seedOrders(ctx context.Context, svc *service.OrderService, actor uuid.UUID, logger *zap.Logger) error {
	checkouts := []service.CreateOrderCommand{
		{
			ActorID:        actor,
			Customer:       order.Customer{Name: "Aminata Diallo", Phone: "+221770000001"},
			DeliveryMethod: string(order.DeliveryPickup),
			PaymentFlow:    string(order.FlowDirect),
			Note:           "Paiement à la livraison",
			Items: []service.CreateItemCommand{
				{ProductSkuID: uuid.New(), ProductName: "Pain de campagne", SkuName: "500 g", UnitPrice: 750, Quantity: 2},
				{ProductSkuID: uuid.New(), ProductName: "Lait frais", SkuName: "1 L", UnitPrice: 1200, Quantity: 1},
			},
		},
		{
			ActorID:                actor,
			Customer:               order.Customer{Name: "Moussa Ndiaye", Email: "moussa@example.com"},
			DeliveryMethod:         string(order.DeliveryDelivery),
			PaymentFlow:            string(order.FlowPreauthorized),
			AuthorizationReference: "pi_seed_" + uuid.NewString()[:8],
			Items: []service.CreateItemCommand{
				{ProductSkuID: uuid.New(), ProductName: "Tomates", SkuName: "Au poids", UnitPrice: 2000, VariableWeight: true, EstimatedWeightGrams: 500},
				{ProductSkuID: uuid.New(), ProductName: "Oignons", SkuName: "Au poids", UnitPrice: 900, VariableWeight: true, EstimatedWeightGrams: 1000},
				{ProductSkuID: uuid.New(), ProductName: "Riz parfumé", SkuName: "5 kg", UnitPrice: 4500, Quantity: 1},
			},
		},
	}

	for _, cmd := range checkouts {
		o, err := svc.CreateOrder(ctx, cmd)
		if err != nil {
			return fmt.Errorf("create order for %s: %w", cmd.Customer.Name, err)
		}
		logger.Info("seeded order",
			zap.String("order_number", o.Number),
			zap.String("payment_flow", string(o.PaymentFlow)),
			zap.Stringer("total", o.TotalAmount))
	}
	return nil
}
