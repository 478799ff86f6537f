package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/niaga-erp/niaga/internal/analytics"
	"github.com/niaga-erp/niaga/internal/ar"
	"github.com/niaga-erp/niaga/internal/audit"
	"github.com/niaga-erp/niaga/internal/delivery"
	"github.com/niaga-erp/niaga/internal/expenses"
	"github.com/niaga-erp/niaga/internal/inventory"
	"github.com/niaga-erp/niaga/internal/masterdata"
	"github.com/niaga-erp/niaga/internal/observability"
	"github.com/niaga-erp/niaga/internal/procurement"
	"github.com/niaga-erp/niaga/internal/sales"
	"github.com/niaga-erp/niaga/internal/shared"
	"github.com/niaga-erp/niaga/internal/targets"
	"github.com/niaga-erp/niaga/internal/users"
)

// Services holds every domain service wired against one pool.
type Services struct {
	Users       *users.Service
	MasterData  *masterdata.Service
	Sales       *sales.Service
	Receivables *ar.Service
	Inventory   *inventory.Service
	Procurement *procurement.Service
	Delivery    *delivery.Service
	Targets     *targets.Service
	Expenses    *expenses.Service
	Analytics   *analytics.Service
	Audit       *audit.Service
	Idempotency *shared.IdempotencyStore
}

// BuildServices wires repositories and services. redisClient may be nil, in
// which case analytics are computed on every request.
func BuildServices(cfg *Config, pool *pgxpool.Pool, redisClient *redis.Client, metrics *observability.Metrics, logger *slog.Logger) (*Services, error) {
	policy, err := ar.ParsePreparationPolicy(cfg.PreparationMinPaymentStatus)
	if err != nil {
		return nil, err
	}

	auditLogger := shared.NewAuditLogger(pool)
	approvals := shared.NewApprovalRecorder(pool, logger)
	idempotency := shared.NewIdempotencyStore(pool)
	cache := analytics.NewCache(redisClient, cfg.AnalyticsCacheTTL)

	usersService := users.NewService(users.NewRepository(pool))
	masterDataService := masterdata.NewService(masterdata.NewRepository(pool), logger)
	receivables := ar.NewService(ar.NewRepository(pool), auditLogger, idempotency, cache, policy, logger)
	targetsService := targets.NewService(targets.NewRepository(pool), usersService, auditLogger, cache, logger)
	expensesService := expenses.NewService(expenses.NewRepository(pool), auditLogger, cache, logger)

	return &Services{
		Users:       usersService,
		MasterData:  masterDataService,
		Sales:       sales.NewService(sales.NewRepository(pool), usersService, masterDataService, auditLogger, approvals, metrics, logger),
		Receivables: receivables,
		Inventory:   inventory.NewService(inventory.NewRepository(pool), auditLogger, idempotency, metrics, logger),
		Procurement: procurement.NewService(procurement.NewRepository(pool), auditLogger, approvals, logger),
		Delivery:    delivery.NewService(delivery.NewRepository(pool), auditLogger, metrics, logger),
		Targets:     targetsService,
		Expenses:    expensesService,
		Analytics: analytics.NewService(analytics.Deps{
			Repo:        analytics.NewRepository(pool),
			Targets:     targetsService,
			SalesReps:   usersService,
			Expenses:    expensesService,
			Receivables: receivables,
			Cache:       cache,
			Logger:      logger,
		}),
		Audit:       audit.NewService(audit.NewRepository(pool)),
		Idempotency: idempotency,
	}, nil
}
