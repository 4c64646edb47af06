package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/procurehub/procurehub/internal/auth"
	"github.com/procurehub/procurehub/internal/dashboard"
	"github.com/procurehub/procurehub/internal/inventory"
	"github.com/procurehub/procurehub/internal/masterdata/items"
	"github.com/procurehub/procurehub/internal/masterdata/vendors"
	"github.com/procurehub/procurehub/internal/procurement"
	"github.com/procurehub/procurehub/internal/shared"
)

// Services is the domain layer shared by the API server and the worker.
type Services struct {
	Audit       *shared.AuditLogger
	Auth        *auth.Service
	Items       *items.Service
	Vendors     *vendors.Service
	Inventory   *inventory.Service
	Procurement *procurement.Service
	Dashboard   *dashboard.Service
}

// NewServices wires repositories and services. notifier may be nil, in which
// case new RFQs are not announced to vendors.
func NewServices(cfg *Config, logger *slog.Logger, pool *pgxpool.Pool, rdb redis.UniversalClient, notifier procurement.Notifier) *Services {
	auditLogger := shared.NewAuditLogger(pool, logger)

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	authService := auth.NewService(auth.NewRepository(pool), tokens, auth.NewRedisRevocationStore(rdb), auditLogger, logger)

	itemService := items.NewService(items.NewRepository(pool), items.NewRedisCache(rdb, cfg.ItemCacheTTL), auditLogger, logger)
	vendorService := vendors.NewService(vendors.NewRepository(pool), auditLogger, logger)
	inventoryService := inventory.NewService(inventory.NewRepository(pool), auditLogger, itemService, logger)

	procurementService := procurement.NewService(procurement.Deps{
		Repo:      procurement.NewRepository(pool),
		Inventory: inventoryService,
		Vendors:   vendorService,
		Items:     itemService,
		Notifier:  notifier,
		Audit:     auditLogger,
		Logger:    logger,
	})

	return &Services{
		Audit:       auditLogger,
		Auth:        authService,
		Items:       itemService,
		Vendors:     vendorService,
		Inventory:   inventoryService,
		Procurement: procurementService,
		Dashboard:   dashboard.NewService(dashboard.NewRepository(pool), itemService),
	}
}
