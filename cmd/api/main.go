package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/application/stock"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/repository"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/infrastructure/memory"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/infrastructure/postgres"
	httpRouter "github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/interfaces/http"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/pkg/config"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("carregar configuração: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("driver", cfg.DB.Driver).
		Msg("iniciando motor de estoque")

	ctx := context.Background()

	var (
		txRunner    stock.TxRunner
		ledger      repository.LedgerStore
		items       repository.StockItemRepository
		projections repository.ProjectionRepository
		pending     repository.PendingRepository
	)

	if cfg.DB.Driver == "memory" {
		// Modo demo/desenvolvimento: tudo em memória, sem banco.
		store := memory.NewStore()
		txRunner = memory.NewTxRunner(store)
		ledger = store
		items = store.Items()
		projections = store.Projections()
		pending = store.Pending()
	} else {
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexão ao PostgreSQL")
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("migração do schema")
		}
		txRunner = postgres.NewTxRunner(pool)
		ledger = postgres.NewLedgerRepository(pool)
		items = postgres.NewStockItemRepository(pool)
		projections = postgres.NewProjectionRepository(pool)
		pending = postgres.NewPendingRepository(pool)
	}

	// Projetor: restaura checkpoints + cauda do razão no startup.
	projector := stock.NewProjector(ledger, projections)
	if err := projector.Restore(ctx); err != nil {
		log.Fatal().Err(err).Msg("restaurar projeções")
	}

	broadcaster := stock.NewBroadcaster(cfg.Engine.BroadcastBuffer)
	coordinator := stock.NewCoordinator(txRunner, items, pending, projector, broadcaster, stock.RetryConfig{
		Attempts: cfg.Engine.RetryAttempts,
		Base:     cfg.Engine.RetryBase,
		Max:      cfg.Engine.RetryMax,
	}, log)

	// Primeiro snapshot publicado antes de aceitar tráfego.
	coordinator.Publish(ctx)

	// Checkpoint periódico das projeções (cache de performance).
	checkpointDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.Engine.CheckpointInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := projector.Checkpoint(ctx); err != nil {
					log.Warn().Err(err).Msg("checkpoint periódico")
				}
			case <-checkpointDone:
				return
			}
		}
	}()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI em local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Montex Stock Engine API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ok",
			"service":     cfg.App.Name,
			"subscribers": broadcaster.Subscribers(),
		})
	})

	stockHandler := httpRouter.NewStockHandler(coordinator, broadcaster, ledger, items, pending)
	wsHandler := httpRouter.NewWSHandler(broadcaster, log)
	httpRouter.Router(app, httpRouter.RouterDeps{
		Stock: stockHandler,
		WS:    wsHandler,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("sinal de desligamento recebido, encerrando servidor...")
	close(checkpointDone)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("desligamento do servidor")
	}
	// Último checkpoint antes de sair; perder não corrompe (é só cache).
	if err := projector.Checkpoint(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("checkpoint final")
	}

	log.Info().Msg("motor de estoque parado")
}
