package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/Costeo-api/internal/application/engine"
	"github.com/jhoicas/Costeo-api/internal/application/valuation"
	"github.com/jhoicas/Costeo-api/internal/domain/entity"
	"github.com/jhoicas/Costeo-api/internal/domain/repository"
	"github.com/jhoicas/Costeo-api/internal/infrastructure/lock"
	"github.com/jhoicas/Costeo-api/internal/infrastructure/memory"
	"github.com/jhoicas/Costeo-api/internal/infrastructure/postgres"
	httpiface "github.com/jhoicas/Costeo-api/internal/interfaces/http"
	"github.com/jhoicas/Costeo-api/pkg/config"
	"github.com/jhoicas/Costeo-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Exit(1)
	}

	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Env).
		Str("store", cfg.Engine.Store).
		Msg("iniciando motor de valoración")

	defaultMethod, err := entity.ParseMethod(cfg.Engine.DefaultMethod)
	if err != nil {
		log.Fatal().Err(err).Str("method", cfg.Engine.DefaultMethod).Msg("ENGINE_DEFAULT_METHOD inválido")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		txRunner   engine.TxRunner
		layerRepo  repository.CostLayerRepository
		ledgerRepo repository.LedgerRepository
		methodRepo repository.CostingMethodRepository
		cleanup    func()
	)

	switch cfg.Engine.Store {
	case "memory":
		store := memory.NewStore()
		txRunner = store
		layerRepo = store
		ledgerRepo = store
		methodRepo = store
		cleanup = func() {}
		log.Warn().Msg("almacén en memoria: los datos se pierden al reiniciar")
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("error conectando a PostgreSQL")
		}
		txRunner = postgres.NewTxRunner(pool)
		layerRepo = postgres.NewCostLayerRepository(pool)
		ledgerRepo = postgres.NewLedgerRepository(pool)
		methodRepo = postgres.NewCostingMethodRepository(pool)
		cleanup = pool.Close
		log.Info().Msg("conexión a PostgreSQL establecida")
	}
	defer cleanup()

	engineUC := engine.NewEngineUseCase(txRunner, lock.NewKeyedLock(), engine.Config{
		DefaultMethod: defaultMethod,
		LockTimeout:   cfg.Engine.LockTimeout,
	}, log)
	valuationUC := valuation.NewUseCase(layerRepo, ledgerRepo, methodRepo, defaultMethod)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})
	app.Use(recover.New())

	httpiface.Router(app, httpiface.RouterDeps{
		EngineUC:    engineUC,
		ValuationUC: valuationUC,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Fatal().Err(err).Msg("error iniciando servidor HTTP")
		}
	}()
	log.Info().Str("addr", cfg.HTTP.Addr()).Msg("servidor HTTP escuchando")

	// Apagado ordenado
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("apagando servidor...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("error en el apagado del servidor")
	}
	log.Info().Msg("servidor detenido")
}
