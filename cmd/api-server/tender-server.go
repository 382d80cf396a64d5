package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tendertrack/db"
	"tendertrack/db/migrations"
	"tendertrack/internal/alerts"
	"tendertrack/internal/authz"
	"tendertrack/internal/handlers"
	"tendertrack/internal/stages"
	"tendertrack/internal/workflow"
	"tendertrack/models"
)

type config struct {
	ServerAddress      string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0:8080"`
	PostgresConn       string `env:"POSTGRES_CONN,required"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
	MigrationsDir      string `env:"MIGRATIONS_DIR" envDefault:"./migrations"`
	StageCatalogFile   string `env:"STAGE_CATALOG_FILE"`
	EscalationSchedule string `env:"ESCALATION_SCHEDULE" envDefault:"*/15 * * * *"`
	AlertSchedule      string `env:"ALERT_SCHEDULE" envDefault:"0 * * * *"`
	AlertLeadDays      int    `env:"ALERT_LEAD_DAYS" envDefault:"3"`
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// hooks пишет запросы возврата обеспечения прямо в хранилище; конверсия
// выигранного тендера в проект пока только логируется
type hooks struct {
	store *db.Storage
	log   *zap.Logger
}

func (h *hooks) BondWithdrawalRequested(ctx context.Context, t *models.Tender) error {
	if err := h.store.RequestBondWithdrawal(ctx, t.ID); err != nil {
		return err
	}
	h.log.Info("bond withdrawal requested", zap.Int("tender_id", t.ID))
	return nil
}

func (h *hooks) TenderWon(ctx context.Context, t *models.Tender) error {
	h.log.Info("tender won, ready for project conversion",
		zap.Int("tender_id", t.ID),
		zap.String("reference_number", t.ReferenceNumber))
	return nil
}

// stepGuard проверяет требуемое шагом право через каталог ролей
type stepGuard struct {
	store   *db.Storage
	catalog *authz.Catalog
}

func (g *stepGuard) Allowed(ctx context.Context, userID int, permission string) (bool, error) {
	e, err := g.store.EmployeeByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if e.IsSuperAdmin {
		return true, nil
	}
	roles, err := g.store.RolesForEmployee(ctx, userID)
	if err != nil {
		return false, err
	}
	p := &models.Principal{ID: e.ID, Username: e.Username, SuperAdmin: e.IsSuperAdmin, RoleIDs: roles}
	return g.catalog.HasPermission(p, permission), nil
}

type escalationEvents struct {
	log *zap.Logger
}

func (e *escalationEvents) Escalated(ctx context.Context, task models.OverdueTask) {
	e.log.Warn("task escalated",
		zap.Int("task_id", task.TaskID),
		zap.Int("tender_id", task.TenderID),
		zap.Int("escalate_to_role_id", task.EscalateToRoleID))
}

// logNotifier — транспорт напоминаний по умолчанию; почта и мессенджеры
// подключаются вместо него
type logNotifier struct {
	log *zap.Logger
}

func (n *logNotifier) Send(ctx context.Context, a models.TenderAlert) error {
	n.log.Info("alert dispatched",
		zap.Int("tender_id", a.TenderID),
		zap.String("type", a.AlertType),
		zap.String("priority", a.Priority),
		zap.String("title", a.Title))
	return nil
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := sqlx.Connect("postgres", cfg.PostgresConn)
	if err != nil {
		logger.Fatal("cannot connect to DB", zap.Error(err))
	}
	defer dbConn.Close()

	if err := migrations.Run(cfg.PostgresConn, cfg.MigrationsDir); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	catalog := stages.Default()
	if cfg.StageCatalogFile != "" {
		catalog, err = stages.Load(cfg.StageCatalogFile)
		if err != nil {
			logger.Fatal("cannot load stage catalog", zap.Error(err), zap.String("file", cfg.StageCatalogFile))
		}
		logger.Info("stage catalog loaded from file", zap.String("file", cfg.StageCatalogFile), zap.Int("stages", catalog.Total()))
	}

	store := db.NewStorage(dbConn)
	ctx := context.Background()

	if err := store.UpsertPermissions(ctx, catalog.Permissions()); err != nil {
		logger.Fatal("cannot sync stage permissions", zap.Error(err))
	}
	roles, rolePerms, err := store.LoadRoles(ctx)
	if err != nil {
		logger.Fatal("cannot load roles", zap.Error(err))
	}

	authCatalog := authz.NewCatalog(roles, rolePerms)
	gate := authz.NewGate(authCatalog, catalog)
	machine := stages.NewMachine(store, catalog, &hooks{store: store, log: logger})
	engine := workflow.NewEngine(store, store, &escalationEvents{log: logger}, &stepGuard{store: store, catalog: authCatalog})
	scheduler := alerts.NewScheduler(store, &logNotifier{log: logger}, cfg.AlertLeadDays)

	h := handlers.NewHandler(store, machine, gate, engine, catalog, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)
		// тендеры
		r.Post("/tenders/new", h.CreateTenderHandler)
		r.Get("/tenders", h.ListTendersHandler)
		r.Get("/tenders/{tenderId}", h.GetTenderHandler)
		r.Patch("/tenders/{tenderId}/edit", h.EditTenderHandler)
		r.Put("/tenders/{tenderId}/status", h.UpdateStatusHandler)
		r.Put("/tenders/{tenderId}/result", h.ResultHandler)
		r.Put("/tenders/{tenderId}/rollback/{version}", h.RollbackTenderHandler)
		// этапы
		r.Get("/tenders/{tenderId}/stages", h.StageLogsHandler)
		r.Get("/tenders/{tenderId}/progress", h.ProgressHandler)
		r.Get("/tenders/{tenderId}/validate", h.ValidateHandler)
		r.Put("/tenders/{tenderId}/stages/{stageKey}/start", h.StartStageHandler)
		r.Put("/tenders/{tenderId}/stages/{stageKey}/complete", h.CompleteStageHandler)
		r.Put("/tenders/{tenderId}/stages/{stageKey}/skip", h.SkipStageHandler)
		r.Put("/tenders/{tenderId}/stages/{stageKey}/fail", h.FailStageHandler)
		// маршруты согласования
		r.Post("/tenders/{tenderId}/workflow", h.StartWorkflowHandler)
		r.Get("/tenders/{tenderId}/tasks", h.ListTenderTasksHandler)
		r.Get("/tenders/{tenderId}/steps/{stepId}/assignees", h.TaskAssigneesHandler)
		r.Put("/workflow/{instanceId}/advance", h.AdvanceTaskHandler)
		r.Put("/tasks/{taskId}/delegate", h.DelegateTaskHandler)
		// напоминания
		r.Get("/tenders/{tenderId}/alerts", h.GetTenderAlertsHandler)
		r.Put("/alerts/{alertId}/read", h.ReadAlertHandler)
		r.Put("/alerts/{alertId}/dismiss", h.DismissAlertHandler)
		// администрирование
		r.Post("/employees/new", h.CreateEmployeeHandler)
		r.Post("/tenders/{tenderId}/bonds", h.CreateBondHandler)
		r.Post("/workflow/definitions/{definitionId}/steps", h.CreateWorkflowStepHandler)
	})

	// Фоновые проходы: эскалации просроченных задач и генерация/рассылка
	// напоминаний. Обе операции идемпотентны, параллельный запуск безопасен.
	c := cron.New()
	if _, err := c.AddFunc(cfg.EscalationSchedule, func() {
		n, err := engine.CheckEscalations(ctx, time.Now())
		if err != nil {
			logger.Error("escalation sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Info("escalation sweep done", zap.Int("escalated", n))
		}
	}); err != nil {
		logger.Fatal("bad escalation schedule", zap.Error(err))
	}
	if _, err := c.AddFunc(cfg.AlertSchedule, func() {
		created, err := scheduler.Sweep(ctx)
		if err != nil {
			logger.Error("alert sweep failed", zap.Error(err))
			return
		}
		sent, err := scheduler.DispatchDue(ctx)
		if err != nil {
			logger.Error("alert dispatch failed", zap.Error(err))
		}
		if created > 0 || sent > 0 {
			logger.Info("alert sweep done", zap.Int("created", created), zap.Int("sent", sent))
		}
	}); err != nil {
		logger.Fatal("bad alert schedule", zap.Error(err))
	}
	c.Start()

	srv := &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: r,
	}

	go func() {
		logger.Info("starting server", zap.String("address", cfg.ServerAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	<-c.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}
