// Package main - точка входа для фоновых процессов (Worker) скорингового
// движка PropsHub.
//
// Worker отвечает за периодические задачи:
// - Грейдинг финализированных паков и запись победителей
// - Еженедельный грейдинг командных скоубордов
// - Начисление ачивок за пороги очков по отгрейженным пропам
// - Ночная сверка начислений
//
// Все записи идемпотентны: победитель скоупа write-once, ачивки защищены
// уникальными индексами, поэтому повторный запуск любой задачи безопасен.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/propshub/props-scoring-engine/config"
	"github.com/propshub/props-scoring-engine/internal/application/command"
	"github.com/propshub/props-scoring-engine/internal/application/saga"
	"github.com/propshub/props-scoring-engine/internal/domain/leaderboard"
	"github.com/propshub/props-scoring-engine/internal/domain/profile"
	"github.com/propshub/props-scoring-engine/internal/domain/shared"
	"github.com/propshub/props-scoring-engine/internal/infrastructure/messaging"
	"github.com/propshub/props-scoring-engine/internal/infrastructure/persistence/postgres"
	"github.com/propshub/props-scoring-engine/internal/infrastructure/persistence/redis"
	"github.com/propshub/props-scoring-engine/internal/infrastructure/scheduler"
	"github.com/propshub/props-scoring-engine/internal/infrastructure/scheduler/jobs"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting PropsHub scoring worker",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var rowCache leaderboard.RowCache

	cacheEnabled := !cfg.Redis.Disabled &&
		cfg.Features.IsEnabled(config.FeatureLeaderboardCache, nil)

	if cacheEnabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   3,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			PoolTimeout:  cfg.Redis.DialTimeout,
		}

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
		} else {
			defer redisCache.Close()
			rowCache = redis.NewLeaderboardCache(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	eventBus, err := buildEventBus(cfg, redisCache, log)
	if err != nil {
		return fmt.Errorf("failed to build event bus: %w", err)
	}
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ И ОБРАБОТЧИКОВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	takeRepo := postgres.NewTakeRepository(dbConn)
	achievementRepo := postgres.NewAchievementRepository(dbConn)
	winnerStore := postgres.NewWinnerStore(dbConn)
	gradingQueue := postgres.NewGradingQueue(dbConn)
	resolver := postgres.NewScopeResolver(dbConn,
		postgres.WithTeamView(cfg.Features.IsEnabled(config.FeatureLeaderboardTeamView, nil)),
		postgres.WithContestScopes(cfg.Features.IsEnabled(config.FeatureLeaderboardContestRefs, nil)),
	)

	// Лукапы профилей за circuit breaker: лидерборд живёт и без декорации.
	var profileRepo profile.Repository = postgres.NewProfileRepository(dbConn)
	if cfg.Features.IsEnabled(config.FeatureLeaderboardProfiles, nil) {
		profileRepo = postgres.NewBreakerProfileRepository(profileRepo, log)
	}

	selector := command.NewSelectWinnerHandler(resolver, profileRepo)
	grader := command.NewGradeScopeHandler(selector, winnerStore, rowCache, eventBus)

	awardFlow := saga.NewAwardFlowSagaBuilder().
		WithTakeRepository(takeRepo).
		WithProfileRepository(profileRepo).
		WithAchievementRepository(achievementRepo).
		WithEventBus(eventBus).
		WithIDGenerator(uuidGenerator{}).
		WithConfig(saga.AwardFlowConfig{
			FanOutConcurrency: cfg.Awards.FanOutConcurrency,
			MaxSubjectsPerRun: cfg.Awards.MaxSubjectsPerRun,
		}).
		Build()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. EVENT-DRIVEN НАЧИСЛЕНИЯ
	// Победитель скоупа проверяется на пороги сразу после грейдинга,
	// не дожидаясь периодического прохода.
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Features.IsEnabled(config.FeatureAwardsOnGraded, nil) {
		handler := saga.NewScopeGradedAwardHandler(ctx, awardFlow)
		if err := eventBus.Subscribe(shared.EventScopeGradedWithWinner, handler); err != nil {
			return fmt.Errorf("failed to subscribe award handler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ПЛАНИРОВЩИК И ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:        log,
		EnableMetrics: true,
	})

	if cfg.Features.IsEnabled(config.FeatureGradingAutoSweep, nil) {
		gradeJob := jobs.NewGradeScopesJob(gradingQueue, grader, log, jobs.GradeScopesConfig{
			MaxScopesPerRun: cfg.Scheduler.MaxScopesPerSweep,
			Timeout:         cfg.Scheduler.JobTimeout,
		})
		if err := sched.Register(gradeJob, scheduler.NewIntervalSchedule(cfg.Scheduler.GradeScopesInterval)); err != nil {
			return fmt.Errorf("failed to register grade_scopes: %w", err)
		}
	}

	if cfg.Features.IsEnabled(config.FeatureGradingTeamWeeks, nil) {
		teamJob := jobs.NewGradeTeamWeeksJob(gradingQueue, grader, log)
		if err := sched.Register(teamJob, scheduler.NewIntervalSchedule(cfg.Scheduler.GradeTeamWeeksInterval)); err != nil {
			return fmt.Errorf("failed to register grade_team_weeks: %w", err)
		}
	}

	if cfg.Features.IsEnabled(config.FeatureAwardsMilestones, nil) {
		awardJob := jobs.NewAwardMilestonesJob(gradingQueue, awardFlow, log, jobs.AwardMilestonesConfig{
			InitialLookback: cfg.Scheduler.ReconcileLookback,
			Timeout:         cfg.Scheduler.JobTimeout,
		})
		if err := sched.Register(awardJob, scheduler.NewIntervalSchedule(cfg.Scheduler.AwardMilestonesInterval)); err != nil {
			return fmt.Errorf("failed to register award_milestones: %w", err)
		}
	}

	if cfg.Features.IsEnabled(config.FeatureAwardsReconcile, nil) {
		daily, err := scheduler.NewDailySchedule(cfg.Scheduler.ReconcileAwardsAt)
		if err != nil {
			return fmt.Errorf("invalid reconcile schedule: %w", err)
		}
		reconcileJob := jobs.NewReconcileAwardsJob(gradingQueue, awardFlow, log, cfg.Scheduler.ReconcileLookback)
		if err := sched.Register(reconcileJob, daily); err != nil {
			return fmt.Errorf("failed to register reconcile_awards: %w", err)
		}
	}

	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler...")
			_ = sched.Stop()
		}()
	} else {
		log.Warn("scheduler disabled by configuration")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("PropsHub scoring worker is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	// Остановка идёт через deferred-закрытия: планировщик дожидается
	// текущих задач, шина событий - обработчиков в полёте.
	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// uuidGenerator реализует генерацию идентификаторов для award flow.
type uuidGenerator struct{}

func (uuidGenerator) GenerateID() string {
	return uuid.New().String()
}

// closableEventBus - шина событий с управляемым жизненным циклом.
type closableEventBus interface {
	shared.EventBus
	Close() error
}

// buildEventBus собирает шину событий: Redis pub/sub за фичефлагом,
// иначе in-memory.
func buildEventBus(cfg *config.Config, redisCache *redis.Cache, log *slog.Logger) (closableEventBus, error) {
	localCfg := messaging.DefaultInMemoryEventBusConfig()
	localCfg.Logger = log
	localCfg.AsyncMode = true

	useRedis := redisCache != nil &&
		cfg.Features.IsEnabled(config.FeatureExperimentalRedisEvents, nil)

	if !useRedis {
		return messaging.NewInMemoryEventBus(localCfg), nil
	}

	return messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         messaging.NewGoRedisClient(redisCache.Client()),
		LocalBusConfig: localCfg,
		Logger:         log,
	})
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Observability.LogLevel),
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		// Текстовый формат для development (лучше читается)
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		// JSON формат для production (лучше для агрегаторов логов)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

// parseLogLevel разбирает уровень логирования из конфигурации.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
