package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/camden-git/attendancebackend/biometric"
	"github.com/camden-git/attendancebackend/config"
	"github.com/camden-git/attendancebackend/database"
	"github.com/camden-git/attendancebackend/extractor"
	"github.com/camden-git/attendancebackend/locks"
	"github.com/camden-git/attendancebackend/realtime"
	"github.com/camden-git/attendancebackend/repository"
	"github.com/camden-git/attendancebackend/services"
)

// auditStreamMaxLen caps the Redis stream; XADD trims approximately.
const auditStreamMaxLen = 100000

// app holds the wired services shared by every command.
type app struct {
	cfg   config.Config
	log   *zap.Logger
	sqlDB *sql.DB
	redis *redis.Client
	hub   *realtime.Hub

	attendance  *services.AttendanceService
	enrollment  *services.EnrollmentService
	recognition *services.RecognitionService
	leaves      *services.LeaveService
	policies    *services.PolicyService
	subjects    *services.SubjectService
}

func newApp(ctx context.Context, cfg config.Config, log *zap.Logger) (*app, error) {
	db, err := database.InitGormDB(cfg.DatabaseDriver, cfg.DatabaseDSN, database.PoolOptions{
		MaxOpenConns: cfg.DatabaseMaxOpenConns,
		MaxIdleConns: cfg.DatabaseMaxIdleConns,
	}, log)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		sqlDB.Close()
		return nil, err
	}

	a := &app{cfg: cfg, log: log, sqlDB: sqlDB, hub: realtime.NewHub(log)}
	publishers := realtime.Multi{a.hub}
	if cfg.RedisAddr != "" {
		a.redis = realtime.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, audit stream events will fail until it recovers", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		publishers = append(publishers, realtime.NewStreamPublisher(a.redis, cfg.AuditStream, auditStreamMaxLen))
		log.Info("publishing audit events to redis stream", zap.String("stream", cfg.AuditStream))
	}

	store := repository.NewStore(db)
	reports := database.NewReports(sqlDB, cfg.DatabaseDriver)
	subjectLocks := locks.New()

	lastSeq, err := store.RecognitionLogs.MaxSeq(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	matcher := biometric.NewMatcher(store.RecognitionLogs, lastSeq)

	var featureExtractor services.FeatureExtractor
	if cfg.ExtractorURL != "" {
		featureExtractor = extractor.NewClient(cfg.ExtractorURL, time.Duration(cfg.ExtractorTimeoutSeconds)*time.Second, log)
		log.Info("feature extractor enabled", zap.String("url", cfg.ExtractorURL))
	}

	a.attendance = services.NewAttendanceService(store, subjectLocks, reports, publishers, log)
	a.enrollment = services.NewEnrollmentService(store, subjectLocks, publishers, log)
	a.recognition = services.NewRecognitionService(store, subjectLocks, matcher, a.attendance, featureExtractor, reports, publishers,
		services.RecognitionOptions{TieEpsilon: cfg.MatchTieEpsilon, HistoryLimit: cfg.RecognitionHistory}, log)
	a.leaves = services.NewLeaveService(store, a.attendance, publishers, log)
	a.policies = services.NewPolicyService(store, log)
	a.subjects = services.NewSubjectService(store, log)

	if cfg.SeedDefaultPolicy {
		if _, err := a.policies.SeedDefault(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("failed to close redis client", zap.Error(err))
		}
	}
	if err := a.sqlDB.Close(); err != nil {
		a.log.Warn("failed to close database", zap.Error(err))
	}
}
