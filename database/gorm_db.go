package database

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/camden-git/attendancebackend/config"
	"github.com/camden-git/attendancebackend/models"
)

// PoolOptions tunes the underlying sql.DB connection pool.
type PoolOptions struct {
	MaxOpenConns int
	MaxIdleConns int
}

// InitGormDB opens the configured database and returns a GORM instance.
func InitGormDB(driver, dsn string, pool PoolOptions, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	gormLogger := logger.New(
		zap.NewStdLog(log.Named("gorm")),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var dialector gorm.Dialector
	switch driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(dsn)
	case config.DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database using GORM: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}

	maxOpen, maxIdle := pool.MaxOpenConns, pool.MaxIdleConns
	if driver == config.DriverSQLite {
		// sqlite allows a single writer; one connection also keeps in-memory databases alive
		maxOpen, maxIdle = 1, 1
		if !strings.Contains(dsn, "mode=memory") {
			if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
				log.Warn("failed to set WAL mode", zap.Error(err))
			}
		}
		if err := db.Exec("PRAGMA busy_timeout=5000;").Error; err != nil {
			log.Warn("failed to set busy timeout", zap.Error(err))
		}
	}
	if maxOpen <= 0 {
		maxOpen = 100
	}
	if maxIdle <= 0 {
		maxIdle = 10
	}
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("GORM database initialized", zap.String("driver", driver))
	return db, nil
}

// AutoMigrateModels creates or updates every table the service owns.
func AutoMigrateModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Subject{},
		&models.SchedulePolicy{},
		&models.EnrollmentTemplate{},
		&models.AttendanceRecord{},
		&models.LeaveRequest{},
		&models.RecognitionLog{},
	)
	if err != nil {
		return fmt.Errorf("GORM AutoMigrate failed: %w", err)
	}
	return nil
}
