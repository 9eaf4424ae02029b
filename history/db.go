package history

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KingHippopotamus/pmax-helper/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenDatabase connects to the history database. It returns nil, nil when no DSN is configured.
func OpenDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, nil
	}

	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = inferDriverFromDSN(dsn)
		if driver == "" {
			return nil, errors.New("history: DATABASE_DRIVER is required when DSN does not contain a scheme")
		}
	}

	return openDatabase(driver, dsn)
}

func openDatabase(driver, dsn string) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
		Logger:  gormlogger.Default.LogMode(gormlogger.Warn),
	}
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pg":
		return gorm.Open(postgres.Open(dsn), gormCfg)
	case "mysql":
		return gorm.Open(mysql.Open(strings.TrimPrefix(dsn, "mysql://")), gormCfg)
	case "sqlite", "sqlite3":
		return gorm.Open(sqlite.Open(strings.TrimPrefix(dsn, "sqlite://")), gormCfg)
	default:
		return nil, fmt.Errorf("history: unsupported database driver %q", driver)
	}
}

func inferDriverFromDSN(dsn string) string {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(lower, "mysql://"), strings.Contains(lower, "@tcp("):
		return "mysql"
	case strings.HasPrefix(lower, "sqlite://"), strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"):
		return "sqlite"
	default:
		return ""
	}
}
