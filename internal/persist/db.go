package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/l1jgo/undoredo/internal/config"
	"go.uber.org/zap"
)

// DB holds the pgx pool used for scene snapshots.
type DB struct {
	Pool *pgxpool.Pool
	log  *zap.Logger
}

// Open connects to PostgreSQL and pings it. appName shows up in
// pg_stat_activity so snapshot traffic can be told apart from other clients.
func Open(ctx context.Context, cfg config.DatabaseConfig, appName string, log *zap.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	if appName != "" {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = appName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	log.Info("資料庫已連線",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database),
		zap.Int32("max_conns", poolCfg.MaxConns),
	)
	return &DB{Pool: pool, log: log}, nil
}

// Summary describes the pool for the startup banner.
func (db *DB) Summary() string {
	s := db.Pool.Stat()
	return fmt.Sprintf("連線 %d/%d (閒置 %d)", s.TotalConns(), s.MaxConns(), s.IdleConns())
}

func (db *DB) Close() {
	s := db.Pool.Stat()
	db.Pool.Close()
	db.log.Info("資料庫連線已關閉",
		zap.Int64("acquires", s.AcquireCount()),
		zap.Duration("acquire_wait", s.AcquireDuration()),
	)
}
