package history

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	cfgpkg "github.com/taoyao-code/dfplayer-server/internal/config"
)

// 注意：
// - 不使用 gorm.Model，显式声明每个字段，避免隐式 DeletedAt

// PlayRecord 映射 play_records 表：一条记录对应一首播放完成的曲目
type PlayRecord struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID string    `gorm:"column:session_id;type:text;not null;index"`
	Track     int       `gorm:"column:track;not null"`
	EndedAt   time.Time `gorm:"column:ended_at;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (PlayRecord) TableName() string { return "play_records" }

// CommandLog 映射 command_logs 表：下发到模块的每条命令
type CommandLog struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID string    `gorm:"column:session_id;type:text;not null;index"`
	Command   string    `gorm:"column:command;type:text;not null"`
	Param     int       `gorm:"column:param;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (CommandLog) TableName() string { return "command_logs" }

// Repo 播放历史仓库。db 为 nil 时所有写入退化为空操作，
// 数据库未启用的部署不需要条件判断。
type Repo struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open 连接 PostgreSQL 并迁移历史表。cfg.Enabled 为假时返回空操作仓库。
func Open(cfg cfgpkg.DatabaseConfig, log *zap.Logger) (*Repo, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if !cfg.Enabled {
		return &Repo{log: log}, nil
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(&PlayRecord{}, &CommandLog{}); err != nil {
		return nil, fmt.Errorf("migrate history tables: %w", err)
	}

	return &Repo{db: db, log: log}, nil
}

// NewWithDB 使用现有 *gorm.DB 构建仓库（测试用）
func NewWithDB(db *gorm.DB, log *zap.Logger) *Repo {
	if log == nil {
		log = zap.NewNop()
	}
	return &Repo{db: db, log: log}
}

// Enabled 是否落库
func (r *Repo) Enabled() bool { return r != nil && r.db != nil }

// RecordFinished 记录一首播放完成的曲目
func (r *Repo) RecordFinished(ctx context.Context, sessionID string, track int) {
	if !r.Enabled() {
		return
	}
	rec := &PlayRecord{SessionID: sessionID, Track: track, EndedAt: time.Now()}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		r.log.Warn("record play history failed", zap.Int("track", track), zap.Error(err))
	}
}

// RecordCommand 记录一条下发命令
func (r *Repo) RecordCommand(ctx context.Context, sessionID, command string, param int) {
	if !r.Enabled() {
		return
	}
	rec := &CommandLog{SessionID: sessionID, Command: command, Param: param}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		r.log.Warn("record command log failed", zap.String("command", command), zap.Error(err))
	}
}

// RecentPlays 最近播放记录，按结束时间倒序
func (r *Repo) RecentPlays(ctx context.Context, limit int) ([]PlayRecord, error) {
	if !r.Enabled() {
		return nil, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var out []PlayRecord
	err := r.db.WithContext(ctx).
		Order("ended_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Close 关闭底层连接池
func (r *Repo) Close() error {
	if !r.Enabled() {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
