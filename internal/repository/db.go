package repository

import (
	"context"
	"database/sql"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// DB は X-Ray で計測する sqlx.DB のラッパーです
type DB struct {
	*sqlx.DB
	logger *zap.Logger
}

// NewDB は接続済みの sqlx.DB からリポジトリ用の DB を作成します
func NewDB(db *sqlx.DB, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{DB: db, logger: logger}
}

// BeginTx starts a new transaction
func (db *DB) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	// サブセグメントはトランザクション開始までを計測する
	// トランザクション自体は呼び出し元の ctx に紐付ける
	_, seg := xray.BeginSubsegment(ctx, "DB.BeginTx")
	defer seg.Close(nil)

	return db.DB.BeginTxx(ctx, nil)
}

// QueryxContext wraps sqlx.DB.QueryxContext with X-Ray tracing
func (db *DB) QueryxContext(ctx context.Context, query string, args ...interface{}) (rows *sqlx.Rows, err error) {
	ctx, seg := xray.BeginSubsegment(ctx, "DB.Queryx")
	if seg == nil {
		return db.DB.QueryxContext(ctx, query, args...)
	}
	defer func() { seg.Close(err) }()

	db.addQueryMetadata(seg, query)

	return db.DB.QueryxContext(ctx, query, args...)
}

// SelectContext wraps sqlx.DB.SelectContext with X-Ray tracing
func (db *DB) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) (err error) {
	ctx, seg := xray.BeginSubsegment(ctx, "DB.Select")
	if seg == nil {
		return db.DB.SelectContext(ctx, dest, query, args...)
	}
	defer func() { seg.Close(err) }()

	db.addQueryMetadata(seg, query)

	return db.DB.SelectContext(ctx, dest, query, args...)
}

// ExecContext wraps sqlx.DB.ExecContext with X-Ray tracing
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (result sql.Result, err error) {
	ctx, seg := xray.BeginSubsegment(ctx, "DB.Exec")
	if seg == nil {
		return db.DB.ExecContext(ctx, query, args...)
	}
	defer func() { seg.Close(err) }()

	db.addQueryMetadata(seg, query)

	return db.DB.ExecContext(ctx, query, args...)
}

// クエリをメタデータとして追加
func (db *DB) addQueryMetadata(seg *xray.Segment, query string) {
	if err := seg.AddMetadata("query", query); err != nil {
		db.logger.Warn("Failed to add query metadata", zap.Error(err))
	}
}
