package repository

import (
	"context"
	stdErrors "errors"
	"sync"

	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"

	pkgerrors "Atlas/pkg/errors"
	"Atlas/storage/database"
)

// Store 持久化接口，服务层只依赖它
type Store interface {
	// Transaction fn 内拿到的 Store 共享同一个事务，返回错误即回滚
	Transaction(ctx context.Context, fn func(tx Store) error) error
	// ReadReplica 查询走只读副本，未配置副本时等同于主库
	ReadReplica() Store

	ItineraryStore
	ItemStore
	POIStore
	SnapshotStore
	ForkStore
	DiffActionStore
	UserStore
}

type gormStore struct {
	db   *gorm.DB
	read dbresolver.Operation
}

var (
	defaultStore Store
	storeOnce    sync.Once
)

// Default 基于全局数据库连接的 Store
func Default() Store {
	storeOnce.Do(func() {
		defaultStore = New(database.DB())
	})
	return defaultStore
}

// New 默认读主库，避免刚写入的数据在副本上还不可见
func New(db *gorm.DB) Store {
	return &gormStore{db: db, read: dbresolver.Write}
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx, read: dbresolver.Write})
	})
}

func (s *gormStore) ReadReplica() Store {
	return &gormStore{db: s.db, read: dbresolver.Read}
}

// reader 查询使用的连接
func (s *gormStore) reader(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Clauses(s.read)
}

func (s *gormStore) writer(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// notFound 把 gorm 的 ErrRecordNotFound 翻译成业务错误
func notFound(err error, def pkgerrors.Definition) error {
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return def
	}
	return err
}

func isDuplicateKey(err error) bool {
	return stdErrors.Is(err, gorm.ErrDuplicatedKey)
}
