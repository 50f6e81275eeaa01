package repository

import (
	"context"

	"agora/internal/cache"

	"gorm.io/gorm"
)

// Repositories bundles every repository bound to one database handle,
// which is either the pool or an open transaction.
type Repositories struct {
	Users   UserRepository
	Forums  ForumRepository
	Posts   PostRepository
	Replies ReplyRepository
	Polls   PollRepository
}

// New builds the repository set over db. store may be nil.
func New(db *gorm.DB, store *cache.Store) Repositories {
	return Repositories{
		Users:   NewUserRepository(db, store),
		Forums:  NewForumRepository(db),
		Posts:   NewPostRepository(db),
		Replies: NewReplyRepository(db),
		Polls:   NewPollRepository(db),
	}
}

// Transactor runs a unit of work atomically.
type Transactor interface {
	// WithinTx calls fn with repositories bound to a transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	// Cached users the transaction changed are dropped after commit.
	WithinTx(ctx context.Context, fn func(Repositories) error) error
}

type gormTransactor struct {
	db    *gorm.DB
	store *cache.Store
}

// NewTransactor returns a Transactor over db.
func NewTransactor(db *gorm.DB, store *cache.Store) Transactor {
	return &gormTransactor{db: db, store: store}
}

func (t *gormTransactor) WithinTx(ctx context.Context, fn func(Repositories) error) error {
	pending := &pendingUsers{}
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := New(tx, t.store)
		repos.Users = newTxUserRepository(tx, t.store, pending)
		return fn(repos)
	})
	if err != nil {
		return err
	}
	pending.flush(ctx, t.store)
	return nil
}
