package sqlstore

import (
	"fmt"
	"strings"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-tenancy/core"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	configStore      *ConfigStore
	entitlementStore *EntitlementStore
	resourceStore    *ResourceStore
	bookingStore     *BookingStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.configStore != nil && f.bookingStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) ConfigStore() core.ConfigStore {
	if f == nil {
		return nil
	}
	return f.configStore
}

func (f *RepositoryFactory) EntitlementStore() core.EntitlementStore {
	if f == nil {
		return nil
	}
	return f.entitlementStore
}

func (f *RepositoryFactory) ResourceStore() core.ResourceStore {
	if f == nil {
		return nil
	}
	return f.resourceStore
}

func (f *RepositoryFactory) BookingStore() core.BookingStore {
	if f == nil {
		return nil
	}
	return f.bookingStore
}

func (f *RepositoryFactory) initStores() error {
	configStore, err := NewConfigStore(f.db)
	if err != nil {
		return err
	}
	f.configStore = configStore
	entitlementStore, err := NewEntitlementStore(f.db)
	if err != nil {
		return err
	}
	f.entitlementStore = entitlementStore
	resourceStore, err := NewResourceStore(f.db)
	if err != nil {
		return err
	}
	f.resourceStore = resourceStore
	bookingStore, err := NewBookingStore(f.db)
	if err != nil {
		return err
	}
	f.bookingStore = bookingStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

// isUniqueViolation matches sqlite and postgres duplicate-key messages; both
// backends are supported by the migration set.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
