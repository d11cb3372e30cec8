package sqlstore

import "github.com/goliatone/go-tenancy/core"

var (
	_ core.ConfigStore      = (*ConfigStore)(nil)
	_ core.EntitlementStore = (*EntitlementStore)(nil)
	_ core.ResourceStore    = (*ResourceStore)(nil)
	_ core.BookingStore     = (*BookingStore)(nil)
	_ core.StoreProvider    = (*RepositoryFactory)(nil)
)
