package model

import "time"

// Loanable asset status values. The status is a cached projection of
// whether an active loan exists; the loans table is the authority.
const (
	AssetAvailable   = "available"
	AssetInUse       = "in_use"
	AssetMaintenance = "maintenance"
	AssetLost        = "lost"
	AssetOutOfStock  = "out_of_stock"
)

// Asset kinds currently tracked by the ledger.
const (
	AssetKindFootwear = "footwear"
	AssetKindTowel    = "towel"
)

// Asset is a uniquely identified shared physical item (a pair of cycling
// shoes, a towel) that members can check out. Code is the label printed
// on the item itself.
type Asset struct {
	ID        uint64    // assets.id
	Code      string    // assets.code
	Kind      string    // assets.kind
	Status    string    // assets.status
	CreatedAt time.Time // assets.created_at
	UpdatedAt time.Time // assets.updated_at
}
