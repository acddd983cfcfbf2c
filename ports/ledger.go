package ports

import (
	"context"

	"github.com/layer-3/ccgate/core"
)

// BalanceQuerier reads community currency balances from the ledger
type BalanceQuerier interface {
	// QueryBalance returns nil without error when the account holds no balance record
	QueryBalance(ctx context.Context, address, communityID string) (*core.BalanceEntry, error)
}
