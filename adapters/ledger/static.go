package ledger

import (
	"context"
	"sync"

	"github.com/layer-3/ccgate/core"
	"github.com/layer-3/ccgate/ports"
	"github.com/shopspring/decimal"
)

// Static is an in-memory ledger for development and tests
type Static struct {
	mu       sync.RWMutex
	balances map[string]core.BalanceEntry
	fallback *core.BalanceEntry
}

var _ ports.BalanceQuerier = (*Static)(nil)

// NewStatic creates an empty static ledger
func NewStatic() *Static {
	return &Static{balances: make(map[string]core.BalanceEntry)}
}

// Set records a balance for address in community, rounded up to the next raw unit
func (s *Static) Set(address, communityID string, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances[address+"/"+communityID] = core.BalanceEntry{Principal: core.FixedFromDecimal(amount, true)}
}

// SetDefault makes every unknown account report amount
func (s *Static) SetDefault(amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fallback = &core.BalanceEntry{Principal: core.FixedFromDecimal(amount, true)}
}

// QueryBalance implements ports.BalanceQuerier
func (s *Static) QueryBalance(ctx context.Context, address, communityID string) (*core.BalanceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if entry, ok := s.balances[address+"/"+communityID]; ok {
		return &entry, nil
	}
	if s.fallback != nil {
		entry := *s.fallback
		return &entry, nil
	}
	return nil, nil
}
