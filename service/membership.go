package service

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/layer-3/ccgate/core"
	"github.com/layer-3/ccgate/internal/metrics"
	"github.com/layer-3/ccgate/ports"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// DefaultLedgerTimeout bounds a single balance query
const DefaultLedgerTimeout = 10 * time.Second

// MembershipGate decides whether an account holds enough community currency
type MembershipGate struct {
	ledger    ports.BalanceQuerier
	minimum   decimal.Decimal
	threshold *big.Int
	timeout   time.Duration
}

// NewMembershipGate creates a gate requiring at least minimum units of the
// community currency. minimum is a decimal string such as "0.1".
func NewMembershipGate(ledger ports.BalanceQuerier, minimum string, timeout time.Duration) (*MembershipGate, error) {
	minBalance, err := decimal.NewFromString(minimum)
	if err != nil {
		return nil, fmt.Errorf("invalid minimum balance %q: %w", minimum, err)
	}
	if minBalance.IsNegative() {
		return nil, fmt.Errorf("minimum balance must not be negative: %s", minimum)
	}
	if timeout <= 0 {
		timeout = DefaultLedgerTimeout
	}

	return &MembershipGate{
		ledger:    ledger,
		minimum:   minBalance,
		threshold: core.FixedFromDecimal(minBalance, true),
		timeout:   timeout,
	}, nil
}

// MinimumDisplay returns the configured threshold for client-facing messages
func (g *MembershipGate) MinimumDisplay() string {
	return g.minimum.String()
}

// Minimum returns the configured threshold
func (g *MembershipGate) Minimum() decimal.Decimal {
	return g.minimum
}

// IsMember reports whether address holds at least the minimum balance in the
// community. A missing balance record is not an error. A failed or timed out
// ledger query returns an error wrapping core.ErrLedgerUnavailable.
func (g *MembershipGate) IsMember(ctx context.Context, address, communityID string) (bool, error) {
	if !core.ValidCommunityID(communityID) {
		return false, core.ErrInvalidCommunityID
	}

	entry, err := g.queryBalance(ctx, address, communityID)
	if err != nil {
		metrics.MembershipChecksTotal.WithLabelValues("error").Inc()
		return false, err
	}

	member := g.passes(entry)
	result := "failed"
	if member {
		result = "passed"
	}
	metrics.MembershipChecksTotal.WithLabelValues(result).Inc()

	if entry != nil {
		log.Debug().
			Str("address", address).
			Str("community_id", communityID).
			Str("balance", core.FixedToDecimal(entry.Principal).String()).
			Bool("member", member).
			Msg("membership checked")
	}

	return member, nil
}

func (g *MembershipGate) passes(entry *core.BalanceEntry) bool {
	if entry == nil || entry.Principal == nil {
		return false
	}
	return entry.Principal.Cmp(g.threshold) >= 0
}

type balanceResult struct {
	entry *core.BalanceEntry
	err   error
}

// queryBalance runs the ledger call under the gate's timeout. The call runs in
// its own goroutine so a querier that ignores ctx still cannot hold the caller.
func (g *MembershipGate) queryBalance(ctx context.Context, address, communityID string) (*core.BalanceEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan balanceResult, 1)
	go func() {
		entry, err := g.ledger.QueryBalance(ctx, address, communityID)
		done <- balanceResult{entry: entry, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", core.ErrLedgerUnavailable, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrLedgerUnavailable, res.err)
		}
		return res.entry, nil
	}
}
