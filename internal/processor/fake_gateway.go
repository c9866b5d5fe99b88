package processor

import (
	"context"
	"fmt"
	"sync"
)

// FakeGateway is an in-memory Gateway for tests. It exposes the same
// contract as the real clients, records every call, and lets tests script
// failures per phase.
type FakeGateway struct {
	mu sync.Mutex

	nextID int

	// Scripted failures. Nil means the call succeeds.
	InternalTransferErr error
	PayoutErr           error
	ReversalErr         error

	// ReversalReturnedUnits overrides the amount a reversal reports as
	// returned. When zero, reversals return exactly what was sent.
	ReversalReturnedUnits int64
	ReversalCurrency      string

	InternalTransfers []InternalTransferRequest
	Payouts           []PayoutRequest
	Reversals         []string

	ArrivalDates map[string]int64
}

// NewFakeGateway creates a FakeGateway.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{}
}

// CreateInternalTransfer records the request and returns a generated id.
func (g *FakeGateway) CreateInternalTransfer(_ context.Context, req InternalTransferRequest) (*TransferResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.InternalTransferErr != nil {
		return nil, g.InternalTransferErr
	}

	g.InternalTransfers = append(g.InternalTransfers, req)
	g.nextID++

	return &TransferResult{TransferID: fmt.Sprintf("tr_fake_%d", g.nextID)}, nil
}

// CreatePayout records the request and returns a generated id.
func (g *FakeGateway) CreatePayout(_ context.Context, req PayoutRequest) (*TransferResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.PayoutErr != nil {
		return nil, g.PayoutErr
	}

	g.Payouts = append(g.Payouts, req)
	g.nextID++

	return &TransferResult{TransferID: fmt.Sprintf("po_fake_%d", g.nextID)}, nil
}

// ReverseInternalTransfer records the reversal. Unless overridden it
// reports the originally sent amount as returned.
func (g *FakeGateway) ReverseInternalTransfer(_ context.Context, transferID string) (*ReversalResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ReversalErr != nil {
		return nil, g.ReversalErr
	}

	g.Reversals = append(g.Reversals, transferID)

	returned := g.ReversalReturnedUnits
	if returned == 0 {
		// Default: reversal returns exactly what the matching internal
		// transfer sent.
		for _, t := range g.InternalTransfers {
			returned = t.AmountUnits
		}
	}

	cur := g.ReversalCurrency
	if cur == "" {
		cur = "usd"
	}

	g.nextID++

	return &ReversalResult{
		ReversalID:          fmt.Sprintf("trr_fake_%d", g.nextID),
		AmountReturnedUnits: returned,
		Currency:            cur,
	}, nil
}
