package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vectra/vtu-backend/internal/domain/entity"
	domainErrors "github.com/vectra/vtu-backend/internal/domain/errors"
	"github.com/vectra/vtu-backend/internal/domain/valueobject"
)

// memoryTransactionRepository mimics the Postgres repository contract: copies
// in, copies out, Mutate persists only when fn succeeds.
type memoryTransactionRepository struct {
	mu   sync.Mutex
	rows map[string]*entity.Transaction
}

func newMemoryRepo(seed ...*entity.Transaction) *memoryTransactionRepository {
	r := &memoryTransactionRepository{rows: make(map[string]*entity.Transaction)}
	for _, txn := range seed {
		cp := *txn
		r.rows[txn.RequestID] = &cp
	}
	return r
}

func (r *memoryTransactionRepository) Create(ctx context.Context, txn *entity.Transaction) (*entity.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.rows[txn.RequestID]; ok {
		cp := *existing
		return &cp, domainErrors.ErrDuplicateRequest
	}
	cp := *txn
	r.rows[txn.RequestID] = &cp
	return txn, nil
}

func (r *memoryTransactionRepository) GetByRequestID(ctx context.Context, requestID string) (*entity.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.rows[requestID]
	if !ok {
		return nil, fmt.Errorf("transaction %q: %w", requestID, domainErrors.ErrTransactionNotFound)
	}
	cp := *txn
	return &cp, nil
}

func (r *memoryTransactionRepository) Mutate(ctx context.Context, requestID string, fn func(*entity.Transaction) error) (*entity.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.rows[requestID]
	if !ok {
		return nil, fmt.Errorf("transaction %q: %w", requestID, domainErrors.ErrTransactionNotFound)
	}
	cp := *txn
	if err := fn(&cp); err != nil {
		return nil, err
	}
	stored := cp
	r.rows[requestID] = &stored
	out := cp
	return &out, nil
}

func (r *memoryTransactionRepository) ListStuckProcessing(ctx context.Context, olderThan time.Time, limit int) ([]*entity.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stuck []*entity.Transaction
	for _, txn := range r.rows {
		if txn.Status == valueobject.StatusProcessing && txn.UpdatedAt.Before(olderThan) {
			cp := *txn
			stuck = append(stuck, &cp)
			if len(stuck) >= limit {
				break
			}
		}
	}
	return stuck, nil
}

// stubGateway returns canned requery results per request id
type stubGateway struct {
	requeryResults map[string]*VendorResult
	requeryErr     error
	requeryCalls   int
}

func (g *stubGateway) PurchaseAirtime(ctx context.Context, requestID, phone string, network valueobject.NetworkType, amount float64) (*VendorResult, error) {
	return nil, fmt.Errorf("not implemented")
}

func (g *stubGateway) PurchaseData(ctx context.Context, requestID, phone string, network valueobject.NetworkType, planID int) (*VendorResult, error) {
	return nil, fmt.Errorf("not implemented")
}

func (g *stubGateway) Requery(ctx context.Context, requestID string) (*VendorResult, error) {
	g.requeryCalls++
	if g.requeryErr != nil {
		return g.requeryResults[requestID], g.requeryErr
	}
	if res, ok := g.requeryResults[requestID]; ok {
		return res, nil
	}
	return &VendorResult{Success: true, Status: "processing-api"}, nil
}

func (g *stubGateway) GetDataPlans(ctx context.Context, network valueobject.NetworkType) ([]DataPlan, error) {
	return nil, fmt.Errorf("not implemented")
}

func processingTransaction(requestID string) *entity.Transaction {
	txn := entity.NewTransaction(requestID, "user-1", valueobject.ServiceAirtime, valueobject.NetworkMTN, "08031234567", 500, 495)
	if err := txn.TransitionTo(valueobject.StatusProcessing); err != nil {
		panic(err)
	}
	return txn
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
