package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/vectra/vtu-backend/internal/domain/service"
	"github.com/vectra/vtu-backend/internal/infrastructure/logging"
)

// Task names
const (
	TypeReconcileStuck = "reconcile:stuck"
)

// TaskHandlers holds dependencies for all task handlers.
type TaskHandlers struct {
	reconciliation *service.ReconciliationService
	sweepLimit     int
	logger         *zap.Logger
}

// NewTaskHandlers creates task handlers
func NewTaskHandlers(reconciliation *service.ReconciliationService, sweepLimit int) *TaskHandlers {
	if sweepLimit <= 0 {
		sweepLimit = 100
	}
	return &TaskHandlers{
		reconciliation: reconciliation,
		sweepLimit:     sweepLimit,
		logger:         logging.Logger,
	}
}

// RegisterHandlers registers all task handlers with the server mux.
func RegisterHandlers(mux *asynq.ServeMux, h *TaskHandlers) {
	mux.HandleFunc(TypeReconcileStuck, h.HandleReconcileStuck)
}

// RegisterScheduledTasks registers the recurring reconciliation sweep
func RegisterScheduledTasks(scheduler *asynq.Scheduler, interval time.Duration) {
	spec := fmt.Sprintf("@every %s", interval)
	if _, err := scheduler.Register(spec, asynq.NewTask(TypeReconcileStuck, nil)); err != nil {
		logging.Logger.Error("Failed to schedule reconciliation sweep", zap.Error(err))
	}
}

// HandleReconcileStuck requeries every transaction stuck in PROCESSING. The
// sweep is idempotent: a row resolved by a webhook mid-sweep simply becomes
// a no-op requery.
func (h *TaskHandlers) HandleReconcileStuck(ctx context.Context, t *asynq.Task) error {
	requeried, err := h.reconciliation.ReconcileStuck(ctx, h.sweepLimit)
	if err != nil {
		h.logger.Error("reconciliation sweep failed", zap.Error(err))
		return err
	}
	h.logger.Info("reconciliation sweep completed", zap.Int("requeried", requeried))
	return nil
}
