package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"FakeNewsScanner/internal/classifier"
	"FakeNewsScanner/internal/ports"
)

// BatchStatus is the progress record of a batch prediction job.
type BatchStatus struct {
	ID          string     `json:"id"`
	Running     bool       `json:"running"`
	Total       int        `json:"total"`
	Completed   int        `json:"completed"`
	Successful  int        `json:"successful"`
	Failed      int        `json:"failed"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// BatchPredictor predicts every unpredicted item in the background with the
// fast stage only. One job runs at a time.
type BatchPredictor struct {
	items       ports.ItemRepository
	predictor   *Predictor
	concurrency int
	logger      *slog.Logger

	mu     sync.Mutex
	status *BatchStatus
	wg     sync.WaitGroup
}

// NewBatchPredictor wires the job.
func NewBatchPredictor(items ports.ItemRepository, predictor *Predictor, concurrency int, logger *slog.Logger) *BatchPredictor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BatchPredictor{items: items, predictor: predictor, concurrency: concurrency, logger: logger}
}

// Start launches a job over at most limit items. When a job is already
// running its status is returned with started=false.
func (b *BatchPredictor) Start(ctx context.Context, limit int) (status BatchStatus, started bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status != nil && b.status.Running {
		return *b.status, false
	}

	b.status = &BatchStatus{ID: uuid.NewString(), Running: true, StartedAt: time.Now().UTC()}
	job := *b.status

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.run(context.WithoutCancel(ctx), limit)
	}()
	return job, true
}

// Status returns the current or last job, if any.
func (b *BatchPredictor) Status() (BatchStatus, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status == nil {
		return BatchStatus{}, false
	}
	return *b.status, true
}

// Wait blocks until the running job, if any, finishes.
func (b *BatchPredictor) Wait() {
	b.wg.Wait()
}

func (b *BatchPredictor) run(ctx context.Context, limit int) {
	log := b.logger.With("job", b.snapshotID())

	items, err := b.items.ListUnpredicted(ctx, limit)
	if err != nil {
		log.Error("batch prediction aborted", "error", err)
		b.finish(err.Error())
		return
	}

	b.mu.Lock()
	b.status.Total = len(items)
	b.mu.Unlock()
	log.Info("batch prediction started", "items", len(items))

	stats := b.predictor.PredictAll(ctx, items, classifier.FastOnly, b.concurrency, func(ok bool) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.status.Completed++
		if ok {
			b.status.Successful++
		} else {
			b.status.Failed++
		}
	})

	log.Info("batch prediction finished", "predicted", stats.Predicted, "fake", stats.Fake, "failed", stats.Failed)
	b.finish("")
}

func (b *BatchPredictor) snapshotID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status.ID
}

func (b *BatchPredictor) finish(errText string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now().UTC()
	b.status.Running = false
	b.status.CompletedAt = &now
	b.status.Error = errText
}
