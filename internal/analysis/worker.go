package analysis

import (
	"errors"
	"sync"

	"github.com/androcoderr/finance-app/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrQueueFull is returned by Enqueue when the request queue is saturated.
var ErrQueueFull = errors.New("analysis queue is full")

const queueCapacity = 256

// ResultCache holds the most recent analysis result per goal. Reads come
// from the retrieval endpoint; the worker is the only writer.
type ResultCache struct {
	mu      sync.RWMutex
	results map[string]*models.AnalysisResult
}

// NewResultCache creates an empty cache.
func NewResultCache() *ResultCache {
	return &ResultCache{results: make(map[string]*models.AnalysisResult)}
}

// Get returns the cached result for a goal, if any.
func (c *ResultCache) Get(goalID string) (*models.AnalysisResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.results[goalID]
	return res, ok
}

// Put stores a result, overwriting any prior entry for the goal.
func (c *ResultCache) Put(goalID string, res *models.AnalysisResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[goalID] = res
}

// Worker is the single background consumer serializing training and
// inference. Enqueue is non-blocking; the expensive work happens here.
type Worker struct {
	store   DataStore
	params  *ParamStore
	trainer *Trainer
	engine  *Engine
	log     *logrus.Logger

	queue chan models.AnalysisRequest
	done  chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewWorker wires the worker over its collaborators.
func NewWorker(store DataStore, params *ParamStore, trainer *Trainer, engine *Engine, log *logrus.Logger) *Worker {
	return &Worker{
		store:   store,
		params:  params,
		trainer: trainer,
		engine:  engine,
		log:     log,
		queue:   make(chan models.AnalysisRequest, queueCapacity),
		done:    make(chan struct{}),
	}
}

// Enqueue submits a request without blocking. A saturated queue rejects the
// request instead of stalling the HTTP handler.
func (w *Worker) Enqueue(req models.AnalysisRequest) error {
	select {
	case w.queue <- req:
		w.log.Infof("analysis request %s queued for user %s", req.ID, req.UserID)
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the single consumer loop. Calling Start twice is a no-op.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		w.log.Warn("analysis worker already running")
		return
	}
	w.running = true
	w.wg.Add(1)
	go w.run()
	w.log.Info("analysis worker started")
}

// Stop signals the consumer loop to exit and waits for it.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()
	w.log.Info("analysis worker stopped")
}

func (w *Worker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case req := <-w.queue:
			w.process(req)
		}
	}
}

// process handles one request: retrain if warranted, then run inference for
// the goal. Failures are logged and swallowed so one bad request cannot kill
// the loop; the request is not redelivered.
func (w *Worker) process(req models.AnalysisRequest) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Errorf("analysis request %s panicked: %v", req.ID, r)
		}
	}()

	log := w.log.WithFields(logrus.Fields{"request": req.ID, "user": req.UserID})

	if w.needsTraining(req.UserID, log) {
		switch err := w.trainer.Train(req.UserID); {
		case errors.Is(err, ErrTrainingBusy):
			// Dropped, not requeued: the next request for this user trains.
			log.Warn("training skipped: lock held by a concurrent run")
		case err != nil:
			log.Errorf("training failed: %v", err)
		}
	}

	if req.GoalID == "" {
		return
	}
	if !w.params.IsTrained(req.UserID) {
		log.Warn("inference skipped: no trained model")
		return
	}
	if _, err := w.engine.Analyze(req.UserID, req.GoalID, req.GoalDate); err != nil {
		log.Errorf("inference failed: %v", err)
	}
}

// needsTraining is true when no model exists, or the record count has at
// least doubled since the last training run and exceeds the minimum.
func (w *Worker) needsTraining(userID string, log *logrus.Entry) bool {
	if !w.params.IsTrained(userID) {
		return true
	}

	count, err := w.store.CountUserRecords(userID)
	if err != nil {
		log.Errorf("retraining check failed: %v", err)
		return false
	}
	meta, err := w.params.LoadMetadata(userID)
	if err != nil {
		log.Errorf("retraining check failed: %v", err)
		return false
	}
	if count >= meta.TrainingCount*2 && count > 5 {
		log.Infof("data grew %d -> %d, retraining", meta.TrainingCount, count)
		return true
	}
	return false
}
