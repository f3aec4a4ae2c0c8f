package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrTrainingBusy is returned when another training run holds the
// process-wide training lock. The caller is expected to skip, not retry.
var ErrTrainingBusy = errors.New("training already in progress")

// Training hyperparameters. The learning rate is deliberately aggressive:
// per-user data is sparse and convergence speed matters more than polish.
const (
	maxEpochs    = 50
	batchSize    = 32
	jitterSigma  = 0.1
	learningRate = 0.005
	weightDecay  = 1e-5
	dropoutRate  = 0.3
	patience     = 5
	minDelta     = 1e-4

	modelType = "hybrid_rnn"
)

// Synthetic training targets. There is no ground-truth label source for
// per-user goal outcomes, so every model is pulled toward the same fixed
// targets; the noise-augmented batches are what make the fit user-specific.
const (
	targetSavings = 100.0
	targetProb    = 0.8
	targetRisk    = 0.2
)

// Trainer fits a user's model from aggregated history. Training runs are
// mutually exclusive across the whole process.
type Trainer struct {
	store  DataStore
	params *ParamStore
	log    *logrus.Logger

	mu  sync.Mutex // process-wide training lock, non-blocking acquire
	now func() time.Time
}

// NewTrainer creates a trainer over the given data and parameter stores.
func NewTrainer(store DataStore, params *ParamStore, log *logrus.Logger) *Trainer {
	return &Trainer{store: store, params: params, log: log, now: time.Now}
}

// Train fits and persists the model for one user. If the training lock is
// held it returns ErrTrainingBusy immediately without queueing a retry.
func (t *Trainer) Train(userID string) error {
	if !t.mu.TryLock() {
		return ErrTrainingBusy
	}
	defer t.mu.Unlock()

	txs, err := t.store.TransactionsByUser(userID)
	if err != nil {
		return fmt.Errorf("failed to load transactions: %w", err)
	}
	recurring, err := t.store.RecurringByUser(userID)
	if err != nil {
		return fmt.Errorf("failed to load recurring transactions: %w", err)
	}

	feats := BuildFeatures(txs, recurring, t.now())
	rng := rand.New(rand.NewSource(t.now().UnixNano()))
	net := NewBudgetNet(rng)
	opt := newAdamW(learningRate, weightDecay)

	bestLoss := math.Inf(1)
	badEpochs := 0
	for epoch := 0; epoch < maxEpochs; epoch++ {
		loss := t.runEpoch(net, opt, feats, rng)
		if loss < bestLoss-minDelta {
			bestLoss = loss
			badEpochs = 0
		} else {
			badEpochs++
			if badEpochs >= patience {
				t.log.Debugf("early stopping for user %s at epoch %d (loss=%.4f)", userID, epoch, bestLoss)
				break
			}
		}
	}

	if err := t.params.SaveModel(userID, net); err != nil {
		return fmt.Errorf("failed to persist model: %w", err)
	}
	meta := &Metadata{
		LastTrainDate: t.now(),
		TrainingCount: len(txs) + len(recurring),
		ModelType:     modelType,
	}
	if err := t.params.SaveMetadata(userID, meta); err != nil {
		return fmt.Errorf("failed to persist metadata: %w", err)
	}

	t.log.Infof("training completed for user %s (%d data points, best loss %.4f)",
		userID, meta.TrainingCount, bestLoss)
	return nil
}

// runEpoch trains on one synthetic batch: the user's single sample repeated
// batchSize times with Gaussian jitter on both inputs, which stands in for a
// real dataset in the single-sample regime.
func (t *Trainer) runEpoch(net *BudgetNet, opt *adamW, feats *Features, rng *rand.Rand) float64 {
	grads := newNetGrads()
	total := 0.0

	seq := make([][]float64, SeqLen)
	static := make([]float64, StaticInputSize)
	mask := make([]float64, fusionSize)
	for i := range seq {
		seq[i] = make([]float64, SeqInputSize)
	}

	for b := 0; b < batchSize; b++ {
		for i := 0; i < SeqLen; i++ {
			for j := 0; j < SeqInputSize; j++ {
				seq[i][j] = feats.Sequence[i][j] + rng.NormFloat64()*jitterSigma
			}
		}
		for i := 0; i < StaticInputSize; i++ {
			static[i] = feats.Static[i] + rng.NormFloat64()*jitterSigma
		}
		for k := range mask {
			if rng.Float64() < dropoutRate {
				mask[k] = 0
			} else {
				mask[k] = 1 / (1 - dropoutRate)
			}
		}

		cache := net.forward(seq, static, mask)
		total += net.backward(cache, targetSavings, targetProb, targetRisk, mask, grads)
	}

	opt.update(net, grads, 1.0/float64(batchSize))
	return total / float64(batchSize)
}
