package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTrainPersistsArtifacts(t *testing.T) {
	store := newFakeStore()
	steadyHistory(store, "u1", 10000, 6000)

	params, err := NewParamStore(t.TempDir())
	require.NoError(t, err)

	trainer := NewTrainer(store, params, quietLogger())
	trainer.now = func() time.Time { return testNow }

	require.False(t, params.IsTrained("u1"))
	require.NoError(t, trainer.Train("u1"))
	require.True(t, params.IsTrained("u1"))

	meta, err := params.LoadMetadata("u1")
	require.NoError(t, err)
	require.Equal(t, len(store.txs["u1"]), meta.TrainingCount)
	require.Equal(t, "hybrid_rnn", meta.ModelType)
	require.True(t, meta.LastTrainDate.Equal(testNow))

	net, err := params.LoadModel("u1")
	require.NoError(t, err)
	seq, static := sampleInputs()
	_, prob, risk := net.Infer(seq, static)
	require.GreaterOrEqual(t, prob, 0.0)
	require.LessOrEqual(t, prob, 1.0)
	require.GreaterOrEqual(t, risk, 0.0)
	require.LessOrEqual(t, risk, 1.0)
}

func TestTrainEmptyHistory(t *testing.T) {
	store := newFakeStore()
	params, err := NewParamStore(t.TempDir())
	require.NoError(t, err)

	trainer := NewTrainer(store, params, quietLogger())
	require.NoError(t, trainer.Train("fresh"))
	require.True(t, params.IsTrained("fresh"))
}

func TestTrainBusyWhenLockHeld(t *testing.T) {
	store := newFakeStore()
	steadyHistory(store, "u1", 10000, 6000)

	params, err := NewParamStore(t.TempDir())
	require.NoError(t, err)
	trainer := NewTrainer(store, params, quietLogger())

	trainer.mu.Lock()
	err = trainer.Train("u1")
	require.ErrorIs(t, err, ErrTrainingBusy)
	require.False(t, params.IsTrained("u1"), "a rejected run must not persist anything")
	trainer.mu.Unlock()

	// The lock is released after a run, so the next attempt succeeds.
	require.NoError(t, trainer.Train("u1"))
	require.True(t, params.IsTrained("u1"))
}
