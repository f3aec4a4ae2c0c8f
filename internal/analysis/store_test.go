package analysis

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParamStoreModelRoundtrip(t *testing.T) {
	store, err := NewParamStore(t.TempDir())
	require.NoError(t, err)

	require.False(t, store.IsTrained("u1"))

	net := NewBudgetNet(rand.New(rand.NewSource(3)))
	require.NoError(t, store.SaveModel("u1", net))
	require.True(t, store.IsTrained("u1"))
	require.False(t, store.IsTrained("u2"))

	loaded, err := store.LoadModel("u1")
	require.NoError(t, err)

	seq, static := sampleInputs()
	s1, p1, r1 := net.Infer(seq, static)
	s2, p2, r2 := loaded.Infer(seq, static)
	require.InDelta(t, s1, s2, 1e-12)
	require.InDelta(t, p1, p2, 1e-12)
	require.InDelta(t, r1, r2, 1e-12)
}

func TestParamStoreMetadata(t *testing.T) {
	store, err := NewParamStore(t.TempDir())
	require.NoError(t, err)

	// Missing metadata reads back as the zero value, not an error.
	meta, err := store.LoadMetadata("u1")
	require.NoError(t, err)
	require.Zero(t, meta.TrainingCount)

	want := &Metadata{
		LastTrainDate: time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC),
		TrainingCount: 17,
		ModelType:     "hybrid_rnn",
	}
	require.NoError(t, store.SaveMetadata("u1", want))

	got, err := store.LoadMetadata("u1")
	require.NoError(t, err)
	require.Equal(t, want.TrainingCount, got.TrainingCount)
	require.Equal(t, want.ModelType, got.ModelType)
	require.True(t, want.LastTrainDate.Equal(got.LastTrainDate))
}

func TestParamStoreLoadMissingModel(t *testing.T) {
	store, err := NewParamStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.LoadModel("ghost")
	require.Error(t, err)
}
