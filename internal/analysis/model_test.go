package analysis

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleInputs() (seq [][]float64, static []float64) {
	seq = make([][]float64, SeqLen)
	for i := range seq {
		seq[i] = []float64{5000, 3000, 0.4}
	}
	static = []float64{3.0, 0.7, 1.6, 1.8, 8.5, 8.0, 0.1, 0.6}
	return seq, static
}

func TestInferDeterministic(t *testing.T) {
	net := NewBudgetNet(rand.New(rand.NewSource(1)))
	seq, static := sampleInputs()

	s1, p1, r1 := net.Infer(seq, static)
	s2, p2, r2 := net.Infer(seq, static)
	require.Equal(t, s1, s2)
	require.Equal(t, p1, p2)
	require.Equal(t, r1, r2)
}

func TestInferBounds(t *testing.T) {
	seq, static := sampleInputs()
	for seed := int64(0); seed < 5; seed++ {
		net := NewBudgetNet(rand.New(rand.NewSource(seed)))
		savings, prob, risk := net.Infer(seq, static)
		require.False(t, math.IsNaN(savings) || math.IsInf(savings, 0))
		require.GreaterOrEqual(t, prob, 0.0)
		require.LessOrEqual(t, prob, 1.0)
		require.GreaterOrEqual(t, risk, 0.0)
		require.LessOrEqual(t, risk, 1.0)
	}
}

func TestBackwardProducesFiniteLoss(t *testing.T) {
	net := NewBudgetNet(rand.New(rand.NewSource(7)))
	seq, static := sampleInputs()

	grads := newNetGrads()
	cache := net.forward(seq, static, nil)
	loss := net.backward(cache, 100, 0.8, 0.2, nil, grads)

	require.False(t, math.IsNaN(loss) || math.IsInf(loss, 0))
	require.Greater(t, loss, 0.0)
}

func TestTrainingStepReducesLoss(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	net := NewBudgetNet(rng)
	opt := newAdamW(0.01, 0)
	seq, static := sampleInputs()

	lossAt := func() float64 {
		cache := net.forward(seq, static, nil)
		prob := sigmoid(cache.zProb)
		risk := sigmoid(cache.zRisk)
		return (cache.savings-100)*(cache.savings-100) + bce(prob, 0.8) + bce(risk, 0.2)
	}

	before := lossAt()
	for i := 0; i < 200; i++ {
		grads := newNetGrads()
		cache := net.forward(seq, static, nil)
		net.backward(cache, 100, 0.8, 0.2, nil, grads)
		opt.update(net, grads, 1)
	}
	after := lossAt()

	require.Less(t, after, before, "repeated gradient steps on a fixed sample should reduce the loss")
}
