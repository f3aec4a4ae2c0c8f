package analysis

import (
	"math"
	"math/rand"
)

// Hidden widths of the two branches and the fusion stack.
const (
	hiddenSize = 32
	fusionSize = 32
)

// BudgetNet is the hybrid two-branch predictive model. A tanh recurrent
// encoder consumes the 6x3 monthly sequence and its final hidden state is
// fused with a GELU projection of the 8 static features; three heads emit a
// raw savings regression and two sigmoid-squashed scalars for probability
// and risk. Fields are exported for JSON persistence.
type BudgetNet struct {
	// Recurrent branch
	Wxh [][]float64 `json:"wxh"` // SeqInputSize x hiddenSize
	Whh [][]float64 `json:"whh"` // hiddenSize x hiddenSize
	Bh  []float64   `json:"bh"`

	// Static branch
	Ws [][]float64 `json:"ws"` // StaticInputSize x hiddenSize
	Bs []float64   `json:"bs"`

	// Fusion
	Wf [][]float64 `json:"wf"` // 2*hiddenSize x fusionSize
	Bf []float64   `json:"bf"`

	// Heads
	WSav  []float64 `json:"w_sav"`
	BSav  float64   `json:"b_sav"`
	WProb []float64 `json:"w_prob"`
	BProb float64   `json:"b_prob"`
	WRisk []float64 `json:"w_risk"`
	BRisk float64   `json:"b_risk"`
}

// NewBudgetNet initializes weights with scaled uniform noise (Xavier-style).
func NewBudgetNet(rng *rand.Rand) *BudgetNet {
	return &BudgetNet{
		Wxh:   randMat(rng, SeqInputSize, hiddenSize),
		Whh:   randMat(rng, hiddenSize, hiddenSize),
		Bh:    make([]float64, hiddenSize),
		Ws:    randMat(rng, StaticInputSize, hiddenSize),
		Bs:    make([]float64, hiddenSize),
		Wf:    randMat(rng, 2*hiddenSize, fusionSize),
		Bf:    make([]float64, fusionSize),
		WSav:  randVec(rng, fusionSize),
		WProb: randVec(rng, fusionSize),
		WRisk: randVec(rng, fusionSize),
	}
}

func randMat(rng *rand.Rand, rows, cols int) [][]float64 {
	scale := math.Sqrt(1.0 / float64(rows))
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			m[i][j] = (rng.Float64()*2 - 1) * scale
		}
	}
	return m
}

func randVec(rng *rand.Rand, n int) []float64 {
	scale := math.Sqrt(1.0 / float64(n))
	v := make([]float64, n)
	for i := range v {
		v[i] = (rng.Float64()*2 - 1) * scale
	}
	return v
}

// Infer runs a deterministic forward pass (dropout disabled).
// Probability and risk are in [0,1]; savings is an unbounded regression value.
func (n *BudgetNet) Infer(seq [][]float64, static []float64) (savings, probability, risk float64) {
	c := n.forward(seq, static, nil)
	return c.savings, sigmoid(c.zProb), sigmoid(c.zRisk)
}

// forwardCache keeps every intermediate needed by the backward pass.
type forwardCache struct {
	seq    [][]float64
	static []float64

	hs [][]float64 // hidden states, hs[0] is the zero initial state

	zStatic []float64
	aStatic []float64

	combined []float64
	zFusion  []float64
	aFusion  []float64 // post-GELU, post-dropout

	savings float64
	zProb   float64
	zRisk   float64
}

// forward evaluates the network. dropMask, when non-nil, is applied to the
// fusion activation (inverted dropout, so inference needs no rescaling).
func (n *BudgetNet) forward(seq [][]float64, static []float64, dropMask []float64) *forwardCache {
	c := &forwardCache{seq: seq, static: static}

	h := make([]float64, hiddenSize)
	c.hs = append(c.hs, h)
	for t := 0; t < len(seq); t++ {
		next := make([]float64, hiddenSize)
		for i := 0; i < hiddenSize; i++ {
			z := n.Bh[i]
			for j := 0; j < SeqInputSize; j++ {
				z += n.Wxh[j][i] * seq[t][j]
			}
			for j := 0; j < hiddenSize; j++ {
				z += n.Whh[j][i] * h[j]
			}
			next[i] = math.Tanh(z)
		}
		h = next
		c.hs = append(c.hs, h)
	}

	c.zStatic = make([]float64, hiddenSize)
	c.aStatic = make([]float64, hiddenSize)
	for i := 0; i < hiddenSize; i++ {
		z := n.Bs[i]
		for j := 0; j < StaticInputSize; j++ {
			z += n.Ws[j][i] * static[j]
		}
		c.zStatic[i] = z
		c.aStatic[i] = gelu(z)
	}

	c.combined = make([]float64, 2*hiddenSize)
	copy(c.combined, h)
	copy(c.combined[hiddenSize:], c.aStatic)

	c.zFusion = make([]float64, fusionSize)
	c.aFusion = make([]float64, fusionSize)
	for k := 0; k < fusionSize; k++ {
		z := n.Bf[k]
		for j := 0; j < 2*hiddenSize; j++ {
			z += n.Wf[j][k] * c.combined[j]
		}
		c.zFusion[k] = z
		a := gelu(z)
		if dropMask != nil {
			a *= dropMask[k]
		}
		c.aFusion[k] = a
	}

	c.savings = n.BSav
	c.zProb = n.BProb
	c.zRisk = n.BRisk
	for k := 0; k < fusionSize; k++ {
		c.savings += n.WSav[k] * c.aFusion[k]
		c.zProb += n.WProb[k] * c.aFusion[k]
		c.zRisk += n.WRisk[k] * c.aFusion[k]
	}
	return c
}

// netGrads mirrors the parameter shapes of BudgetNet.
type netGrads struct {
	Wxh [][]float64
	Whh [][]float64
	Bh  []float64
	Ws  [][]float64
	Bs  []float64
	Wf  [][]float64
	Bf  []float64

	WSav  []float64
	BSav  float64
	WProb []float64
	BProb float64
	WRisk []float64
	BRisk float64
}

func newNetGrads() *netGrads {
	return &netGrads{
		Wxh:   zeroMat(SeqInputSize, hiddenSize),
		Whh:   zeroMat(hiddenSize, hiddenSize),
		Bh:    make([]float64, hiddenSize),
		Ws:    zeroMat(StaticInputSize, hiddenSize),
		Bs:    make([]float64, hiddenSize),
		Wf:    zeroMat(2*hiddenSize, fusionSize),
		Bf:    make([]float64, fusionSize),
		WSav:  make([]float64, fusionSize),
		WProb: make([]float64, fusionSize),
		WRisk: make([]float64, fusionSize),
	}
}

func zeroMat(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

// backward accumulates gradients of the composite loss (MSE on the savings
// head plus BCE on the probability and risk heads) into g and returns the
// sample loss. dropMask must match the mask used in the forward pass.
func (n *BudgetNet) backward(c *forwardCache, ySav, yProb, yRisk float64, dropMask []float64, g *netGrads) float64 {
	prob := sigmoid(c.zProb)
	risk := sigmoid(c.zRisk)

	loss := (c.savings-ySav)*(c.savings-ySav) + bce(prob, yProb) + bce(risk, yRisk)

	dSav := 2 * (c.savings - ySav)
	dzProb := prob - yProb
	dzRisk := risk - yRisk

	g.BSav += dSav
	g.BProb += dzProb
	g.BRisk += dzRisk

	dAf := make([]float64, fusionSize)
	for k := 0; k < fusionSize; k++ {
		g.WSav[k] += dSav * c.aFusion[k]
		g.WProb[k] += dzProb * c.aFusion[k]
		g.WRisk[k] += dzRisk * c.aFusion[k]
		dAf[k] = dSav*n.WSav[k] + dzProb*n.WProb[k] + dzRisk*n.WRisk[k]
		if dropMask != nil {
			dAf[k] *= dropMask[k]
		}
	}

	dCombined := make([]float64, 2*hiddenSize)
	for k := 0; k < fusionSize; k++ {
		dz := dAf[k] * geluPrime(c.zFusion[k])
		g.Bf[k] += dz
		for j := 0; j < 2*hiddenSize; j++ {
			g.Wf[j][k] += dz * c.combined[j]
			dCombined[j] += n.Wf[j][k] * dz
		}
	}

	// Static branch
	for i := 0; i < hiddenSize; i++ {
		dz := dCombined[hiddenSize+i] * geluPrime(c.zStatic[i])
		g.Bs[i] += dz
		for j := 0; j < StaticInputSize; j++ {
			g.Ws[j][i] += dz * c.static[j]
		}
	}

	// Recurrent branch, backpropagation through time
	dH := make([]float64, hiddenSize)
	copy(dH, dCombined[:hiddenSize])
	for t := len(c.seq) - 1; t >= 0; t-- {
		h := c.hs[t+1]
		hPrev := c.hs[t]
		dHPrev := make([]float64, hiddenSize)
		for i := 0; i < hiddenSize; i++ {
			dz := dH[i] * (1 - h[i]*h[i])
			g.Bh[i] += dz
			for j := 0; j < SeqInputSize; j++ {
				g.Wxh[j][i] += dz * c.seq[t][j]
			}
			for j := 0; j < hiddenSize; j++ {
				g.Whh[j][i] += dz * hPrev[j]
				dHPrev[j] += n.Whh[j][i] * dz
			}
		}
		dH = dHPrev
	}

	return loss
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func bce(p, y float64) float64 {
	const eps = 1e-7
	p = clamp(p, eps, 1-eps)
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}

const geluCoef = 0.044715

// gelu uses the tanh approximation.
func gelu(x float64) float64 {
	u := math.Sqrt(2/math.Pi) * (x + geluCoef*x*x*x)
	return 0.5 * x * (1 + math.Tanh(u))
}

func geluPrime(x float64) float64 {
	k := math.Sqrt(2 / math.Pi)
	u := k * (x + geluCoef*x*x*x)
	t := math.Tanh(u)
	return 0.5*(1+t) + 0.5*x*(1-t*t)*k*(1+3*geluCoef*x*x)
}
