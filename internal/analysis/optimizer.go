package analysis

import "math"

// adamW is an adaptive-moment optimizer with decoupled weight decay.
type adamW struct {
	lr          float64
	beta1       float64
	beta2       float64
	eps         float64
	weightDecay float64

	step int
	m    *netGrads
	v    *netGrads
}

func newAdamW(lr, weightDecay float64) *adamW {
	return &adamW{
		lr:          lr,
		beta1:       0.9,
		beta2:       0.999,
		eps:         1e-8,
		weightDecay: weightDecay,
		m:           newNetGrads(),
		v:           newNetGrads(),
	}
}

// update applies one optimizer step using accumulated gradients scaled by invBatch.
func (o *adamW) update(n *BudgetNet, g *netGrads, invBatch float64) {
	o.step++
	b1c := 1 - math.Pow(o.beta1, float64(o.step))
	b2c := 1 - math.Pow(o.beta2, float64(o.step))

	o.mats(n, g, invBatch, b1c, b2c)
	o.vecs(n, g, invBatch, b1c, b2c)

	o.scalar(&n.BSav, g.BSav*invBatch, &o.m.BSav, &o.v.BSav, b1c, b2c)
	o.scalar(&n.BProb, g.BProb*invBatch, &o.m.BProb, &o.v.BProb, b1c, b2c)
	o.scalar(&n.BRisk, g.BRisk*invBatch, &o.m.BRisk, &o.v.BRisk, b1c, b2c)
}

func (o *adamW) mats(n *BudgetNet, g *netGrads, invBatch, b1c, b2c float64) {
	params := [][][]float64{n.Wxh, n.Whh, n.Ws, n.Wf}
	grads := [][][]float64{g.Wxh, g.Whh, g.Ws, g.Wf}
	ms := [][][]float64{o.m.Wxh, o.m.Whh, o.m.Ws, o.m.Wf}
	vs := [][][]float64{o.v.Wxh, o.v.Whh, o.v.Ws, o.v.Wf}
	for p := range params {
		for i := range params[p] {
			o.row(params[p][i], grads[p][i], ms[p][i], vs[p][i], invBatch, b1c, b2c, true)
		}
	}
}

func (o *adamW) vecs(n *BudgetNet, g *netGrads, invBatch, b1c, b2c float64) {
	params := [][]float64{n.Bh, n.Bs, n.Bf, n.WSav, n.WProb, n.WRisk}
	grads := [][]float64{g.Bh, g.Bs, g.Bf, g.WSav, g.WProb, g.WRisk}
	ms := [][]float64{o.m.Bh, o.m.Bs, o.m.Bf, o.m.WSav, o.m.WProb, o.m.WRisk}
	vs := [][]float64{o.v.Bh, o.v.Bs, o.v.Bf, o.v.WSav, o.v.WProb, o.v.WRisk}
	// Biases are not decayed; the head weight vectors are.
	decay := []bool{false, false, false, true, true, true}
	for p := range params {
		o.row(params[p], grads[p], ms[p], vs[p], invBatch, b1c, b2c, decay[p])
	}
}

func (o *adamW) row(p, g, m, v []float64, invBatch, b1c, b2c float64, decay bool) {
	for i := range p {
		grad := g[i] * invBatch
		m[i] = o.beta1*m[i] + (1-o.beta1)*grad
		v[i] = o.beta2*v[i] + (1-o.beta2)*grad*grad
		mHat := m[i] / b1c
		vHat := v[i] / b2c
		if decay {
			p[i] -= o.lr * o.weightDecay * p[i]
		}
		p[i] -= o.lr * mHat / (math.Sqrt(vHat) + o.eps)
	}
}

func (o *adamW) scalar(p *float64, grad float64, m, v *float64, b1c, b2c float64) {
	*m = o.beta1**m + (1-o.beta1)*grad
	*v = o.beta2**v + (1-o.beta2)*grad*grad
	*p -= o.lr * (*m / b1c) / (math.Sqrt(*v/b2c) + o.eps)
}
