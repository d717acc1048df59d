package model

// ContentWeights are the lexical marker weights detected in a memory's
// content. Each weight is non-negative; the scoring engine clamps the sum.
type ContentWeights struct {
	Identity   float64 `json:"identity"`
	Preference float64 `json:"preference"`
	Belief     float64 `json:"belief"`
	Factual    float64 `json:"factual"`
	Pronoun    float64 `json:"pronoun"`
}

// Sum returns the total semantic weight.
func (w ContentWeights) Sum() float64 {
	return w.Identity + w.Preference + w.Belief + w.Factual + w.Pronoun
}
