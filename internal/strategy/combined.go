package strategy

import (
	"fmt"
	"strings"

	"github.com/your-org/regime-switch-bot/internal/config"
	"github.com/your-org/regime-switch-bot/internal/market"
)

// Combined is a weighted vote of member strategies. It needs at least
// MinSignals directional members and a strict majority of weighted strength.
type Combined struct {
	members    []Strategy
	weights    map[string]float64
	minSignals int
}

// NewCombined creates the combined strategy over members. Members without a configured
// weight count with weight 1.
func NewCombined(cfg config.CombinedConf, members []Strategy) *Combined {
	minSignals := cfg.MinSignals
	if minSignals <= 0 {
		minSignals = 1
	}
	return &Combined{members: members, weights: cfg.Weights, minSignals: minSignals}
}

func (s *Combined) ID() string { return IDCombined }

func (s *Combined) MinBars() int {
	n := 0
	for _, m := range s.members {
		n = max(n, m.MinBars())
	}
	return n
}

func (s *Combined) weight(id string) float64 {
	if w, ok := s.weights[id]; ok {
		return w
	}
	return 1
}

func (s *Combined) GenerateSignal(bars market.Series) Signal {
	var long, short, total float64
	var votes []string
	for _, m := range s.members {
		sig := m.GenerateSignal(bars)
		if sig.IsNone() {
			continue
		}
		w := s.weight(m.ID())
		switch sig.Type {
		case SignalLong:
			long += sig.Strength * w
		case SignalShort:
			short += sig.Strength * w
		}
		total += w
		votes = append(votes, fmt.Sprintf("%s:%s", m.ID(), sig.Type))
	}

	if len(votes) < s.minSignals {
		return none(bars, fmt.Sprintf("insufficient signals (%d/%d)", len(votes), s.minSignals))
	}
	summary := strings.Join(votes, ", ")
	switch {
	case long > short && long > 0:
		return directional(bars, SignalLong, long/total, fmt.Sprintf("combined LONG (%d signals: %s)", len(votes), summary))
	case short > long && short > 0:
		return directional(bars, SignalShort, short/total, fmt.Sprintf("combined SHORT (%d signals: %s)", len(votes), summary))
	}
	return none(bars, fmt.Sprintf("conflicting signals (L:%.2f S:%.2f)", long, short))
}
