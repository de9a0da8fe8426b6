// Package selector scores strategies against the current market condition.
package selector

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/your-org/regime-switch-bot/internal/config"
	"github.com/your-org/regime-switch-bot/internal/market"
)

// Points per dimension. Partial credit is half.
const (
	volatilityPoints = 30.0
	trendPoints      = 40.0
	volumePoints     = 30.0
)

// ErrNoCandidates is returned by New when there is nothing to rank.
var ErrNoCandidates = errors.New("selector: no candidate strategies")

// Score is the compatibility of one strategy with a Condition.
type Score struct {
	StrategyID string   `json:"strategy_id"`
	Score      float64  `json:"score"`
	Rationale  []string `json:"rationale"`
}

func (s Score) String() string {
	return fmt.Sprintf("%s: %.1f points", s.StrategyID, s.Score)
}

// Selector ranks strategies. It is read-only after construction.
type Selector struct {
	rules      map[string]Rule
	weights    map[string]float64
	priority   map[string]int
	candidates []string
	fallback   string
}

// New creates a Selector over rules. candidates lists the strategy ids to rank; ids
// without a rule receive the fallback strategy's weighted score. A nil candidate list
// ranks exactly the rule table. An empty candidate set is ErrNoCandidates.
func New(cfg config.SelectorConfig, rules []Rule, fallback string, candidates []string) (*Selector, error) {
	s := &Selector{
		rules:    make(map[string]Rule, len(rules)),
		weights:  cfg.Weights,
		priority: make(map[string]int),
		fallback: fallback,
	}
	order := make([]string, 0, len(rules))
	for _, r := range rules {
		s.rules[r.StrategyID] = r
		order = append(order, r.StrategyID)
	}
	if len(cfg.Priority) > 0 {
		order = cfg.Priority
	}
	for i, id := range order {
		if _, ok := s.priority[id]; !ok {
			s.priority[id] = i
		}
	}

	if candidates == nil {
		for _, r := range rules {
			candidates = append(candidates, r.StrategyID)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	s.candidates = append([]string(nil), candidates...)
	return s, nil
}

// Fallback returns the conservative default strategy id.
func (s *Selector) Fallback() string { return s.fallback }

func (s *Selector) weight(id string) float64 {
	if w, ok := s.weights[id]; ok {
		return w
	}
	return 1
}

// ScoreFor scores a single strategy. An id without a rule yields exactly the
// weighted fallback score.
func (s *Selector) ScoreFor(id string, cond market.Condition) Score {
	rule, ok := s.rules[id]
	if !ok {
		if _, fbRule := s.rules[s.fallback]; !fbRule {
			return Score{StrategyID: id, Rationale: []string{fmt.Sprintf("no rule for %s", id)}}
		}
		fb := s.ScoreFor(s.fallback, cond)
		return Score{
			StrategyID: id,
			Score:      fb.Score,
			Rationale:  append([]string{fmt.Sprintf("no rule for %s, using %s score", id, s.fallback)}, fb.Rationale...),
		}
	}

	var points float64
	var why []string

	switch {
	case containsVolatility(rule.Volatility, cond.Volatility):
		points += volatilityPoints
		why = append(why, fmt.Sprintf("Volatility %s matches", cond.Volatility))
	case adjacentVolatility(rule.Volatility, cond.Volatility):
		points += volatilityPoints / 2
		why = append(why, fmt.Sprintf("Volatility %s partially matches", cond.Volatility))
	}

	switch {
	case containsTrend(rule.Trend, cond.Trend):
		points += trendPoints
		why = append(why, fmt.Sprintf("Trend %s matches", cond.Trend))
	case compatibleTrend(rule.Trend, cond.Trend):
		points += trendPoints / 2
		why = append(why, fmt.Sprintf("Trend %s compatible", cond.Trend))
	}

	switch {
	case containsVolume(rule.Volume, cond.Volume):
		points += volumePoints
		why = append(why, fmt.Sprintf("Volume %s matches", cond.Volume))
	case adjacentVolume(rule.Volume, cond.Volume):
		points += volumePoints / 2
		why = append(why, fmt.Sprintf("Volume %s partially matches", cond.Volume))
	}

	w := s.weight(id)
	if w != 1 {
		why = append(why, fmt.Sprintf("Weight adjustment: %gx", w))
	}
	return Score{StrategyID: id, Score: math.Max(0, math.Min(100, points*w)), Rationale: why}
}

// Rank scores every candidate, highest first. Ties keep priority order.
func (s *Selector) Rank(cond market.Condition) []Score {
	scores := make([]Score, 0, len(s.candidates))
	for _, id := range s.candidates {
		scores = append(scores, s.ScoreFor(id, cond))
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return s.less(scores[i].StrategyID, scores[j].StrategyID)
	})
	return scores
}

func (s *Selector) less(a, b string) bool {
	pa, okA := s.priority[a]
	pb, okB := s.priority[b]
	switch {
	case okA && okB:
		return pa < pb
	case okA != okB:
		return okA
	}
	return a < b
}

// Best returns the top ranked score.
func (s *Selector) Best(cond market.Condition) Score {
	return s.Rank(cond)[0]
}

// Recommend returns the top ranked score, or the fallback's score when the
// top is below threshold.
func (s *Selector) Recommend(cond market.Condition, threshold float64) Score {
	best := s.Best(cond)
	if best.Score >= threshold {
		return best
	}
	fb := s.ScoreFor(s.fallback, cond)
	fb.Rationale = append(fb.Rationale, fmt.Sprintf("best %s below threshold %.0f", best, threshold))
	return fb
}

func containsVolatility(set []market.VolatilityLevel, v market.VolatilityLevel) bool {
	for _, l := range set {
		if l == v {
			return true
		}
	}
	return false
}

func adjacentVolatility(set []market.VolatilityLevel, v market.VolatilityLevel) bool {
	for _, l := range set {
		if d := l.Rank() - v.Rank(); v.Rank() >= 0 && (d == 1 || d == -1) {
			return true
		}
	}
	return false
}

func containsVolume(set []market.VolumeLevel, v market.VolumeLevel) bool {
	for _, l := range set {
		if l == v {
			return true
		}
	}
	return false
}

func adjacentVolume(set []market.VolumeLevel, v market.VolumeLevel) bool {
	for _, l := range set {
		if d := l.Rank() - v.Rank(); v.Rank() >= 0 && (d == 1 || d == -1) {
			return true
		}
	}
	return false
}

func containsTrend(set []market.TrendLevel, t market.TrendLevel) bool {
	for _, l := range set {
		if l == t {
			return true
		}
	}
	return false
}

// compatibleTrend reports whether t shares a direction with a preferred trend.
func compatibleTrend(set []market.TrendLevel, t market.TrendLevel) bool {
	dir := t.Direction()
	if dir == 0 {
		return false
	}
	for _, l := range set {
		if l.Direction() == dir {
			return true
		}
	}
	return false
}
