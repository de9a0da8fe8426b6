package strategy

import (
	"context"
	"strings"
	"time"

	"github.com/your-org/regime-switch-bot/internal/market"
	"github.com/your-org/regime-switch-bot/pkg/logger"
)

// PatternDetector is an external chart-pattern classifier.
type PatternDetector interface {
	DetectPattern(ctx context.Context, chart []byte) (label string, confidence float64, err error)
}

// ChartRenderer turns a bar window into the image a PatternDetector consumes.
type ChartRenderer interface {
	Render(bars market.Series) ([]byte, error)
}

// PatternFilter suppresses signals that a confident chart pattern contradicts.
// Detector failures let the underlying signal through.
type PatternFilter struct {
	Strategy
	renderer      ChartRenderer
	detector      PatternDetector
	minConfidence float64
	timeout       time.Duration
}

// WithPatternFilter wraps s with a pattern veto.
func WithPatternFilter(s Strategy, r ChartRenderer, d PatternDetector, minConfidence float64, timeout time.Duration) *PatternFilter {
	return &PatternFilter{Strategy: s, renderer: r, detector: d, minConfidence: minConfidence, timeout: timeout}
}

// PatternBias maps a pattern label to a direction: labels containing "bull" are long,
// labels containing "bear" are short.
func PatternBias(label string) SignalType {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "bull"):
		return SignalLong
	case strings.Contains(l, "bear"):
		return SignalShort
	}
	return SignalNone
}

func (p *PatternFilter) GenerateSignal(bars market.Series) Signal {
	sig := p.Strategy.GenerateSignal(bars)
	if sig.IsNone() {
		return sig
	}
	chart, err := p.renderer.Render(bars)
	if err != nil {
		logger.Warnf("[Pattern] render failed: %v", err)
		return sig
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	label, conf, err := p.detector.DetectPattern(ctx, chart)
	if err != nil {
		logger.Warnf("[Pattern] detection failed: %v", err)
		return sig
	}
	if conf >= p.minConfidence && PatternBias(label) == sig.Type.Opposite() {
		return none(bars, "vetoed by pattern "+label)
	}
	return sig
}
