package strategy

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/your-org/regime-switch-bot/internal/config"
)

// Params holds numeric strategy parameters keyed by their yaml name, e.g.
// "period" or "oversold" for rsi.
type Params map[string]float64

// String renders the parameters in key order.
func (p Params) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, p[k])
	}
	return strings.Join(parts, " ")
}

// Factory builds a strategy from a parameter set.
type Factory func(Params) (Strategy, error)

// WithParams returns a copy of cfg with params written into the section of
// strategy id. Only existing numeric keys can be set, and integer keys only
// accept whole numbers.
func WithParams(cfg config.StrategiesConfig, id string, params Params) (config.StrategiesConfig, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return cfg, fmt.Errorf("encode strategies config: %w", err)
	}
	var sections map[string]map[string]any
	if err := yaml.Unmarshal(raw, &sections); err != nil {
		return cfg, fmt.Errorf("decode strategies config: %w", err)
	}
	section, ok := sections[id]
	if !ok {
		return cfg, fmt.Errorf("%w: %q", ErrUnknownStrategy, id)
	}
	for k, v := range params {
		cur, ok := section[k]
		if !ok {
			return cfg, fmt.Errorf("strategy %s has no parameter %q", id, k)
		}
		switch cur.(type) {
		case int, float64:
		default:
			return cfg, fmt.Errorf("strategy %s parameter %q is not numeric", id, k)
		}
		section[k] = v
	}

	raw, err = yaml.Marshal(sections)
	if err != nil {
		return cfg, fmt.Errorf("encode %s parameters: %w", id, err)
	}
	var out config.StrategiesConfig
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return cfg, fmt.Errorf("apply %s parameters %s: %w", id, params, err)
	}
	return out, nil
}

// ParamFactory returns a Factory that builds strategy id from base with each
// parameter set applied on top.
func ParamFactory(base config.StrategiesConfig, id string) Factory {
	return func(p Params) (Strategy, error) {
		cfg, err := WithParams(base, id, p)
		if err != nil {
			return nil, err
		}
		return NewRegistry(cfg).Get(id)
	}
}
