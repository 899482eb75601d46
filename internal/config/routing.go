package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Handling strategies for inbound topics.
const (
	StrategyDirect   = "direct"
	StrategyDebounce = "debounce"
	StrategySchedule = "schedule"
)

// Routing maps webhook topics to handling strategies.
type Routing map[string]string

// DefaultRouting is the built-in topic map, used when no routing file is
// configured.
func DefaultRouting() Routing {
	return Routing{
		"orders/create":       StrategyDirect,
		"refunds/create":      StrategyDirect,
		"checkouts/create":    StrategyDebounce,
		"checkouts/update":    StrategyDebounce,
		"fulfillments/update": StrategySchedule,
	}
}

// LoadRouting reads a yaml topic map, e.g.:
//
//	topics:
//	  orders/create: direct
//	  checkouts/update: debounce
//
// An empty path returns DefaultRouting.
func LoadRouting(path string) (Routing, error) {
	if path == "" {
		return DefaultRouting(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routing file: %w", err)
	}
	var doc struct {
		Topics map[string]string `yaml:"topics"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse routing file: %w", err)
	}
	if len(doc.Topics) == 0 {
		return nil, fmt.Errorf("routing file %s declares no topics", path)
	}
	routing := Routing{}
	for topic, strategy := range doc.Topics {
		switch strategy {
		case StrategyDirect, StrategyDebounce, StrategySchedule:
			routing[topic] = strategy
		default:
			return nil, fmt.Errorf("topic %s: unknown strategy %q", topic, strategy)
		}
	}
	return routing, nil
}
