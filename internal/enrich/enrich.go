package enrich

import (
	"context"
	"fmt"
	"strings"

	"citegraph/internal/logger"
	"citegraph/internal/providers"
)

const DefaultDomain = "Computer Science"

const (
	StrategyMultiStep  = "multi_step"
	StrategySingleShot = "single_shot"
	StrategyNone       = "none"
	StrategyDefault    = "default"
)

type Input struct {
	PaperID  string
	Title    string
	Authors  []string
	Abstract string
	FullText string
	// Sections holds pre-extracted sections keyed by upper-case name
	// (ABSTRACT, INTRODUCTION, METHODOLOGY, RESULTS, CONCLUSION).
	Sections map[string]string
}

type Result struct {
	Summary          string             `json:"ai_summary"`
	Domain           string             `json:"domain"`
	KeyContributions []string           `json:"key_contributions"`
	Methodology      string             `json:"methodology"`
	Confidence       map[string]float64 `json:"confidence,omitempty"`
	Strategy         string             `json:"strategy"`
}

// Enricher derives summary, domain, contributions and methodology for a paper.
type Enricher interface {
	Name() string
	Enrich(ctx context.Context, in Input) (Result, error)
}

// Default is the non-AI result used when every strategy failed.
func Default(in Input) Result {
	return Result{
		Summary:          in.Abstract,
		Domain:           DefaultDomain,
		KeyContributions: []string{},
		Strategy:         StrategyDefault,
	}
}

// Chain tries each strategy in order and always ends in Default.
type Chain struct {
	tiers []Enricher
	log   *logger.Logger
}

func NewChain(log *logger.Logger, tiers ...Enricher) *Chain {
	if log == nil {
		log = logger.Nop()
	}
	return &Chain{tiers: tiers, log: log}
}

// NewFromStrategy builds the fallback order for a configured strategy name.
func NewFromStrategy(strategy string, chat providers.ChatClient, model string, log *logger.Logger) (*Chain, error) {
	switch strategy {
	case StrategyMultiStep, "":
		return NewChain(log, NewMultiStep(chat, model), NewSingleShot(chat, model)), nil
	case StrategySingleShot:
		return NewChain(log, NewSingleShot(chat, model)), nil
	case StrategyNone:
		return NewChain(log), nil
	default:
		return nil, fmt.Errorf("unknown enrichment strategy %q", strategy)
	}
}

func (c *Chain) Enrich(ctx context.Context, in Input) Result {
	for _, tier := range c.tiers {
		res, err := tier.Enrich(ctx, in)
		if err == nil {
			res.Strategy = tier.Name()
			if res.KeyContributions == nil {
				res.KeyContributions = []string{}
			}
			return res
		}
		c.log.Warn("enrichment strategy failed, falling back",
			"paper_id", in.PaperID, "strategy", tier.Name(), "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	return Default(in)
}

// head returns at most n runes of s.
func head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(not available)"
	}
	return s
}
