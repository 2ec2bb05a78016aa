package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"citegraph/internal/providers"
)

const (
	opSections      = "enrich.sections"
	opDomain        = "enrich.domain"
	opMethodology   = "enrich.methodology"
	opContributions = "enrich.contributions"
	opSummary       = "enrich.summary"
	opSingleShot    = "enrich.single_shot"
)

// MultiStep runs section extraction, domain classification, methodology,
// contributions and summary as separate chat calls, then scores confidence
// locally. Each stage sees only earlier outputs and bounded slices of text.
type MultiStep struct {
	chat  providers.ChatClient
	model string
}

func NewMultiStep(chat providers.ChatClient, model string) *MultiStep {
	return &MultiStep{chat: chat, model: model}
}

func (m *MultiStep) Name() string { return StrategyMultiStep }

func (m *MultiStep) call(ctx context.Context, in Input, op, prompt string) (string, error) {
	out, err := m.chat.Complete(ctx, providers.ChatRequest{
		Operation: op,
		PaperID:   in.PaperID,
		Model:     m.model,
		Prompt:    prompt,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return strings.TrimSpace(out), nil
}

func (m *MultiStep) Enrich(ctx context.Context, in Input) (Result, error) {
	sections := in.Sections
	if len(sections) == 0 {
		resp, err := m.call(ctx, in, opSections, sectionsPrompt(in.Title, head(in.FullText, 8000)))
		if err != nil {
			return Result{}, err
		}
		sections = ParseSections(resp)
	}

	resp, err := m.call(ctx, in, opDomain, domainPrompt(in.Title, in.Abstract, head(sections["METHODOLOGY"], 500)))
	if err != nil {
		return Result{}, err
	}
	domain := canonicalDomain(resp)
	if domain == "" {
		domain = ClassifyDomain(in.Title, in.Abstract)
	}

	methodology, err := m.call(ctx, in, opMethodology, methodologyPrompt(in.Title, in.Abstract,
		head(sections["METHODOLOGY"], 1000), head(sections["INTRODUCTION"], 500)))
	if err != nil {
		return Result{}, err
	}

	resp, err = m.call(ctx, in, opContributions, contributionsPrompt(in.Title, in.Abstract,
		head(sections["INTRODUCTION"], 800), head(sections["CONCLUSION"], 800)))
	if err != nil {
		return Result{}, err
	}
	contributions := ParseContributions(resp)

	summary, err := m.call(ctx, in, opSummary, summaryPrompt(in.Title, domain, head(in.Abstract, 400),
		methodology, strings.Join(contributions, " | ")))
	if err != nil {
		return Result{}, err
	}
	if summary == "" {
		return Result{}, errors.New("summary stage returned empty text")
	}

	res := Result{
		Summary:          summary,
		Domain:           domain,
		KeyContributions: contributions,
		Methodology:      methodology,
	}
	res.Confidence = ScoreConfidence(res)
	return res, nil
}

// ScoreConfidence rates each field with fixed heuristics; no model call.
func ScoreConfidence(r Result) map[string]float64 {
	score := func(ok bool, hi, lo float64) float64 {
		if ok {
			return hi
		}
		return lo
	}
	n := len([]rune(r.Summary))
	return map[string]float64{
		"domain":        score(r.Domain != "" && !isNotFound(r.Domain), 0.9, 0.3),
		"methodology":   score(len([]rune(r.Methodology)) > 50, 0.8, 0.4),
		"contributions": score(len(r.KeyContributions) >= 2, 0.9, 0.5),
		"summary":       score(n >= 200 && n <= 400, 0.8, 0.6),
	}
}

func sectionsPrompt(title, text string) string {
	return `You are an expert at analyzing academic papers. Extract the key sections from the following paper text.

Return your response in this exact format:
ABSTRACT: [extracted abstract text]
INTRODUCTION: [extracted introduction text]
METHODOLOGY: [extracted methodology text]
RESULTS: [extracted results text]
CONCLUSION: [extracted conclusion text]

If a section is not found, write "NOT_FOUND" for that section.

Paper Title: ` + title + "\n\nPaper Text:\n" + text
}

func domainPrompt(title, abstract, methodology string) string {
	return "You are an expert at classifying academic papers by research domain.\n\n" +
		"Based on the paper title, abstract, and methodology, classify this paper into ONE of these domains:\n- " +
		strings.Join(KnownDomains, "\n- ") +
		"\n\nReturn ONLY the domain name, nothing else.\n\n" +
		"Title: " + title + "\nAbstract: " + orNone(abstract) + "\nMethodology: " + orNone(methodology)
}

func methodologyPrompt(title, abstract, methodology, intro string) string {
	return `You are an expert at extracting methodology information from academic papers.
Provide a concise 2-3 sentence summary of the main technical approach: the core algorithm or technique, key architectural choices, and the main evaluation setup.
Return ONLY the methodology summary.

Paper Title: ` + title + "\n\nAbstract: " + orNone(abstract) +
		"\n\nMethodology Section: " + orNone(methodology) + "\n\nIntroduction: " + orNone(intro)
}

func contributionsPrompt(title, abstract, intro, conclusion string) string {
	return `You are an expert at identifying key contributions in academic papers.
Extract the 2-4 main technical contributions of this paper. Each should be specific, technically meaningful and novel.

Return your response as a numbered list:
1. [First contribution]
2. [Second contribution]

Title: ` + title + "\n\nAbstract: " + orNone(abstract) +
		"\n\nIntroduction: " + orNone(intro) + "\n\nConclusion: " + orNone(conclusion)
}

func summaryPrompt(title, domain, abstract, methodology, contributions string) string {
	return `You are an expert technical writer specializing in academic paper summaries.
Write a summary of about 300 characters covering the problem addressed, the technical approach and the significance of the results.

Title: ` + title + "\nDomain: " + domain + "\nAbstract: " + orNone(abstract) +
		"\nMethodology: " + orNone(methodology) + "\nKey Contributions: " + orNone(contributions)
}
