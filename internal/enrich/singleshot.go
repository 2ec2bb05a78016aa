package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"citegraph/internal/providers"
)

const summaryLength = 400

// SingleShot asks for summary, contributions and methodology in one call
// using explicit section markers.
type SingleShot struct {
	chat  providers.ChatClient
	model string
}

func NewSingleShot(chat providers.ChatClient, model string) *SingleShot {
	return &SingleShot{chat: chat, model: model}
}

func (s *SingleShot) Name() string { return StrategySingleShot }

func (s *SingleShot) Enrich(ctx context.Context, in Input) (Result, error) {
	sections := in.Sections
	if len(sections) == 0 {
		sections = ExtractSections(in.FullText)
	}
	resp, err := s.chat.Complete(ctx, providers.ChatRequest{
		Operation: opSingleShot,
		PaperID:   in.PaperID,
		Model:     s.model,
		Prompt:    singleShotPrompt(in, sections),
	})
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", opSingleShot, err)
	}
	if strings.TrimSpace(resp) == "" {
		return Result{}, errors.New("single-shot enrichment returned empty text")
	}
	summary, contributions, methodology := ParseSingleShot(resp)
	res := Result{
		Summary:          summary,
		Domain:           ClassifyDomain(in.Title, in.Abstract),
		KeyContributions: contributions,
		Methodology:      methodology,
	}
	res.Confidence = ScoreConfidence(res)
	return res, nil
}

func singleShotPrompt(in Input, sections map[string]string) string {
	var content []string
	for _, s := range []struct {
		key, label string
		max        int
	}{
		{"ABSTRACT", "Abstract", 300},
		{"INTRODUCTION", "Introduction", 500},
		{"METHODOLOGY", "Methodology", 500},
		{"CONCLUSION", "Conclusion", 300},
	} {
		if v := sections[s.key]; v != "" {
			content = append(content, s.label+": "+head(v, s.max))
		}
	}
	if len(content) == 0 {
		content = append(content, "Main Content: "+head(in.FullText, 2000))
	}

	authors := in.Authors
	more := ""
	if len(authors) > 3 {
		authors, more = authors[:3], "..."
	}

	return fmt.Sprintf(`Please analyze this research paper and provide a structured summary:

Title: %s
Authors: %s%s

Content Sections:
%s

Please provide a response in exactly this format:

SUMMARY: [A summary of about %d characters that captures the main contribution, approach, and significance.]

CONTRIBUTIONS: [2-3 key technical contributions, separated by " | "]

METHODOLOGY: [Brief description of the main technical approach or method used]`,
		in.Title, strings.Join(authors, ", "), more, strings.Join(content, "\n"), summaryLength)
}
