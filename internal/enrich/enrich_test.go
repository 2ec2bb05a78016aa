package enrich

import (
	"context"
	"errors"
	"strings"
	"testing"

	"citegraph/internal/providers"

	"github.com/stretchr/testify/require"
)

type scriptedChat struct {
	replies map[string]string
	fail    map[string]bool
	calls   []string
}

func (s *scriptedChat) Complete(_ context.Context, req providers.ChatRequest) (string, error) {
	s.calls = append(s.calls, req.Operation)
	if s.fail[req.Operation] || s.fail["*"] {
		return "", errors.New("model unavailable")
	}
	return s.replies[req.Operation], nil
}

func sampleInput() Input {
	return Input{
		PaperID:  "1706.03762",
		Title:    "Attention Is All You Need",
		Authors:  []string{"Vaswani", "Shazeer", "Parmar", "Uszkoreit"},
		Abstract: "The dominant sequence transduction models for language are based on complex recurrent networks.",
		FullText: "Abstract\nWe propose the Transformer.\n1 Introduction\nRecurrent models dominate.\n2 Method\nSelf-attention layers.\n3 Results\nBLEU improves.",
	}
}

func TestMultiStepRunsStagesInOrder(t *testing.T) {
	chat := &scriptedChat{replies: map[string]string{
		opSections:      "ABSTRACT: We propose the Transformer.\nINTRODUCTION: Recurrent models dominate.\nMETHODOLOGY: Self-attention layers\nstacked six deep.\nRESULTS: NOT_FOUND\nCONCLUSION: NOT_FOUND",
		opDomain:        "Domain: natural language processing.",
		opMethodology:   "An encoder-decoder built purely from multi-head self-attention and feed-forward layers.",
		opContributions: "1. A sequence model relying entirely on attention\n2. Multi-head attention with scaled dot products\n- short",
		opSummary:       "The Transformer replaces recurrence with attention.",
	}}
	res, err := NewMultiStep(chat, "m").Enrich(context.Background(), sampleInput())
	require.NoError(t, err)
	require.Equal(t, []string{opSections, opDomain, opMethodology, opContributions, opSummary}, chat.calls)
	require.Equal(t, "Natural Language Processing", res.Domain)
	require.Len(t, res.KeyContributions, 2)
	require.Equal(t, 0.9, res.Confidence["contributions"])
	require.Equal(t, 0.6, res.Confidence["summary"])
	require.Equal(t, 0.8, res.Confidence["methodology"])
}

func TestMultiStepUsesProvidedSections(t *testing.T) {
	chat := &scriptedChat{replies: map[string]string{opSummary: "short"}}
	in := sampleInput()
	in.Sections = map[string]string{"METHODOLOGY": "attention"}
	_, err := NewMultiStep(chat, "m").Enrich(context.Background(), in)
	require.NoError(t, err)
	require.NotContains(t, chat.calls, opSections)
}

func TestMultiStepFailsOnStageError(t *testing.T) {
	chat := &scriptedChat{fail: map[string]bool{opMethodology: true}}
	_, err := NewMultiStep(chat, "m").Enrich(context.Background(), sampleInput())
	require.Error(t, err)
}

func TestSingleShotParsesMarkers(t *testing.T) {
	chat := &scriptedChat{replies: map[string]string{
		opSingleShot: "SUMMARY: The Transformer is a sequence model based only on attention mechanisms.\n\nCONTRIBUTIONS: Attention-only architecture | Multi-head attention\n\nMETHODOLOGY: Encoder-decoder stacks.",
	}}
	res, err := NewSingleShot(chat, "m").Enrich(context.Background(), sampleInput())
	require.NoError(t, err)
	require.Equal(t, "The Transformer is a sequence model based only on attention mechanisms.", res.Summary)
	require.Equal(t, []string{"Attention-only architecture", "Multi-head attention"}, res.KeyContributions)
	require.Equal(t, "Encoder-decoder stacks.", res.Methodology)
	require.Equal(t, "Natural Language Processing", res.Domain)
}

func TestParseSingleShotFallbacks(t *testing.T) {
	para := "This work introduces a model that dispenses with recurrence entirely and relies on attention."
	summary, _, _ := ParseSingleShot("Here you go.\n\n" + para + "\n\nThanks")
	require.Equal(t, para, summary)

	summary, contribs, method := ParseSingleShot("**Summary** - attention only model that is fast to train and strong\n**Key Contributions:**\n1. Self-attention everywhere in the model\n2. Positional encodings for order")
	require.Equal(t, "attention only model that is fast to train and strong", summary)
	require.Equal(t, []string{"Self-attention everywhere in the model", "Positional encodings for order"}, contribs)
	require.Empty(t, method)

	long := strings.Repeat("word ", 120)
	summary, _, _ = ParseSingleShot("short\nlines\n" + long)
	require.LessOrEqual(t, len([]rune(summary)), 400)
}

func TestParseSections(t *testing.T) {
	got := ParseSections("ABSTRACT: a\nmore abstract\nMETHODS: m\nRESULTS: NOT_FOUND\nconclusion: c")
	require.Equal(t, map[string]string{"ABSTRACT": "a more abstract", "METHODOLOGY": "m", "CONCLUSION": "c"}, got)
}

func TestParseContributions(t *testing.T) {
	got := ParseContributions("Contributions:\n1. first long contribution\n2) second long contribution\n• third long contribution\n- tiny\n* fourth long contribution\n5. fifth long contribution")
	require.Equal(t, []string{
		"first long contribution",
		"second long contribution",
		"third long contribution",
		"fourth long contribution",
	}, got)
}

func TestClassifyDomain(t *testing.T) {
	require.Equal(t, "Computer Vision", ClassifyDomain("Deep residual learning for image recognition", ""))
	require.Equal(t, "Natural Language Processing", ClassifyDomain("BERT", "pre-training of deep bidirectional transformers"))
	require.Equal(t, "Reinforcement Learning", ClassifyDomain("Playing Atari", "a policy learned from reward"))
	require.Equal(t, "Artificial Intelligence", ClassifyDomain("Towards AI safety", ""))
	require.Equal(t, DefaultDomain, ClassifyDomain("Compilers", "register allocation in maintained compilers"))
}

func TestExtractSections(t *testing.T) {
	text := "Title\nAbstract\nWe study X.\nIntroduction\nX matters.\n2. Method\nWe do Y.\n3. Results\nGood.\nConclusion\nDone.\nReferences\n[1]"
	got := ExtractSections(text)
	require.Equal(t, "we study x.", got["ABSTRACT"])
	require.Equal(t, "x matters.", got["INTRODUCTION"])
	require.Equal(t, "done.", got["CONCLUSION"])
}

func TestChainFallsBackThroughTiers(t *testing.T) {
	in := sampleInput()
	failing := &scriptedChat{fail: map[string]bool{"*": true}}
	chain := NewChain(nil, NewMultiStep(failing, "m"), NewSingleShot(failing, "m"))
	res := chain.Enrich(context.Background(), in)
	require.Equal(t, in.Abstract, res.Summary)
	require.Equal(t, DefaultDomain, res.Domain)
	require.Empty(t, res.KeyContributions)
	require.Empty(t, res.Methodology)
	require.Equal(t, StrategyDefault, res.Strategy)

	partial := &scriptedChat{
		fail:    map[string]bool{opSections: true},
		replies: map[string]string{opSingleShot: "SUMMARY: fallback summary text that is long enough to keep."},
	}
	res = NewChain(nil, NewMultiStep(partial, "m"), NewSingleShot(partial, "m")).Enrich(context.Background(), in)
	require.Equal(t, StrategySingleShot, res.Strategy)
	require.Equal(t, "fallback summary text that is long enough to keep.", res.Summary)
}

func TestNewFromStrategy(t *testing.T) {
	chat := providers.NewChat(providers.NewMockProvider(8), nil, nil)
	c, err := NewFromStrategy(StrategyMultiStep, chat, "m", nil)
	require.NoError(t, err)
	res := c.Enrich(context.Background(), sampleInput())
	require.Equal(t, StrategyMultiStep, res.Strategy)
	require.Equal(t, "Machine Learning", res.Domain)

	c, err = NewFromStrategy(StrategyNone, chat, "m", nil)
	require.NoError(t, err)
	require.Equal(t, StrategyDefault, c.Enrich(context.Background(), sampleInput()).Strategy)

	_, err = NewFromStrategy("agentic", chat, "m", nil)
	require.Error(t, err)
}
