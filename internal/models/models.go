package models

import (
	"regexp"
	"strings"
)

type ChunkType string

const (
	ChunkText  ChunkType = "text"
	ChunkImage ChunkType = "image"
)

type PaperMetadata struct {
	ArxivID          string   `json:"arxiv_id"`
	Title            string   `json:"title"`
	Authors          []string `json:"authors"`
	Abstract         string   `json:"abstract"`
	PDFURL           string   `json:"pdf_url"`
	PublicationDate  string   `json:"publication_date"`
	References       []string `json:"references,omitempty"`
	AISummary        string   `json:"ai_summary,omitempty"`
	Domain           string   `json:"domain,omitempty"`
	KeyContributions []string `json:"key_contributions,omitempty"`
	Methodology      string   `json:"methodology,omitempty"`
}

// IsComplete reports whether the paper carries enough metadata to be used as
// citation context. Nodes created from a bare citation id are not complete.
func (p PaperMetadata) IsComplete() bool {
	return strings.TrimSpace(p.Title) != "" && strings.TrimSpace(p.Abstract) != ""
}

// Chunk is one extracted unit of a paper. Text chunks carry a paragraph,
// image chunks carry encoded image bytes (PNG or JPEG).
type Chunk struct {
	PaperID    string    `json:"paper_id"`
	Type       ChunkType `json:"chunk_type"`
	PageNumber int       `json:"page_number"`
	Ordinal    int       `json:"ord"`
	Text       string    `json:"content,omitempty"`
	Image      []byte    `json:"-"`
}

type CitationEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Neighborhood is the one-hop citation context around a paper.
type Neighborhood struct {
	Center PaperMetadata   `json:"center"`
	Nodes  []PaperMetadata `json:"nodes"`
	Edges  []CitationEdge  `json:"edges"`
}

// Subgraph is a set of papers, the papers they cite and the CITES edges
// between them.
type Subgraph struct {
	Papers []PaperMetadata `json:"papers"`
	Cited  []PaperMetadata `json:"cited"`
	Edges  []CitationEdge  `json:"edges"`
}

var versionSuffix = regexp.MustCompile(`^(.*\d)v\d+$`)

// BaseID strips a trailing arXiv version suffix: "1706.03762v2" -> "1706.03762".
func BaseID(id string) string {
	id = strings.TrimSpace(id)
	if m := versionSuffix.FindStringSubmatch(id); m != nil {
		return m[1]
	}
	return id
}

// CandidateIDs lists the ids to try, in order, when looking a paper up.
func CandidateIDs(id string) []string {
	id = strings.TrimSpace(id)
	base := BaseID(id)
	if base == id {
		return []string{id}
	}
	return []string{id, base}
}
