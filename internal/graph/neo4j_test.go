package graph

import (
	"regexp"
	"sort"
	"testing"

	"citegraph/internal/models"

	"github.com/stretchr/testify/require"
)

var setPropPattern = regexp.MustCompile(`p\.(\w+) = row\.(\w+)`)

// applyRow plays setPaperProps against a node the way the server would:
// null removes a property and lists come back as []any.
func applyRow(t *testing.T, row map[string]any) map[string]any {
	t.Helper()
	node := map[string]any{"arxiv_id": row["arxiv_id"]}
	assignments := setPropPattern.FindAllStringSubmatch(setPaperProps, -1)
	require.NotEmpty(t, assignments)
	for _, m := range assignments {
		v, ok := row[m[2]]
		require.Truef(t, ok, "row.%s is not a paper parameter", m[2])
		switch x := v.(type) {
		case nil:
			delete(node, m[1])
		case []string:
			l := make([]any, len(x))
			for i, s := range x {
				l[i] = s
			}
			node[m[1]] = l
		default:
			node[m[1]] = x
		}
	}
	return node
}

func TestPaperPropsRoundTrip(t *testing.T) {
	full := models.PaperMetadata{
		ArxivID:          "1706.03762",
		Title:            "Attention Is All You Need",
		Authors:          []string{"Ashish Vaswani", "Noam Shazeer"},
		Abstract:         "The dominant sequence transduction models...",
		PDFURL:           "https://arxiv.org/pdf/1706.03762",
		PublicationDate:  "2017-06-12",
		AISummary:        "Transformers replace recurrence with attention.",
		Domain:           "cs.CL",
		KeyContributions: []string{"self-attention", "multi-head attention"},
		Methodology:      "encoder-decoder trained on WMT",
	}
	require.Equal(t, full, paperFromProps(applyRow(t, paperParams(full))))

	stub := models.PaperMetadata{ArxivID: "1512.03385"}
	node := applyRow(t, paperParams(stub))
	require.NotContains(t, node, "title")
	require.NotContains(t, node, "abstract")
	got := paperFromProps(node)
	require.Equal(t, "1512.03385", got.ArxivID)
	require.Equal(t, []string{}, got.Authors)
	require.False(t, got.IsComplete())
}

func TestSetPaperPropsCoversEveryParameter(t *testing.T) {
	var set []string
	for _, m := range setPropPattern.FindAllStringSubmatch(setPaperProps, -1) {
		require.Equal(t, m[1], m[2])
		set = append(set, m[2])
	}
	var params []string
	for k := range paperParams(models.PaperMetadata{ArxivID: "1.1"}) {
		if k != "arxiv_id" {
			params = append(params, k)
		}
	}
	sort.Strings(set)
	sort.Strings(params)
	require.Equal(t, params, set)
}

func TestCypherQueriesBindTheirParameters(t *testing.T) {
	cases := []struct {
		name  string
		query string
		bound []string
	}{
		{"add paper", addPaperQuery, []string{"row"}},
		{"add citations", addCitationsQuery, []string{"paper_id", "cited_ids"}},
		{"paper", paperQuery, []string{"id"}},
		{"cited papers", citedPapersQuery, []string{"id", "limit"}},
		{"incomplete", incompleteQuery, []string{"limit"}},
		{"mark attempted", markAttemptedQuery, []string{"ids"}},
		{"backfill", backfillQuery, []string{"rows"}},
		{"neighborhood", neighborhoodQuery, []string{"id", "limit"}},
		{"recent on day", recentOnDayQuery, []string{"day", "limit"}},
		{"recent latest", recentLatestQuery, []string{"day", "limit"}},
		{"recent cited", recentCitedQuery, []string{"ids"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := map[string]any{}
			for _, k := range tc.bound {
				params[k] = nil
			}
			require.NoError(t, checkParams(tc.query, params))

			used := map[string]bool{}
			for _, m := range queryParamPattern.FindAllStringSubmatch(tc.query, -1) {
				used[m[1]] = true
			}
			for _, k := range tc.bound {
				if tc.name == "recent latest" && k == "day" {
					continue
				}
				require.Truef(t, used[k], "$%s bound but never used", k)
			}
		})
	}
}

func TestCheckParamsReportsUnboundNames(t *testing.T) {
	err := checkParams(citedPapersQuery, map[string]any{"id": "1.1"})
	require.EqualError(t, err, "cypher parameters not bound: limit")

	err = checkParams(neighborhoodQuery, map[string]any{})
	require.EqualError(t, err, "cypher parameters not bound: id, limit")

	require.NoError(t, checkParams(`MATCH (p:Paper) RETURN count(p)`, nil))
}
