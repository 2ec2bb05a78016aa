package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPDFDownloaderRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "citegraph-test", r.Header.Get("User-Agent"))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer srv.Close()

	d := NewPDFDownloader(nil, "citegraph-test", 0, fastPolicy(5))
	body, err := d.Fetch(context.Background(), srv.URL+"/paper.pdf")
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4 fake", string(body))
	require.EqualValues(t, 3, calls.Load())
}

func TestPDFDownloaderGivesUpWithFetchError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := NewPDFDownloader(nil, "", 0, fastPolicy(3))
	_, err := d.Fetch(context.Background(), srv.URL)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
	require.Equal(t, 3, fe.Attempts)
	require.EqualValues(t, 3, calls.Load())
}

func TestPDFDownloaderDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	d := NewPDFDownloader(nil, "", 0, fastPolicy(5))
	_, err := d.Fetch(context.Background(), srv.URL+"/missing.pdf")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, http.StatusNotFound, fe.StatusCode)
	require.EqualValues(t, 1, calls.Load())
}

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <published>2017-06-12T17:57:34Z</published>
    <title>Attention Is All
      You Need</title>
    <summary>  The dominant sequence transduction models are based on complex recurrent networks.
    </summary>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <link href="http://arxiv.org/abs/1706.03762v7" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/1706.03762v7" rel="related" type="application/pdf"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/hep-th/9901001v1</id>
    <published>1999-01-01T00:00:00Z</published>
    <title>Old style id</title>
    <summary>Abstract.</summary>
    <author><name>Someone</name></author>
  </entry>
  <entry>
    <id>http://arxiv.org/api/errors#incorrect_id_format_for_bogus</id>
    <title>Error</title>
    <summary>incorrect id format for bogus</summary>
  </entry>
</feed>`

func TestParseFeed(t *testing.T) {
	papers, err := parseFeed([]byte(sampleFeed))
	require.NoError(t, err)
	require.Len(t, papers, 2)

	p := papers[0]
	require.Equal(t, "1706.03762v7", p.ArxivID)
	require.Equal(t, "Attention Is All You Need", p.Title)
	require.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, p.Authors)
	require.Equal(t, "The dominant sequence transduction models are based on complex recurrent networks.", p.Abstract)
	require.Equal(t, "http://arxiv.org/pdf/1706.03762v7", p.PDFURL)
	require.Equal(t, "2017-06-12", p.PublicationDate)

	require.Equal(t, "hep-th/9901001v1", papers[1].ArxivID)
	require.Equal(t, "https://arxiv.org/pdf/hep-th/9901001v1", papers[1].PDFURL)
}

func TestArxivFetchByIDs(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	c := NewArxivClient(nil, ArxivConfig{APIURL: srv.URL, Retry: fastPolicy(2)})
	papers, err := c.FetchByIDs(context.Background(), []string{"1706.03762", " ", "bogus"})
	require.NoError(t, err)
	require.Len(t, papers, 2)
	require.Contains(t, gotQuery, "id_list=1706.03762%2Cbogus")
	require.Contains(t, gotQuery, "max_results=2")
}

func TestArxivFetchByIDsEmptyInputMakesNoRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := NewArxivClient(nil, ArxivConfig{APIURL: srv.URL})
	papers, err := c.FetchByIDs(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, papers)
	require.Zero(t, calls.Load())
}

func TestArxivLatestQuery(t *testing.T) {
	var gotSearch, gotSort string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSearch = r.URL.Query().Get("search_query")
		gotSort = r.URL.Query().Get("sortBy") + "/" + r.URL.Query().Get("sortOrder")
		_, _ = w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	}))
	defer srv.Close()

	c := NewArxivClient(nil, ArxivConfig{APIURL: srv.URL})
	papers, err := c.Latest(context.Background(), nil, 3)
	require.NoError(t, err)
	require.Empty(t, papers)
	require.Equal(t, "cat:cs.AI OR cat:cs.CL OR cat:cs.CV", gotSearch)
	require.Equal(t, "submittedDate/descending", gotSort)
}

func TestArxivMalformedFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("<", 3)))
	}))
	defer srv.Close()

	c := NewArxivClient(nil, ArxivConfig{APIURL: srv.URL})
	_, err := c.FetchByIDs(context.Background(), []string{"1706.03762"})
	require.Error(t, err)
}
