package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benashkar/golf-tracker/internal/fetcher"
	"github.com/benashkar/golf-tracker/internal/player"
	"github.com/benashkar/golf-tracker/internal/waterfall"
)

func newFetcher() *fetcher.Client {
	return fetcher.New(fetcher.Options{Name: "test"})
}

func jane() waterfall.Subject {
	return waterfall.Subject{PlayerID: 1, FirstName: "Jane", LastName: "Doe"}
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte("<html><body>" + body + "</body></html>"))
}

func ddgResult(snippet, title string) string {
	return `<div class="result"><a class="result__a" href="#">` + title + `</a>` +
		`<a class="result__snippet" href="#">` + snippet + `</a></div>`
}

func TestDuckDuckGo_FollowUpQueriesOnlyForMissingFields(t *testing.T) {
	var mu sync.Mutex
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "us-en", r.URL.Query().Get("kl"))
		q := r.URL.Query().Get("q")
		mu.Lock()
		queries = append(queries, q)
		mu.Unlock()
		switch q {
		case "Jane Doe high school golf":
			writeHTML(w, ddgResult("Jane Doe attended Lincoln High School in Springfield, Ohio.", "Jane Doe - Wikipedia"))
		case "Jane Doe golfer hometown":
			writeHTML(w, ddgResult("Doe grew up in Austin, Texas.", "Jane Doe profile"))
		default:
			writeHTML(w, ddgResult("She played college golf at Ohio State University.", "Buckeyes roster"))
		}
	}))
	defer srv.Close()

	src := NewDuckDuckGo(newFetcher(), srv.URL+"/html/")
	doc, err := src.Lookup(context.Background(), jane(), nil)
	require.NoError(t, err)
	require.NotNil(t, doc)

	mu.Lock()
	assert.Equal(t, []string{"Jane Doe high school golf", "Jane Doe golfer hometown", "Jane Doe college golf"}, queries)
	mu.Unlock()
	assert.Equal(t, "https://duckduckgo.com/?q=Jane+Doe+golfer", doc.URL)

	bio := waterfall.Extracted(doc)
	assert.Equal(t, "Lincoln High School", *bio.HighSchoolName)
	assert.Equal(t, "Springfield", *bio.HighSchoolCity)
	assert.Equal(t, "Austin", *bio.HometownCity)
	assert.Equal(t, "Ohio State University", *bio.CollegeName)
}

func TestDuckDuckGo_SkipsAnsweredFollowUps(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeHTML(w, ddgResult("Doe grew up in Austin, Texas and played college golf at Stanford University.", "Jane Doe"))
	}))
	defer srv.Close()

	doc, err := NewDuckDuckGo(newFetcher(), srv.URL).Lookup(context.Background(), jane(), nil)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDuckDuckGo_AllSearchesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	doc, err := NewDuckDuckGo(newFetcher(), srv.URL).Lookup(context.Background(), jane(), nil)
	assert.Nil(t, doc)
	require.Error(t, err)
	assert.True(t, fetcher.IsStatus(err, http.StatusInternalServerError))
}

func TestDuckDuckGo_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, `<div class="no-results">No results.</div>`)
	}))
	defer srv.Close()

	doc, err := NewDuckDuckGo(newFetcher(), srv.URL).Lookup(context.Background(), jane(), nil)
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestSnippets_Fallback(t *testing.T) {
	page, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<div class="zci__abstract">Jane Doe is an American golfer from Austin, Texas.</div>` +
			`<span class="desc">short</span>`))
	require.NoError(t, err)

	assert.Equal(t, []string{"Jane Doe is an American golfer from Austin, Texas."}, Snippets(page))
}

const wikiArticle = `
<table class="infobox"><tbody>
<tr><th colspan="2">Jane Doe</th></tr>
<tr><th>Born</th><td>Jane Doe<br/><span style="display:none">(<span class="bday">1995-04-12</span>)</span>April 12, 1995<br/>
<a href="/wiki/Springfield,_Ohio" title="Springfield, Ohio">Springfield</a>, <a href="/wiki/Ohio" title="Ohio">Ohio</a>, U.S.</td></tr>
<tr><th>College</th><td>Ohio State University (2013–2017)</td></tr>
</tbody></table>
<p>Jane Doe (born April 12, 1995) is an American professional golfer.</p>
<div class="mw-heading mw-heading2"><h2>Early life</h2></div>
<p>Doe graduated from Lincoln High School in Springfield, Ohio in 2013.</p>
<div class="mw-heading mw-heading2"><h2>Professional career</h2></div>
<p>She turned professional in 2017.</p>
`

func wikiServer(t *testing.T, opensearch map[string][]string, pages map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		switch q.Get("action") {
		case "opensearch":
			titles, ok := opensearch[q.Get("search")]
			if !ok {
				titles = []string{}
			}
			_ = json.NewEncoder(w).Encode([]any{q.Get("search"), titles, []string{}, []string{}})
		case "parse":
			html, ok := pages[q.Get("page")]
			if !ok {
				_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"code": "missingtitle", "info": "missing"}})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"parse": map[string]any{"title": q.Get("page"), "text": map[string]string{"*": html}}})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
}

func TestWikipedia_Lookup(t *testing.T) {
	srv := wikiServer(t,
		map[string][]string{"Jane Doe": {"Jane Doe (politician)", "Jane Doe (golfer)"}},
		map[string]string{"Jane Doe (golfer)": wikiArticle},
	)
	defer srv.Close()

	doc, err := NewWikipedia(newFetcher(), srv.URL+"/w/api.php").Lookup(context.Background(), jane(), nil)
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.True(t, strings.HasPrefix(doc.URL, "https://en.wikipedia.org/wiki/Jane_Doe_"), doc.URL)
	require.NotNil(t, doc.Bio.WikipediaURL)
	assert.Equal(t, doc.URL, *doc.Bio.WikipediaURL)
	assert.Equal(t, "1995-04-12", doc.Bio.BirthDate.Format("2006-01-02"))
	assert.Equal(t, "Springfield", *doc.Bio.BirthplaceCity)
	assert.Equal(t, "Ohio", *doc.Bio.BirthplaceState)
	assert.Equal(t, "Springfield", *doc.Bio.HometownCity)
	assert.Equal(t, "Ohio State University", *doc.Bio.CollegeName)
	require.NotEmpty(t, doc.Text)
	assert.Equal(t, "Doe graduated from Lincoln High School in Springfield, Ohio in 2013.", doc.Text[0])

	bio := waterfall.Extracted(doc)
	assert.Equal(t, "Lincoln High School", *bio.HighSchoolName)
	assert.Equal(t, "Ohio", *bio.HighSchoolState)
}

func TestWikipedia_NoAcceptableTitle(t *testing.T) {
	srv := wikiServer(t, map[string][]string{"Jane Doe": {"Springfield, Ohio"}}, nil)
	defer srv.Close()

	doc, err := NewWikipedia(newFetcher(), srv.URL).Lookup(context.Background(), jane(), nil)
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestWikipedia_MissingPage(t *testing.T) {
	srv := wikiServer(t, map[string][]string{"Jane Doe golfer": {"Jane Doe (golfer)"}}, nil)
	defer srv.Close()

	doc, err := NewWikipedia(newFetcher(), srv.URL).Lookup(context.Background(), jane(), nil)
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestWikipedia_SearchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	doc, err := NewWikipedia(newFetcher(), srv.URL).Lookup(context.Background(), jane(), nil)
	assert.Nil(t, doc)
	assert.Error(t, err)
}

func TestPickTitle(t *testing.T) {
	assert.Equal(t, "Jane Doe (golfer)", PickTitle([]string{"Jane Doe (politician)", "Jane Doe (golfer)"}, "Jane Doe"))
	assert.Equal(t, "Ludvig Åberg", PickTitle([]string{"Ludvig Åberg"}, "Ludvig Aberg"))
	assert.Equal(t, "", PickTitle([]string{"Springfield, Ohio"}, "Jane Doe"))
	assert.Equal(t, "", PickTitle(nil, "Jane Doe"))
}

const espnProfile = `
<section class="Card PlayerHeader__Bio">
<ul>
<li><div>Birthdate</div><div>June 21, 1996</div></li>
<li><div>Birthplace</div><div>Ridgewood, NJ</div></li>
<li><div>College</div><div>Texas (2014–2018)</div></li>
</ul>
<p>Scheffler attended Highland Park High School in Dallas, Texas.</p>
</section>`

func TestESPN_LookupByID(t *testing.T) {
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		writeHTML(w, espnProfile)
	}))
	defer srv.Close()

	subject := waterfall.Subject{FirstName: "Scottie", LastName: "Scheffler", ExternalIDs: map[string]string{player.SystemESPN: "9478"}}
	doc, err := NewESPN(newFetcher(), srv.URL+"/golf/player/_").Lookup(context.Background(), subject, nil)
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Equal(t, "/golf/player/_/id/9478", path.Load())
	assert.Equal(t, srv.URL+"/golf/player/_/id/9478", doc.URL)
	assert.Equal(t, "Ridgewood", *doc.Bio.BirthplaceCity)
	assert.Equal(t, "NJ", *doc.Bio.BirthplaceState)
	assert.Equal(t, "Ridgewood", *doc.Bio.HometownCity)
	assert.Equal(t, "Texas", *doc.Bio.CollegeName)
	assert.Equal(t, 1996, doc.Bio.BirthDate.Year())

	bio := waterfall.Extracted(doc)
	assert.Equal(t, "Highland Park High School", *bio.HighSchoolName)
}

func TestESPN_NotFoundIsNoInformation(t *testing.T) {
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	subject := waterfall.Subject{FirstName: "Ludvig", LastName: "Åberg"}
	doc, err := NewESPN(newFetcher(), srv.URL+"/").Lookup(context.Background(), subject, nil)
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.Equal(t, "/name/ludvig-aberg", path.Load())
}

func TestParseProfile_InfoTable(t *testing.T) {
	page, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<table class="PlayerBio"><tr><th>Hometown</th><td>Jupiter, Florida, USA</td></tr>` +
			`<tr><th>Turned Pro</th><td>2015</td></tr></table>`))
	require.NoError(t, err)

	doc := ParseProfile(page)
	assert.Equal(t, "Jupiter", *doc.Bio.HometownCity)
	assert.Equal(t, "Florida", *doc.Bio.HometownState)
	assert.Nil(t, doc.Bio.BirthplaceCity)
}

func TestGrokepedia_FollowsPlayerLink(t *testing.T) {
	var search atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		search.Store(r.URL.Query().Get("q"))
		writeHTML(w, `<a href="/wiki/Golf">Golf</a><a href="/player/jane-doe">Jane Doe</a>`)
	})
	mux.HandleFunc("/player/jane-doe", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, `<p>Jane Doe is from Austin, Texas.</p><ul><li>Attended Westlake High School</li></ul>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	doc, err := NewGrokepedia(newFetcher(), srv.URL+"/").Lookup(context.Background(), jane(), nil)
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Equal(t, "Jane Doe golf", search.Load())
	assert.Equal(t, srv.URL+"/player/jane-doe", doc.URL)
	assert.Equal(t, []string{"Jane Doe is from Austin, Texas.", "Attended Westlake High School"}, doc.Text)

	bio := waterfall.Extracted(doc)
	assert.Equal(t, "Westlake High School", *bio.HighSchoolName)
	assert.Equal(t, "Austin", *bio.HometownCity)
}

func TestGrokepedia_NoPlayerLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, `<a href="/wiki/Golf">Golf</a>`)
	}))
	defer srv.Close()

	doc, err := NewGrokepedia(newFetcher(), srv.URL).Lookup(context.Background(), jane(), nil)
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestRegistry(t *testing.T) {
	var made []string
	reg, err := Registry(waterfall.DefaultConfig(), func(sc waterfall.SourceConfig) Fetcher {
		made = append(made, sc.Name)
		return newFetcher()
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"duckduckgo", "espn", "grokepedia", "wikipedia"}, reg.List())
	assert.Len(t, made, 4)

	_, err = Registry(&waterfall.Config{Sources: []waterfall.SourceConfig{{Name: "yahoo"}}}, func(waterfall.SourceConfig) Fetcher { return newFetcher() })
	assert.Error(t, err)
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Scottie Scheffler":  "scottie-scheffler",
		"Ludvig Åberg":       "ludvig-aberg",
		"J.J. Spaun":         "jj-spaun",
		"Davis Love III":     "davis-love-iii",
		" Tom  Kim ":         "tom-kim",
		"Nicolás Echavarría": "nicolas-echavarria",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in), in)
	}
	assert.Equal(t, "Ludvig Aberg", Fold("Ludvig Åberg"))
}
