package main

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/county-api/internal/config"
)

const (
	travisEntityJSON = `{"entities":{"Q26587":{"id":"Q26587",
		"labels":{"en":{"language":"en","value":"Travis County"}},
		"claims":{
			"P1082":[{"mainsnak":{"snaktype":"value","property":"P1082","datavalue":{"type":"quantity","value":{"amount":"+1290188","unit":"1"}}},"rank":"normal"}],
			"P625":[{"mainsnak":{"snaktype":"value","property":"P625","datavalue":{"type":"globecoordinate","value":{"latitude":30.33,"longitude":-97.78,"altitude":null,"precision":0.0001,"globe":"http://www.wikidata.org/entity/Q2"}}},"rank":"normal"}],
			"P131":[{"mainsnak":{"snaktype":"value","property":"P131","datavalue":{"type":"wikibase-entityid","value":{"entity-type":"item","numeric-id":1439,"id":"Q1439"}}},"rank":"normal"}]
		}}}}`
	texasEntityJSON = `{"entities":{"Q1439":{"id":"Q1439","labels":{"en":{"language":"en","value":"Texas"}}}}}`
	earthEntityJSON = `{"entities":{"Q2":{"id":"Q2","labels":{"en":{"language":"en","value":"Earth"}}}}}`
)

// newWikidataServer serves a few fixed entities and counts requests.
func newWikidataServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("ids") {
		case "Q26587":
			w.Write([]byte(travisEntityJSON))
		case "Q1439":
			w.Write([]byte(texasEntityJSON))
		case "Q2":
			w.Write([]byte(earthEntityJSON))
		default:
			w.Write([]byte(`{"error":{"code":"no-such-entity","info":"not found"}}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// testConfig returns the default config pointed at wikidataURL with a sqlite
// cache in a temp dir.
func testConfig(t *testing.T, wikidataURL string) *config.Config {
	t.Helper()
	c, err := config.Load()
	require.NoError(t, err)
	c.Wikidata.BaseURL = wikidataURL
	c.Wikidata.MinDelayMs = 0
	c.Cache.Backend = "sqlite"
	c.Cache.SQLite.Path = filepath.Join(t.TempDir(), "cache.db")
	return c
}
