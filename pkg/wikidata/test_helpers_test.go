package wikidata

import (
	"net/http"
	"strings"

	"github.com/sells-group/county-api/internal/ratelimit"
)

// noWait returns a waiter that never blocks.
func noWait() ratelimit.Waiter {
	return ratelimit.NewSpacing(0)
}

// newRewriteClient creates an HTTP client that rewrites requests to a test server URL.
// All requests matching the target prefix are redirected to the test server.
func newRewriteClient(testServerURL, targetPrefix string) *http.Client {
	return &http.Client{
		Transport: &rewriteTransport{
			base:         http.DefaultTransport,
			testServer:   testServerURL,
			targetPrefix: targetPrefix,
		},
	}
}

type rewriteTransport struct {
	base         http.RoundTripper
	testServer   string
	targetPrefix string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	origURL := req.URL.String()
	if !strings.HasPrefix(origURL, t.targetPrefix) {
		return t.base.RoundTrip(req)
	}
	parsed, err := req.URL.Parse(t.testServer + origURL[len(t.targetPrefix):])
	if err != nil {
		return nil, err
	}
	newReq := req.Clone(req.Context())
	newReq.URL = parsed
	newReq.Host = parsed.Host
	return t.base.RoundTrip(newReq)
}

const travisCountyJSON = `{
  "entities": {
    "Q26587": {
      "id": "Q26587",
      "labels": {"en": {"language": "en", "value": "Travis County"}},
      "claims": {
        "P1082": [
          {"mainsnak": {"snaktype": "value", "property": "P1082",
            "datavalue": {"type": "quantity", "value": {"amount": "+1290188", "unit": "1"}}}, "rank": "preferred"},
          {"mainsnak": {"snaktype": "value", "property": "P1082",
            "datavalue": {"type": "quantity", "value": {"amount": "+1024266", "unit": "1"}}}, "rank": "normal"}
        ],
        "P625": [
          {"mainsnak": {"snaktype": "value", "property": "P625",
            "datavalue": {"type": "globecoordinate", "value": {"latitude": 30.33, "longitude": -97.78, "altitude": null, "precision": 0.0001, "globe": "http://www.wikidata.org/entity/Q2"}}}, "rank": "normal"}
        ],
        "P17": [
          {"mainsnak": {"snaktype": "value", "property": "P17",
            "datavalue": {"type": "wikibase-entityid", "value": {"entity-type": "item", "numeric-id": 30, "id": "Q30"}}}, "rank": "normal"}
        ],
        "P856": [
          {"mainsnak": {"snaktype": "value", "property": "P856",
            "datavalue": {"type": "string", "value": "https://www.traviscountytx.gov"}}, "rank": "normal"}
        ],
        "P36": [
          {"mainsnak": {"snaktype": "novalue", "property": "P36"}, "rank": "normal"}
        ]
      }
    }
  }
}`
