package county

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const wikipediaBaseURL = "https://en.wikipedia.org/wiki/"

// DeriveContentLink builds the English Wikipedia article URL for a county in
// a region, e.g. ("Travis County", "Texas") gives
// https://en.wikipedia.org/wiki/Travis_County,_Texas. It returns "" when
// either part is empty. The target page is not checked.
func DeriveContentLink(name, region string) string {
	if name == "" || region == "" {
		return ""
	}
	name = strings.TrimSuffix(name, " County")
	return wikipediaBaseURL + titlePart(name) + "_County,_" + titlePart(region)
}

func titlePart(s string) string {
	return strings.ReplaceAll(norm.NFC.String(strings.TrimSpace(s)), " ", "_")
}
