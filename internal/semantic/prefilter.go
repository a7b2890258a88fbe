package semantic

import "strings"

// prefixKeywords maps a two-digit HS chapter prefix to descriptive keywords
// that make the classification obviously correct. A candidate whose product
// text contains an expected keyword for its prefix never escalates to the
// external call.
var prefixKeywords = map[string][]string{
	"61": {"shirt", "knit", "sweater", "jersey", "apparel", "garment"},
	"62": {"apparel", "clothing", "fabric", "textile", "cotton", "dress"},
	"69": {"ceramic", "tile", "pottery", "clay"},
	"72": {"iron", "steel", "metal bar", "plate", "coil", "rod"},
	"73": {"fastener", "bolt", "screw", "nut", "stainless", "metal"},
	"84": {"machine", "engine", "motor", "pump", "compressor", "equipment"},
	"85": {"electric", "electronic", "led", "light", "circuit", "transformer"},
	"94": {"chair", "furniture", "wood", "teak", "sofa", "table", "desk"},
}

// isObviousMatch reports whether the candidate's HS prefix is plainly
// consistent with its product text. Prefixes with no rule are never obvious.
func isObviousMatch(c candidate) bool {
	code := strings.TrimSpace(c.HSCode)
	if len(code) < 2 {
		return false
	}

	keywords, ok := prefixKeywords[code[:2]]
	if !ok {
		return false
	}

	text := strings.ToLower(c.ProductName + " " + c.Material + " " + c.Category)
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
