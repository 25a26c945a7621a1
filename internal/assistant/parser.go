package assistant

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Parsed holds the fields the rule parser could read from one message.
type Parsed struct {
	LocationName string
	RadiusKm     float64 // zero when absent
	Query        string
}

type radiusPattern struct {
	re *regexp.Regexp
	// metric marks patterns whose unit is meters; a following "k" disqualifies them.
	metric     bool
	multiplier float64
}

var (
	radiusPatterns = []radiusPattern{
		{regexp.MustCompile(`(?i)(\d+)\s*m(?:et)?(?:er)?`), true, 0.001},
		{regexp.MustCompile(`(?i)(\d+)\s*km`), false, 1},
		{regexp.MustCompile(`(?i)trong\s+(?:khoảng\s+)?(\d+)\s*m(?:et)?(?:er)?`), true, 0.001},
		{regexp.MustCompile(`(?i)trong\s+(?:khoảng\s+)?(\d+)\s*km`), false, 1},
		{regexp.MustCompile(`(?i)bán\s+kính\s+(\d+)\s*m(?:et)?(?:er)?`), true, 0.001},
		{regexp.MustCompile(`(?i)bán\s+kính\s+(\d+)\s*km`), false, 1},
		{regexp.MustCompile(`(?i)khoảng\s+(\d+)\s*m(?:et)?(?:er)?`), true, 0.001},
		{regexp.MustCompile(`(?i)khoảng\s+(\d+)\s*km`), false, 1},
		{regexp.MustCompile(`(?i)(\d+)\s*ki[lô]?[oô]?met`), false, 1},
	}
	followedByK = regexp.MustCompile(`(?i)^\s*k`)

	locationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:ở|tại|gần)\s+([^,]+?)(?:\s*,|\s+tìm|\s+có)`),
		regexp.MustCompile(`(?i)(?:đang|hiện)\s+ở\s+([^,]+?)(?:\s*,|\s+tìm)`),
	}
	locationLeadingProximity = regexp.MustCompile(`(?i)^(quanh|gần|xung quanh|ở)\s+`)
	proximityOnly            = []string{"gần đó", "gần đây", "xung quanh", "quanh đây", "ở gần", "đây", "đó", "quanh", "gần", "ở"}

	kmSpan         = regexp.MustCompile(`(?i)\d+\s*km`)
	searchPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)tìm\s+(?:quán|chỗ|nơi|địa điểm|tiệm)?\s*([^,.?]+)`),
		regexp.MustCompile(`(?i)(?:muốn|cần|có)\s+([^,.?]+)`),
		regexp.MustCompile(`(?i)([^,.?]+?)\s+(?:gần|trong|quanh)`),
	}
	queryLeadingFiller     = regexp.MustCompile(`(?i)^(quán|chỗ|nơi|tiệm|địa điểm|ở|tại|gần|ăn|uống|dịch vụ)\s+`)
	queryTrailingProximity = regexp.MustCompile(`(?i)\s*(gần đây|gần đó|ở đây|ở gần|quanh đây|xung quanh)\s*$`)
	queryTrailingPrep      = regexp.MustCompile(`(?i)\s+(gần|ở|trong|quanh|tại)\s*$`)
	queryStopwords         = []string{"gần đây", "gần đó", "gần", "ở đây", "ở gần", "ở", "trong", "quanh", "xung quanh", "tại", "quanh đây"}

	// currentLocationPhrases mark a query that is really "where I am".
	currentLocationPhrases = []string{
		"hiện tại", "địa chỉ hiện", "vị trí hiện", "đang ở đây",
		"chỗ này", "chỗ mình", "của mình", "địa chỉ của mình",
		"nơi này", "nơi mình", "chỗ tôi", "ở đây",
	}

	// usesCurrentLocation matches messages that ask to search around the sender.
	usesCurrentLocation = regexp.MustCompile(`(?i)hiện tại|đang ở đây|vị trí hiện tại|chỗ này|chỗ mình|địa chỉ hiện tại|của mình|địa chỉ của mình|nơi này|nơi mình đang|chỗ tôi|ở đây`)

	acceptsAnything = regexp.MustCompile(`(?i)cái nào cũng được|gì cũng được|tất cả|bất kỳ|không có yêu cầu|không yêu cầu gì`)
)

// Normalize converts text to NFC so composed and decomposed Vietnamese
// diacritics match the same patterns.
func Normalize(text string) string {
	return norm.NFC.String(text)
}

// Parse reads location, radius and search query from a Vietnamese message.
// Entities from a model-backed extractor fill location and query before the
// query rules run.
func Parse(text string, entities []Entity) Parsed {
	text = Normalize(text)
	var p Parsed

	p.RadiusKm = parseRadius(text)
	p.LocationName = parseLocation(text)

	for _, e := range entities {
		word := Normalize(e.Word)
		switch e.Label {
		case "location", "place":
			if p.LocationName == "" {
				p.LocationName = word
			}
		case "food", "service", "amenity":
			if p.Query == "" {
				p.Query = word
			}
		}
	}

	if p.Query == "" {
		searchText := text
		if p.LocationName != "" {
			searchText = strings.ReplaceAll(searchText, p.LocationName, "")
		}
		if p.RadiusKm != 0 {
			searchText = kmSpan.ReplaceAllString(searchText, "")
		}
		p.Query = parseQuery(searchText)
	}

	return p
}

func parseRadius(text string) float64 {
	for _, rp := range radiusPatterns {
		for _, m := range rp.re.FindAllStringSubmatchIndex(text, -1) {
			if rp.metric && followedByK.MatchString(text[m[1]:]) {
				continue
			}
			n, err := strconv.ParseFloat(text[m[2]:m[3]], 64)
			if err != nil {
				continue
			}
			return n * rp.multiplier
		}
	}
	return 0
}

func parseLocation(text string) string {
	for _, re := range locationPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		location := strings.TrimSpace(m[1])
		location = strings.TrimSpace(locationLeadingProximity.ReplaceAllString(location, ""))
		if location != "" && !slices.Contains(proximityOnly, strings.ToLower(location)) {
			return location
		}
		// The first matching pattern decides, even when it only found a proximity phrase.
		return ""
	}
	return ""
}

func parseQuery(searchText string) string {
	for _, re := range searchPatterns {
		m := re.FindStringSubmatch(searchText)
		if m == nil {
			continue
		}
		query := strings.TrimSpace(m[1])
		query = queryLeadingFiller.ReplaceAllString(query, "")
		query = queryTrailingProximity.ReplaceAllString(query, "")
		query = queryTrailingPrep.ReplaceAllString(query, "")
		query = strings.TrimSpace(query)

		lower := strings.ToLower(query)
		for _, phrase := range currentLocationPhrases {
			if strings.Contains(lower, phrase) {
				return ""
			}
		}
		if query == "" || slices.Contains(queryStopwords, lower) {
			return ""
		}
		return query
	}
	return ""
}

// MentionsCurrentLocation reports whether the message refers to the sender's position.
func MentionsCurrentLocation(text string) bool {
	return usesCurrentLocation.MatchString(Normalize(text))
}

// AcceptsAnything reports whether the sender said any kind of place is fine.
func AcceptsAnything(text string) bool {
	return acceptsAnything.MatchString(Normalize(text))
}
