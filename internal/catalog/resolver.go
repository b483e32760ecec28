package catalog

import (
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/medkiosk/pharma-agent/internal/i18n"
	"github.com/medkiosk/pharma-agent/internal/textmatch"
)

// MaxEditDistance is the fuzzy-match threshold over normalized text.
const MaxEditDistance = 2

// maxAmbiguousCandidates caps the options surfaced to the user on a tie.
const maxAmbiguousCandidates = 3

// Candidate is one fuzzy-match result for a query.
type Candidate struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	Distance    int    `json:"distance"`
}

// Resolution is the outcome of resolving free text against the catalog.
// Exactly one of the three shapes holds: a single match (Matched), an
// ambiguous tie (len(Ambiguous) >= 2), or no match at all.
type Resolution struct {
	Matched   bool
	ID        string
	Name      string
	Distance  int
	Ambiguous []Candidate
}

func (r Resolution) IsAmbiguous() bool {
	return len(r.Ambiguous) >= 2
}

// entityField is one matchable name belonging to an entity; entities with
// several translated names contribute several fields under one id.
type entityField struct {
	id   string
	name string
}

// resolve implements the shared resolution algorithm: exact case-insensitive
// match first, then bounded fuzzy distance with a best-per-id reduction so a
// multi-field entity never competes with itself.
func resolve(query string, fields []entityField) Resolution {
	query = strings.TrimSpace(query)
	if query == "" || len(fields) == 0 {
		return Resolution{}
	}

	for _, f := range fields {
		if strings.EqualFold(strings.TrimSpace(f.name), query) {
			return Resolution{Matched: true, ID: f.id, Name: f.name}
		}
	}

	queryNorm := textmatch.Normalize(query)
	if queryNorm == "" {
		return Resolution{}
	}

	type best struct {
		name     string
		distance int
	}
	bestByID := map[string]best{}
	for _, f := range fields {
		nameNorm := textmatch.Normalize(f.name)
		if nameNorm == "" {
			continue
		}
		d := textmatch.Distance(queryNorm, nameNorm, MaxEditDistance)
		if d > MaxEditDistance {
			continue
		}
		if cur, ok := bestByID[f.id]; !ok || d < cur.distance {
			bestByID[f.id] = best{name: f.name, distance: d}
		}
	}
	if len(bestByID) == 0 {
		return Resolution{}
	}

	minDistance := MaxEditDistance + 1
	for _, b := range bestByID {
		if b.distance < minDistance {
			minDistance = b.distance
		}
	}
	tied := make([]Candidate, 0, len(bestByID))
	for id, b := range bestByID {
		if b.distance == minDistance {
			tied = append(tied, Candidate{ID: id, DisplayName: b.name, Distance: b.distance})
		}
	}
	if len(tied) == 1 {
		return Resolution{Matched: true, ID: tied[0].ID, Name: tied[0].DisplayName, Distance: minDistance}
	}

	// Deterministic candidate order for user-facing clarification.
	sortCandidates(tied)
	if len(tied) > maxAmbiguousCandidates {
		tied = tied[:maxAmbiguousCandidates]
	}
	return Resolution{Ambiguous: tied}
}

func sortCandidates(cs []Candidate) {
	for i := 1; i < len(cs); i++ {
		for j := i; j > 0 && cs[j].ID < cs[j-1].ID; j-- {
			cs[j], cs[j-1] = cs[j-1], cs[j]
		}
	}
}

// ResolveMedication matches free text against medication names, preferring
// lang but considering every translation (best-per-id keeps multi-language
// entries from double counting).
func (c *Catalog) ResolveMedication(query, lang string) Resolution {
	lang = i18n.NormalizeLang(lang)
	fields := make([]entityField, 0, len(c.medications)*2)
	for _, med := range c.medications {
		if name := strings.TrimSpace(med.Names[lang]); name != "" {
			fields = append(fields, entityField{id: med.ID, name: name})
		}
	}
	for _, med := range c.medications {
		for fieldLang, name := range med.Names {
			if fieldLang == lang {
				continue
			}
			if name = strings.TrimSpace(name); name != "" {
				fields = append(fields, entityField{id: med.ID, name: name})
			}
		}
	}
	return resolve(query, fields)
}

var wordTokenPattern = regexp.MustCompile(`[A-Za-z\x{0590}-\x{05FF}\x{0400}-\x{04FF}\x{0600}-\x{06FF}]+`)

// Tokens splits free text into word tokens across the supported scripts.
func Tokens(text string) []string {
	return wordTokenPattern.FindAllString(text, -1)
}

// ResolveCity matches free text against known pharmacy cities. A city name may
// be embedded in a longer phrase, so beyond whole-query matching every word
// token is tried as well; when nothing lands within the distance threshold the
// curated alias list is the last resort.
func (c *Catalog) ResolveCity(query string) Resolution {
	query = strings.TrimSpace(query)
	cities := c.Cities()
	if query == "" || len(cities) == 0 {
		return Resolution{}
	}
	fields := lo.Map(cities, func(city string, _ int) entityField {
		return entityField{id: city, name: city}
	})

	if res := resolve(query, fields); res.Matched || res.IsAmbiguous() {
		return res
	}
	for _, token := range Tokens(query) {
		if res := resolve(token, fields); res.Matched || res.IsAmbiguous() {
			return res
		}
	}

	if city, ok := c.cityAliases[normalizeKey(query)]; ok {
		return Resolution{Matched: true, ID: city, Name: city}
	}
	for _, token := range Tokens(query) {
		if city, ok := c.cityAliases[normalizeKey(token)]; ok {
			return Resolution{Matched: true, ID: city, Name: city}
		}
	}
	return Resolution{}
}
