package agent

import (
	"regexp"
	"strings"

	"github.com/medkiosk/pharma-agent/internal/catalog"
	"github.com/medkiosk/pharma-agent/internal/i18n"
	"github.com/medkiosk/pharma-agent/internal/textmatch"
)

// Supported tool names.
const (
	ToolGetMedicationInfo    = "get_medication_info"
	ToolResolveMedicationID  = "resolve_medication_id"
	ToolSearchByIngredient   = "search_by_ingredient"
	ToolFindNearestPharmacy  = "find_nearest_pharmacy"
	ToolCheckStock           = "check_stock"
	ToolGetHandlingWarnings  = "get_handling_warnings"
	ToolGetUserPrescriptions = "get_user_prescriptions"
)

// languageTools accept a "lang" argument; the runner injects the turn's
// language once required arguments are present.
var languageTools = map[string]bool{
	ToolGetMedicationInfo:    true,
	ToolResolveMedicationID:  true,
	ToolSearchByIngredient:   true,
	ToolFindNearestPharmacy:  true,
	ToolGetHandlingWarnings:  true,
	ToolGetUserPrescriptions: true,
}

func IsLanguageTool(name string) bool { return languageTools[name] }

// HasRequiredArguments checks the tool-specific required fields.
func HasRequiredArguments(name string, args map[string]string) bool {
	switch name {
	case ToolGetMedicationInfo:
		return args["query"] != ""
	case ToolResolveMedicationID:
		return args["name"] != ""
	case ToolSearchByIngredient:
		return args["ingredient"] != ""
	case ToolFindNearestPharmacy:
		return args["zip_code"] != "" || args["city"] != ""
	case ToolCheckStock, ToolGetHandlingWarnings:
		return args["med_id"] != ""
	case ToolGetUserPrescriptions:
		return true
	}
	return len(args) > 0
}

var zipPattern = regexp.MustCompile(`\b(\d{5,7})\b`)

// Inferrer recovers missing tool arguments from the last user utterance. It
// only ever proposes entities present in the catalog; an ambiguous fuzzy
// match across distinct medications yields no inference rather than a guess.
type Inferrer struct {
	catalog *catalog.Catalog
}

func NewInferrer(c *catalog.Catalog) *Inferrer {
	return &Inferrer{catalog: c}
}

// Infer attempts to fill toolName's arguments from text. Returns nil when
// nothing could be recovered.
func (n *Inferrer) Infer(toolName, text, lang string) map[string]string {
	text = strings.TrimSpace(text)
	if n == nil || n.catalog == nil || text == "" {
		return nil
	}
	lang = i18n.NormalizeLang(lang)

	if toolName == ToolFindNearestPharmacy {
		if res := n.catalog.ResolveCity(text); res.Matched {
			return map[string]string{"city": res.Name, "lang": lang}
		}
		if m := zipPattern.FindStringSubmatch(text); m != nil {
			return map[string]string{"zip_code": m[1], "lang": lang}
		}
		return nil
	}

	match := n.matchMedication(text, lang)
	if match == nil {
		return nil
	}

	switch toolName {
	case ToolGetMedicationInfo:
		if match.name != "" {
			return map[string]string{"query": match.name, "lang": match.lang}
		}
	case ToolResolveMedicationID:
		if match.name != "" {
			return map[string]string{"name": match.name, "lang": match.lang}
		}
	case ToolSearchByIngredient:
		if match.active != "" {
			return map[string]string{"ingredient": match.active, "lang": match.lang}
		}
	case ToolCheckStock, ToolGetHandlingWarnings:
		if match.id != "" {
			return map[string]string{"med_id": match.id}
		}
	}
	return nil
}

type medMatch struct {
	id     string
	name   string
	active string
	lang   string
}

// matchMedication scans the catalog for a medication mentioned in text,
// trying the detected language first and then the remaining supported
// languages. An exact (case-insensitive) substring hit on a name or active
// ingredient wins; otherwise word tokens are fuzzy-matched against names
// within edit distance 2.
func (n *Inferrer) matchMedication(text, lang string) *medMatch {
	foldText := strings.ToLower(text)
	languages := orderedLanguages(lang)

	for _, l := range languages {
		for _, med := range n.catalog.Medications() {
			name := strings.TrimSpace(med.Names[l])
			active := strings.TrimSpace(med.ActiveIngredient[l])
			if name != "" && strings.Contains(foldText, strings.ToLower(name)) {
				return &medMatch{id: med.ID, name: name, active: active, lang: l}
			}
			if active != "" && strings.Contains(foldText, strings.ToLower(active)) {
				return &medMatch{id: med.ID, name: name, active: active, lang: l}
			}
		}
	}

	tokens := catalog.Tokens(text)
	if len(tokens) == 0 {
		return nil
	}
	for _, l := range languages {
		if match := n.fuzzyTokenMatch(tokens, l); match != nil {
			return match
		}
	}
	return nil
}

func (n *Inferrer) fuzzyTokenMatch(tokens []string, lang string) *medMatch {
	const maxDistance = 2
	bestDistance := maxDistance + 1
	var bestIDs []string
	var best *medMatch

	for _, token := range tokens {
		tokenNorm := textmatch.Normalize(token)
		if len([]rune(tokenNorm)) < 4 {
			continue
		}
		for _, med := range n.catalog.Medications() {
			name := strings.TrimSpace(med.Names[lang])
			if name == "" {
				continue
			}
			nameNorm := textmatch.Normalize(name)
			if len([]rune(nameNorm)) < 4 {
				continue
			}
			d := textmatch.Distance(tokenNorm, nameNorm, maxDistance)
			if d > maxDistance {
				continue
			}
			switch {
			case d < bestDistance:
				bestDistance = d
				bestIDs = []string{med.ID}
				best = &medMatch{id: med.ID, name: name, active: strings.TrimSpace(med.ActiveIngredient[lang]), lang: lang}
			case d == bestDistance && !containsString(bestIDs, med.ID):
				bestIDs = append(bestIDs, med.ID)
			}
		}
	}
	// ties across distinct medications are ambiguity, not a pick
	if len(bestIDs) != 1 {
		return nil
	}
	return best
}

func orderedLanguages(first string) []string {
	out := []string{first}
	for _, l := range i18n.SupportedLanguages {
		if l != first {
			out = append(out, l)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// intentKeywords drive the forced tool choice on a turn's first model call.
// A tool is forced only when the keywords fire and inference can actually
// produce valid arguments for it, so the model is never forced into a call
// it cannot complete.
var intentKeywords = []struct {
	tool     string
	keywords []string
}{
	{ToolCheckStock, []string{
		"in stock", "stock", "availability", "available",
		"במלאי", "מלאי", "זמין",
		"в наличии", "наличие", "есть ли",
		"متوفر", "مخزون",
	}},
	{ToolSearchByIngredient, []string{
		"ingredient", "contains", "contain",
		"מכיל", "רכיב פעיל",
		"содержит", "ингредиент",
		"يحتوي", "مكون",
	}},
	{ToolFindNearestPharmacy, []string{
		"pharmacy", "nearest", "near me", "branch",
		"בית מרקחת", "סניף",
		"аптека", "ближайш",
		"صيدلية", "فرع",
	}},
}

// ForcedToolChoice picks a tool to force on step 0 when the user's text
// carries an unambiguous tool intent. Returns "" for free model choice.
func (n *Inferrer) ForcedToolChoice(text, lang string) string {
	text = strings.TrimSpace(text)
	if n == nil || text == "" {
		return ""
	}
	foldText := strings.ToLower(text)
	for _, intent := range intentKeywords {
		for _, kw := range intent.keywords {
			if !strings.Contains(foldText, kw) {
				continue
			}
			args := n.Infer(intent.tool, text, lang)
			if HasRequiredArguments(intent.tool, args) && len(args) > 0 {
				return intent.tool
			}
			break
		}
	}
	return ""
}
