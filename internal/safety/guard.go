// Package safety scans growing assistant text for policy violations: personal
// medical advice and promotional/upselling language. Label information stays
// allowed ("The recommended dose is 500mg"); personal advice is not ("I
// recommend you take 500mg").
package safety

import (
	"regexp"
	"strings"
)

// Verdict is the outcome of evaluating assistant text.
type Verdict struct {
	Violation bool
	Reason    string
}

type rule struct {
	pattern *regexp.Regexp
	reason  string
}

// Guard holds the ordered rule set. Construct once per process; Evaluate is
// safe for concurrent use.
type Guard struct {
	allowList []*regexp.Regexp
	rules     []rule
}

func NewGuard() *Guard {
	return &Guard{allowList: refusalAllowList, rules: violationRules}
}

// Evaluate checks the full buffered assistant text so far. It must always see
// the whole buffer, not the latest delta: a violating phrase can straddle
// stream chunk boundaries.
//
// Text that already matches a known refusal phrasing is never flagged, so the
// guard cannot block its own refusal.
func (g *Guard) Evaluate(text string) Verdict {
	if g == nil || strings.TrimSpace(text) == "" {
		return Verdict{}
	}
	for _, allowed := range g.allowList {
		if allowed.MatchString(text) {
			return Verdict{}
		}
	}
	for _, r := range g.rules {
		if r.pattern.MatchString(text) {
			return Verdict{Violation: true, Reason: r.reason}
		}
	}
	return Verdict{}
}

var refusalAllowList = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(can't|cannot|won't|am not able to) provide (personal )?medical advice\b`),
	regexp.MustCompile(`(?i)\bplease consult (a|your) (licensed )?(doctor|pharmacist|physician)\b`),
	regexp.MustCompile(`(?i)\bconsult your doctor or pharmacist\b`),
	regexp.MustCompile(`נא לפנות לרופא או רוקח`),
	regexp.MustCompile(`обратитесь к врачу`),
	regexp.MustCompile(`يرجى استشارة طبيب`),
}

var violationRules = buildRules()

func buildRules() []rule {
	type pattern struct {
		expr   string
		reason string
	}

	medical := []pattern{
		// English.
		{`(?i)\bdiagnos(e|is)\b`, "diagnosis"},
		{`(?i)\b(should (I|you) take|you should take|I should take)\b`, "direct advice"},
		{`(?i)\bI recommend( a| your)? dose\b`, "dose recommendation"},
		{`(?i)\b(increase|double) (your|the) dose\b`, "dose adjustment"},
		{`(?i)\b(avoid|don't take).*(interaction|with)\b`, "drug interaction advice"},
		{`(?i)\b(you can|you may|it's safe to)\s+take\b.*\bpregnan(t|cy)\b`, "pregnancy advice"},
		{`(?i)\bpregnan(t|cy)\b.*(you can|you may|it's safe to)\s+take\b`, "pregnancy advice"},
		{`(?i)\b(you can|you may|it's safe to)\s+take\b.*\bbreastfeed(ing)?\b`, "breastfeeding advice"},
		{`(?i)\ballerg(y|ies)?\b.*(you can|you may|it's safe to)\s+take\b`, "allergy advice"},
		{`(?i)\b(you can|you may|it's safe to)\s+take\b.*\ballerg(y|ies)?\b`, "allergy advice"},
		{`(?i)\bsafe for (me|you)\b`, "suitability judgment"},
		{`(?i)\b(this|that|it) is better (than|for)\b`, "comparative recommendation"},
		{`(?i)\bI recommend( this| that| the)? (medication|medicine)\b`, "medication recommendation"},
		{`(?i)\byou (should|need to|must) (start|stop|continue)\b`, "treatment advice"},
		{`(?i)\byou (should|can|may) (skip|miss) (a |your )?dose\b`, "dose modification advice"},
		// Hebrew.
		{`אני ממליץ (לך )?לקחת`, "direct advice"},
		{`כדאי לך לקחת`, "direct advice"},
		{`(להגדיל|להכפיל) את המינון`, "dose adjustment"},
		{`בטוח ל(קחת|השתמש) בהריון`, "pregnancy advice"},
		// Russian.
		{`(?i)я рекомендую (вам )?принимать`, "direct advice"},
		{`(?i)вам (следует|нужно|стоит) принимать`, "direct advice"},
		{`(?i)(увеличьте|удвойте) (вашу )?дозу`, "dose adjustment"},
		{`(?i)безопасно принимать при беременности`, "pregnancy advice"},
		// Arabic.
		{`أنصحك بتناول`, "direct advice"},
		{`يجب أن تتناول`, "direct advice"},
		{`(قم بزيادة|ضاعف) الجرعة`, "dose adjustment"},
		{`آمن أثناء الحمل`, "pregnancy advice"},
	}

	upsell := []pattern{
		// English.
		{`(?i)\byou should (buy|purchase|get)\b`, "purchase encouragement"},
		{`(?i)\bI recommend (buying|purchasing|getting)\b`, "purchase recommendation"},
		{`(?i)\b(great|good|best|excellent) (deal|value|price|buy)\b`, "promotional language"},
		{`(?i)\b(on sale|limited time|special offer|discount)\b`, "promotional language"},
		{`(?i)\b(hurry|act now|don't miss|while supplies last)\b`, "urgency marketing"},
		{`(?i)\b(cheaper|more affordable|better value) than\b`, "price comparison"},
		{`(?i)\bwhy not (try|get|buy)\b`, "purchase suggestion"},
		{`(?i)\byou('ll| will) (love|like|enjoy)\b`, "promotional endorsement"},
		// Hebrew.
		{`כדאי לך לקנות`, "purchase encouragement"},
		{`מבצע מיוחד`, "promotional language"},
		// Russian.
		{`(?i)вам стоит купить`, "purchase encouragement"},
		{`(?i)(специальное предложение|скидка)`, "promotional language"},
		// Arabic.
		{`أنصحك بشراء`, "purchase encouragement"},
		{`عرض خاص`, "promotional language"},
	}

	rules := make([]rule, 0, len(medical)+len(upsell))
	for _, s := range medical {
		rules = append(rules, rule{pattern: regexp.MustCompile(s.expr), reason: s.reason})
	}
	for _, s := range upsell {
		rules = append(rules, rule{pattern: regexp.MustCompile(s.expr), reason: s.reason})
	}
	return rules
}
