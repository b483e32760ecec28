package catalog

import (
	"testing"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	meds := []Medication{
		{
			ID:               "med_001",
			Names:            LocalizedText{"en": "Aspirin", "he": "אספירין", "ru": "Аспирин"},
			ActiveIngredient: LocalizedText{"en": "acetylsalicylic acid"},
			Dosage:           "500mg",
			PriceUSD:         4.5,
		},
		{
			ID:               "med_002",
			Names:            LocalizedText{"en": "Panadol", "he": "פנדול"},
			ActiveIngredient: LocalizedText{"en": "paracetamol"},
			Dosage:           "500mg",
		},
		{
			ID:               "med_003",
			Names:            LocalizedText{"en": "Panadol Extra"},
			ActiveIngredient: LocalizedText{"en": "paracetamol"},
			Dosage:           "500mg",
		},
	}
	pharmacies := []Pharmacy{
		{ID: "ph_001", Name: "Central Pharmacy", City: "Tel Aviv", ZipCode: "61000"},
		{ID: "ph_002", Name: "North Pharmacy", City: "Haifa", ZipCode: "31000"},
		{ID: "ph_003", Name: "South Pharmacy", City: "Beer Sheva", ZipCode: "84000"},
	}
	aliases := map[string]string{"tlv": "Tel Aviv", "ת\"א": "Tel Aviv"}
	c, err := New(meds, pharmacies, aliases)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestResolveMedication_ExactBeatsFuzzy(t *testing.T) {
	t.Parallel()

	c := testCatalog(t)
	res := c.ResolveMedication("  panadol ", "en")
	if !res.Matched || res.ID != "med_002" {
		t.Fatalf("res=%+v, want exact med_002", res)
	}
	if res.Distance != 0 {
		t.Fatalf("distance=%d, want 0", res.Distance)
	}
}

func TestResolveMedication_SingleFuzzyMatch(t *testing.T) {
	t.Parallel()

	c := testCatalog(t)
	res := c.ResolveMedication("aspirn", "en")
	if !res.Matched || res.ID != "med_001" {
		t.Fatalf("res=%+v, want med_001", res)
	}
	if res.Distance != 1 {
		t.Fatalf("distance=%d, want 1", res.Distance)
	}
}

func TestResolveMedication_CrossLanguageNames(t *testing.T) {
	t.Parallel()

	c := testCatalog(t)
	res := c.ResolveMedication("аспирин", "en")
	if !res.Matched || res.ID != "med_001" {
		t.Fatalf("res=%+v, want med_001 via Russian name", res)
	}
}

func TestResolveMedication_AmbiguousTieNeverSilentPick(t *testing.T) {
	t.Parallel()

	c := testCatalog(t)
	res := c.ResolveMedication("Panadl", "en")
	if res.Matched && res.ID == "" {
		t.Fatalf("matched with empty id: %+v", res)
	}
	// Either a single best match or an explicit ambiguity set; a silent
	// arbitrary pick would show up as Matched with the tie suppressed.
	if !res.Matched && !res.IsAmbiguous() {
		t.Fatalf("res=%+v, want match or ambiguity", res)
	}
	if res.IsAmbiguous() {
		ids := map[string]bool{}
		for _, cand := range res.Ambiguous {
			ids[cand.ID] = true
		}
		if !ids["med_002"] || !ids["med_003"] {
			t.Fatalf("ambiguous candidates=%+v, want med_002 and med_003", res.Ambiguous)
		}
	}
}

func TestResolveMedication_NoMatch(t *testing.T) {
	t.Parallel()

	c := testCatalog(t)
	if res := c.ResolveMedication("completely unrelated", "en"); res.Matched || res.IsAmbiguous() {
		t.Fatalf("res=%+v, want no match", res)
	}
}

func TestResolveMedication_MultiFieldEntityCountsOnce(t *testing.T) {
	t.Parallel()

	// "aspirin" moves within distance of both the English and Hebrew rows of
	// med_001; best-per-id reduction must keep that a single candidate.
	c := testCatalog(t)
	res := c.ResolveMedication("aspirin", "he")
	if !res.Matched || res.ID != "med_001" {
		t.Fatalf("res=%+v, want single med_001", res)
	}
}

func TestResolveCity_EmbeddedToken(t *testing.T) {
	t.Parallel()

	c := testCatalog(t)
	res := c.ResolveCity("closest pharmacy in Haifa please")
	if !res.Matched || res.Name != "Haifa" {
		t.Fatalf("res=%+v, want Haifa", res)
	}
}

func TestResolveCity_FuzzyToken(t *testing.T) {
	t.Parallel()

	c := testCatalog(t)
	res := c.ResolveCity("pharmacies near Hifa")
	if !res.Matched || res.Name != "Haifa" {
		t.Fatalf("res=%+v, want Haifa", res)
	}
}

func TestResolveCity_AliasFallback(t *testing.T) {
	t.Parallel()

	c := testCatalog(t)
	res := c.ResolveCity("TLV")
	if !res.Matched || res.Name != "Tel Aviv" {
		t.Fatalf("res=%+v, want Tel Aviv via alias", res)
	}
}

func TestCities_SortedUnique(t *testing.T) {
	t.Parallel()

	c := testCatalog(t)
	got := c.Cities()
	want := []string{"Beer Sheva", "Haifa", "Tel Aviv"}
	if len(got) != len(want) {
		t.Fatalf("cities=%v, want=%v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cities=%v, want=%v", got, want)
		}
	}
}

func TestLocalizedText_EnglishFallback(t *testing.T) {
	t.Parallel()

	names := LocalizedText{"en": "Aspirin", "he": "אספירין"}
	if got := names.Value("ru"); got != "Aspirin" {
		t.Fatalf("got=%q, want English fallback", got)
	}
	if got := names.Value("he"); got != "אספירין" {
		t.Fatalf("got=%q, want Hebrew", got)
	}
}
