// Package catalog holds the immutable medication and pharmacy reference data
// plus fuzzy entity resolution against it. A Catalog is loaded once at process
// start and never mutated; concurrent reads need no locking.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/medkiosk/pharma-agent/internal/i18n"
)

// LocalizedText maps a language code to a translated value.
type LocalizedText map[string]string

// Value returns the text for lang, falling back to English.
func (t LocalizedText) Value(lang string) string {
	if t == nil {
		return ""
	}
	if v := strings.TrimSpace(t[i18n.NormalizeLang(lang)]); v != "" {
		return v
	}
	return strings.TrimSpace(t[i18n.LangEnglish])
}

type Medication struct {
	ID                   string        `json:"id"`
	Names                LocalizedText `json:"names"`
	ActiveIngredient     LocalizedText `json:"active_ingredient"`
	Dosage               string        `json:"dosage"`
	PrescriptionRequired bool          `json:"prescription_required"`
	PriceUSD             float64       `json:"price_usd"`
	UsageInstructions    LocalizedText `json:"usage_instructions"`
	Warnings             LocalizedText `json:"warnings"`
	Category             LocalizedText `json:"category"`
}

type Pharmacy struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Address  string            `json:"address"`
	City     string            `json:"city"`
	ZipCode  string            `json:"zip_code"`
	Phone    string            `json:"phone"`
	Hours    map[string]string `json:"hours"`
	Services []string          `json:"services"`
}

// Catalog is the process-wide read-only entity store.
type Catalog struct {
	medications []Medication
	byID        map[string]Medication
	pharmacies  []Pharmacy
	cityAliases map[string]string // normalized alias -> canonical city
}

func New(medications []Medication, pharmacies []Pharmacy, cityAliases map[string]string) (*Catalog, error) {
	if len(medications) == 0 {
		return nil, errors.New("empty medication catalog")
	}
	byID := make(map[string]Medication, len(medications))
	for _, med := range medications {
		id := strings.TrimSpace(med.ID)
		if id == "" {
			return nil, errors.New("medication with empty id")
		}
		if _, exists := byID[id]; exists {
			return nil, fmt.Errorf("duplicate medication id %q", id)
		}
		byID[id] = med
	}
	aliases := make(map[string]string, len(cityAliases))
	for alias, city := range cityAliases {
		aliases[normalizeKey(alias)] = city
	}
	return &Catalog{
		medications: medications,
		byID:        byID,
		pharmacies:  pharmacies,
		cityAliases: aliases,
	}, nil
}

// LoadJSON builds a catalog from the medications file and an optional pharmacy
// locations file.
func LoadJSON(medicationsPath, pharmaciesPath string) (*Catalog, error) {
	raw, err := os.ReadFile(medicationsPath)
	if err != nil {
		return nil, fmt.Errorf("read medications: %w", err)
	}
	var medFile struct {
		Medications []Medication      `json:"medications"`
		CityAliases map[string]string `json:"city_aliases"`
	}
	if err := json.Unmarshal(raw, &medFile); err != nil {
		return nil, fmt.Errorf("parse medications: %w", err)
	}

	pharmacies, err := LoadPharmacies(pharmaciesPath)
	if err != nil {
		return nil, err
	}
	return New(medFile.Medications, pharmacies, medFile.CityAliases)
}

// LoadPharmacies reads the pharmacy locations file; an empty path yields an
// empty list (the locator tool then reports no known cities).
func LoadPharmacies(path string) ([]Pharmacy, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pharmacies: %w", err)
	}
	var pharmacies []Pharmacy
	if err := json.Unmarshal(raw, &pharmacies); err != nil {
		return nil, fmt.Errorf("parse pharmacies: %w", err)
	}
	return pharmacies, nil
}

func (c *Catalog) Medications() []Medication {
	return c.medications
}

func (c *Catalog) MedicationByID(id string) (Medication, bool) {
	med, ok := c.byID[strings.TrimSpace(id)]
	return med, ok
}

func (c *Catalog) Pharmacies() []Pharmacy {
	return c.pharmacies
}

// Cities returns the distinct pharmacy cities, sorted for deterministic
// user-facing listings.
func (c *Catalog) Cities() []string {
	cities := lo.Uniq(lo.FilterMap(c.pharmacies, func(p Pharmacy, _ int) (string, bool) {
		city := strings.TrimSpace(p.City)
		return city, city != ""
	}))
	sort.Strings(cities)
	return cities
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
