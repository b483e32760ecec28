package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/medkiosk/pharma-agent/internal/catalog"
	"github.com/medkiosk/pharma-agent/internal/i18n"
	"github.com/medkiosk/pharma-agent/internal/userdb"
)

func testDeps(t *testing.T) Deps {
	t.Helper()
	medications := []catalog.Medication{
		{
			ID:               "med_001",
			Names:            catalog.LocalizedText{"en": "Aspirin", "he": "אספירין", "ru": "Аспирин"},
			ActiveIngredient: catalog.LocalizedText{"en": "acetylsalicylic acid", "ru": "ацетилсалициловая кислота"},
			Dosage:           "500mg",
			PriceUSD:         4.5,
			Warnings:         catalog.LocalizedText{"en": "Do not combine with blood thinners."},
			Category:         catalog.LocalizedText{"en": "Pain relief"},
		},
		{
			ID:               "med_002",
			Names:            catalog.LocalizedText{"en": "Ibuprofen"},
			ActiveIngredient: catalog.LocalizedText{"en": "ibuprofen"},
			Dosage:           "200mg",
			PriceUSD:         6.0,
			Category:         catalog.LocalizedText{"en": "Pain relief"},
		},
		{
			ID:                   "med_003",
			Names:                catalog.LocalizedText{"en": "Prednal"},
			ActiveIngredient:     catalog.LocalizedText{"en": "prednisolone"},
			Dosage:               "5mg",
			PrescriptionRequired: true,
			Warnings:             catalog.LocalizedText{"en": "Taper off gradually."},
			Category:             catalog.LocalizedText{"en": "Steroids"},
		},
		{
			ID:               "med_004",
			Names:            catalog.LocalizedText{"en": "Prednol"},
			ActiveIngredient: catalog.LocalizedText{"en": "methylprednisolone"},
			Dosage:           "4mg",
			Category:         catalog.LocalizedText{"en": "Steroids"},
		},
	}
	pharmacies := []catalog.Pharmacy{
		{
			ID: "ph_001", Name: "Central Pharmacy", Address: "1 Rothschild Blvd",
			City: "Tel Aviv", ZipCode: "6100001", Phone: "03-1234567",
			Hours:    map[string]string{"sunday": "8-20", "monday": "8-20", "friday": "8-14"},
			Services: []string{"prescriptions"},
		},
		{
			ID: "ph_002", Name: "Bay Pharmacy", Address: "5 Haneviim St",
			City: "Haifa", ZipCode: "3100002", Phone: "04-7654321",
			Hours: map[string]string{"sunday": "9-19", "monday": "9-19", "friday": "9-13", "saturday": "10-14"},
		},
	}
	cat, err := catalog.New(medications, pharmacies, map[string]string{"tlv": "Tel Aviv"})
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	messages, err := i18n.Load()
	if err != nil {
		t.Fatalf("load messages: %v", err)
	}
	users, err := userdb.Open(filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("open userdb: %v", err)
	}
	t.Cleanup(func() { _ = users.Close() })
	return Deps{Catalog: cat, Messages: messages, Users: users}
}

func testHandlers(t *testing.T) (Deps, map[string]func(context.Context, map[string]string) (map[string]any, error)) {
	t.Helper()
	deps := testDeps(t)
	handlers := make(map[string]func(context.Context, map[string]string) (map[string]any, error))
	for _, h := range All(deps) {
		handlers[h.Name()] = h.Execute
	}
	return deps, handlers
}

func TestMedicationInfo(t *testing.T) {
	t.Parallel()
	_, handlers := testHandlers(t)
	execute := handlers["get_medication_info"]

	result, err := execute(context.Background(), map[string]string{"query": "med_001", "lang": "en"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["success"] != true {
		t.Fatalf("lookup by id failed: %v", result)
	}
	med := result["medication"].(map[string]any)
	if med["name"] != "Aspirin" || med["warnings"] != "Do not combine with blood thinners." {
		t.Fatalf("unexpected medication payload %v", med)
	}

	result, err = execute(context.Background(), map[string]string{"query": "aspirn", "lang": "en"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["success"] != true {
		t.Fatalf("fuzzy lookup failed: %v", result)
	}
	if result["medication"].(map[string]any)["id"] != "med_001" {
		t.Fatalf("fuzzy lookup resolved wrong medication: %v", result)
	}

	result, err = execute(context.Background(), map[string]string{"query": "prednil", "lang": "en"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["error"] != "ambiguous_match" {
		t.Fatalf("got=%v, want=ambiguous_match", result["error"])
	}
	if got := result["candidates"].([]string); len(got) != 2 {
		t.Fatalf("got=%d candidates, want=2", len(got))
	}

	result, err = execute(context.Background(), map[string]string{"query": "nonexistium", "lang": "en"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["success"] != false {
		t.Fatalf("expected not-found payload, got %v", result)
	}
}

func TestResolveMedicationID(t *testing.T) {
	t.Parallel()
	_, handlers := testHandlers(t)
	execute := handlers["resolve_medication_id"]

	result, err := execute(context.Background(), map[string]string{"name": "Аспирин", "lang": "ru"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["success"] != true || result["id"] != "med_001" {
		t.Fatalf("unexpected resolution %v", result)
	}
	if result["name"] != "Аспирин" {
		t.Fatalf("got=%v, want localized name", result["name"])
	}

	result, err = execute(context.Background(), map[string]string{"lang": "en"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["success"] != false || !strings.Contains(result["error"].(string), "name") {
		t.Fatalf("expected missing-name payload, got %v", result)
	}
}

func TestSearchByIngredient(t *testing.T) {
	t.Parallel()
	_, handlers := testHandlers(t)
	execute := handlers["search_by_ingredient"]

	result, err := execute(context.Background(), map[string]string{"ingredient": "Ibuprofen", "lang": "en"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["matches"] != 1 {
		t.Fatalf("got=%v matches, want=1", result["matches"])
	}
	meds := result["medications"].([]map[string]any)
	if meds[0]["id"] != "med_002" {
		t.Fatalf("unexpected match %v", meds[0])
	}

	// partial input falls through to the fuzzy pass
	result, err = execute(context.Background(), map[string]string{"ingredient": "ibuprof", "lang": "en"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["matches"] != 1 {
		t.Fatalf("got=%v matches for partial input, want=1", result["matches"])
	}

	result, err = execute(context.Background(), map[string]string{"ingredient": "unobtainium", "lang": "en"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["success"] != true || result["matches"] != 0 || result["message"] == "" {
		t.Fatalf("expected empty result with message, got %v", result)
	}
}

func findStockHandler(t *testing.T, deps Deps) *stockHandler {
	t.Helper()
	for _, h := range All(deps) {
		if s, ok := h.(*stockHandler); ok {
			return s
		}
	}
	t.Fatal("stock handler not registered")
	return nil
}

func TestCheckStock(t *testing.T) {
	t.Parallel()
	deps := testDeps(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/check_stock/med_001":
			w.Write([]byte(`{"id":"med_001","in_stock":true}`))
		case "/check_stock/med_404":
			w.WriteHeader(http.StatusNotFound)
		case "/check_stock/med_garbage":
			w.Write([]byte(`not json`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)

	deps.InventoryBaseURL = server.URL
	handler := findStockHandler(t, deps)

	cases := []struct {
		medID     string
		wantError string
		wantStock any
	}{
		{"med_001", "", true},
		{"med_404", "not_found", nil},
		{"med_garbage", "invalid_response", nil},
		{"med_500", "http_error", nil},
	}
	for _, tc := range cases {
		result, err := handler.Execute(context.Background(), map[string]string{"med_id": tc.medID, "lang": "en"})
		if err != nil {
			t.Fatalf("execute %s: %v", tc.medID, err)
		}
		if tc.wantError == "" {
			if result["success"] != true || result["in_stock"] != tc.wantStock {
				t.Fatalf("%s: unexpected payload %v", tc.medID, result)
			}
			continue
		}
		if result["error"] != tc.wantError {
			t.Fatalf("%s: got=%v, want=%v", tc.medID, result["error"], tc.wantError)
		}
	}
}

func TestCheckStock_ServiceDown(t *testing.T) {
	t.Parallel()
	deps := testDeps(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	deps.InventoryBaseURL = baseURL
	handler := findStockHandler(t, deps)

	result, err := handler.Execute(context.Background(), map[string]string{"med_id": "med_001", "lang": "en"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["error"] != "service_unavailable" {
		t.Fatalf("got=%v, want=service_unavailable", result["error"])
	}
}

func TestFindNearestPharmacy(t *testing.T) {
	t.Parallel()
	_, handlers := testHandlers(t)
	execute := handlers["find_nearest_pharmacy"]

	result, err := execute(context.Background(), map[string]string{"zip_code": "61000", "lang": "en"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["count"] != 1 {
		t.Fatalf("got=%v pharmacies by zip, want=1", result["count"])
	}
	pharmacy := result["pharmacies"].([]map[string]any)[0]
	if pharmacy["id"] != "ph_001" {
		t.Fatalf("unexpected pharmacy %v", pharmacy)
	}
	if pharmacy["hours"] != "Sun: 8-20, Mon-Thu: 8-20, Fri: 8-14, Sat: Closed" {
		t.Fatalf("unexpected hours format %v", pharmacy["hours"])
	}

	// misspelled city goes through fuzzy resolution
	result, err = execute(context.Background(), map[string]string{"city": "Haifia", "lang": "en"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["count"] != 1 || result["searched_location"] != "Haifa" {
		t.Fatalf("unexpected fuzzy city result %v", result)
	}

	result, err = execute(context.Background(), map[string]string{"city": "Atlantis", "lang": "en"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["location_not_found"] != true {
		t.Fatalf("expected location_not_found, got %v", result)
	}
	if msg := result["message"].(string); !strings.Contains(msg, "Haifa") || !strings.Contains(msg, "Tel Aviv") {
		t.Fatalf("available cities missing from message %q", msg)
	}

	result, err = execute(context.Background(), map[string]string{"lang": "en"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["error"] != "missing_location" {
		t.Fatalf("got=%v, want=missing_location", result["error"])
	}
}

func TestGetUserPrescriptions(t *testing.T) {
	t.Parallel()
	deps, handlers := testHandlers(t)
	execute := handlers["get_user_prescriptions"]
	ctx := context.Background()

	seed := []userdb.Prescription{
		{PatientID: "user_42", MedID: "med_001", Dosage: "500mg", Status: userdb.StatusReady},
		{PatientID: "user_42", MedID: "med_003", Dosage: "5mg", Status: userdb.StatusExpired},
	}
	for _, p := range seed {
		if err := deps.Users.AddPrescription(ctx, p); err != nil {
			t.Fatalf("seed prescription: %v", err)
		}
	}

	result, err := execute(ctx, map[string]string{"user_id": "user_42", "lang": "en"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["count"] != 1 {
		t.Fatalf("got=%v active prescriptions, want=1", result["count"])
	}
	entry := result["prescriptions"].([]map[string]any)[0]
	if entry["med_name"] != "Aspirin" || entry["status"] != userdb.StatusReady {
		t.Fatalf("unexpected prescription payload %v", entry)
	}

	result, err = execute(ctx, map[string]string{"user_id": "user_42", "active_only": "false", "lang": "en"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["count"] != 2 {
		t.Fatalf("got=%v prescriptions, want=2", result["count"])
	}

	result, err = execute(ctx, map[string]string{"user_id": "user_99", "lang": "en"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["count"] != 0 || result["message"] == "" {
		t.Fatalf("expected empty listing with message, got %v", result)
	}

	result, err = execute(ctx, map[string]string{"lang": "en"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["error"] != "missing_user" {
		t.Fatalf("got=%v, want=missing_user", result["error"])
	}
}

func TestGetHandlingWarnings(t *testing.T) {
	t.Parallel()
	_, handlers := testHandlers(t)
	execute := handlers["get_handling_warnings"]

	result, err := execute(context.Background(), map[string]string{"med_id": "med_003", "lang": "en"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["success"] != true || result["medication_name"] != "Prednal" {
		t.Fatalf("unexpected payload %v", result)
	}
	instructions := result["handling_instructions"].([]string)
	if len(instructions) != 3 {
		t.Fatalf("got=%d instructions for rx medication, want=3", len(instructions))
	}
	if result["label_warnings"] != "Taper off gradually." {
		t.Fatalf("unexpected label warnings %v", result["label_warnings"])
	}

	result, err = execute(context.Background(), map[string]string{"med_id": "med_001", "lang": "en"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := result["handling_instructions"].([]string); len(got) != 2 {
		t.Fatalf("got=%d instructions for otc medication, want=2", len(got))
	}

	result, err = execute(context.Background(), map[string]string{"med_id": "med_999", "lang": "en"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["error"] != "not_found" {
		t.Fatalf("got=%v, want=not_found", result["error"])
	}
}
