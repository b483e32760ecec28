package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/medkiosk/pharma-agent/internal/i18n"
)

// DB is a SQLite-backed medication source. It exists to load the catalog at
// startup (and to seed it); resolution always runs against the in-memory
// Catalog, never against the database.
type DB struct {
	db *sql.DB
}

func OpenDB(path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("missing db path")
	}
	p := filepath.Clean(strings.TrimSpace(path))
	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS medications (
			id TEXT PRIMARY KEY,
			dosage TEXT NOT NULL,
			prescription_required INTEGER NOT NULL,
			price_usd REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS medication_i18n (
			medication_id TEXT NOT NULL REFERENCES medications(id),
			language TEXT NOT NULL,
			name TEXT NOT NULL,
			active_ingredient TEXT NOT NULL,
			usage_instructions TEXT NOT NULL,
			warnings TEXT NOT NULL,
			category TEXT NOT NULL,
			PRIMARY KEY (medication_id, language)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// SaveMedication upserts one medication with all of its translations. Used by
// the catalog seeding path and tests; the serving process never writes.
func (d *DB) SaveMedication(ctx context.Context, med Medication) error {
	if d == nil || d.db == nil {
		return errors.New("db not initialized")
	}
	if strings.TrimSpace(med.ID) == "" {
		return errors.New("medication with empty id")
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO medications (id, dosage, prescription_required, price_usd)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET dosage=excluded.dosage,
			prescription_required=excluded.prescription_required,
			price_usd=excluded.price_usd`,
		med.ID, med.Dosage, boolToInt(med.PrescriptionRequired), med.PriceUSD,
	); err != nil {
		return err
	}
	for _, lang := range i18n.SupportedLanguages {
		name := strings.TrimSpace(med.Names[lang])
		if name == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO medication_i18n
				(medication_id, language, name, active_ingredient, usage_instructions, warnings, category)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(medication_id, language) DO UPDATE SET
				name=excluded.name,
				active_ingredient=excluded.active_ingredient,
				usage_instructions=excluded.usage_instructions,
				warnings=excluded.warnings,
				category=excluded.category`,
			med.ID, lang, name, med.ActiveIngredient[lang], med.UsageInstructions[lang],
			med.Warnings[lang], med.Category[lang],
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadMedications reads the full medication set with translations.
func (d *DB) LoadMedications(ctx context.Context) ([]Medication, error) {
	if d == nil || d.db == nil {
		return nil, errors.New("db not initialized")
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, dosage, prescription_required, price_usd FROM medications ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meds []Medication
	index := map[string]int{}
	for rows.Next() {
		var med Medication
		var rx int
		if err := rows.Scan(&med.ID, &med.Dosage, &rx, &med.PriceUSD); err != nil {
			return nil, err
		}
		med.PrescriptionRequired = rx != 0
		med.Names = LocalizedText{}
		med.ActiveIngredient = LocalizedText{}
		med.UsageInstructions = LocalizedText{}
		med.Warnings = LocalizedText{}
		med.Category = LocalizedText{}
		index[med.ID] = len(meds)
		meds = append(meds, med)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	i18nRows, err := d.db.QueryContext(ctx,
		`SELECT medication_id, language, name, active_ingredient, usage_instructions, warnings, category
		 FROM medication_i18n`)
	if err != nil {
		return nil, err
	}
	defer i18nRows.Close()
	for i18nRows.Next() {
		var medID, lang, name, ingredient, usage, warnings, category string
		if err := i18nRows.Scan(&medID, &lang, &name, &ingredient, &usage, &warnings, &category); err != nil {
			return nil, err
		}
		idx, ok := index[medID]
		if !ok {
			continue
		}
		meds[idx].Names[lang] = name
		meds[idx].ActiveIngredient[lang] = ingredient
		meds[idx].UsageInstructions[lang] = usage
		meds[idx].Warnings[lang] = warnings
		meds[idx].Category[lang] = category
	}
	if err := i18nRows.Err(); err != nil {
		return nil, err
	}
	return meds, nil
}

// LoadSQLite builds a catalog from the medications database plus the pharmacy
// locations file.
func LoadSQLite(ctx context.Context, dbPath, pharmaciesPath string) (*Catalog, error) {
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	meds, err := db.LoadMedications(ctx)
	if err != nil {
		return nil, err
	}

	pharmacies, err := LoadPharmacies(pharmaciesPath)
	if err != nil {
		return nil, err
	}
	return New(meds, pharmacies, nil)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
