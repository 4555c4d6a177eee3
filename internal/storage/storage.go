// Package storage keeps the client-local mirror of medication plans, the
// per-day slot resolution ledger and the dose-event outbox in sqlite, so
// a restart does not lose today's counters or unsynced events.
package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"medminder/internal/models"
)

//go:embed schema.sql
var ddl embed.FS

type DB struct{ *sql.DB }

func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	if err = migrate(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func migrate(db *sql.DB) error {
	b, err := ddl.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}

// ---------- plans -----------------------------------------------------------

// UpsertPlan mirrors the descriptive fields of a plan fetched from the
// care API. Day counters are untouched; SavePlanDay owns those.
func (d *DB) UpsertPlan(p *models.MedicationPlan) error {
	times, err := json.Marshal([]string(p.TimesOfDay))
	if err != nil {
		return err
	}
	_, err = d.Exec(`
        INSERT INTO plans (id, name, dosage, category, times, status, start_date, end_date, updated_at)
        VALUES (?,?,?,?,?,?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET name=excluded.name,
            dosage=excluded.dosage,
            category=excluded.category,
            times=excluded.times,
            status=excluded.status,
            start_date=excluded.start_date,
            end_date=excluded.end_date,
            updated_at=excluded.updated_at
    `, p.ID, p.MedicationName, p.DosageText, p.Category, string(times),
		string(p.Status), p.StartDate, p.EndDate, time.Now().Unix())
	return err
}

// ListPlans returns the mirrored plan set, used when the care API is
// unreachable on startup. Day state is not included; LoadDayState adds it.
func (d *DB) ListPlans() ([]*models.MedicationPlan, error) {
	rows, err := d.Query(`
        SELECT id, name, dosage, category, times, status, start_date, end_date
        FROM plans`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*models.MedicationPlan
	for rows.Next() {
		var p models.MedicationPlan
		var times, status string
		if err := rows.Scan(&p.ID, &p.MedicationName, &p.DosageText, &p.Category,
			&times, &status, &p.StartDate, &p.EndDate); err != nil {
			return nil, err
		}
		p.Status = models.PlanStatus(status)
		var list []string
		if err := json.Unmarshal([]byte(times), &list); err == nil {
			p.TimesOfDay = list
		}
		res = append(res, &p)
	}
	return res, rows.Err()
}

// PrunePlans drops mirrored plans the care API no longer returns, along
// with their ledger rows.
func (d *DB) PrunePlans(keep []string) error {
	if len(keep) == 0 {
		if _, err := d.Exec(`DELETE FROM slot_resolutions`); err != nil {
			return err
		}
		_, err := d.Exec(`DELETE FROM plans`)
		return err
	}

	marks := strings.TrimRight(strings.Repeat("?,", len(keep)), ",")
	args := make([]any, len(keep))
	for i, id := range keep {
		args[i] = id
	}
	if _, err := d.Exec(`DELETE FROM slot_resolutions WHERE plan_id NOT IN (`+marks+`)`, args...); err != nil {
		return err
	}
	_, err := d.Exec(`DELETE FROM plans WHERE id NOT IN (`+marks+`)`, args...)
	return err
}

// SavePlanDay upserts a plan's daily tracking state. The row is created
// if the mirror write has not happened yet.
func (d *DB) SavePlanDay(p *models.MedicationPlan, day string) error {
	var lastTaken, lastSkipped sql.NullInt64
	if p.LastTakenAt != nil {
		lastTaken = sql.NullInt64{Int64: p.LastTakenAt.Unix(), Valid: true}
	}
	if p.LastSkippedAt != nil {
		lastSkipped = sql.NullInt64{Int64: p.LastSkippedAt.Unix(), Valid: true}
	}
	_, err := d.Exec(`
        INSERT INTO plans (id, last_taken_at, last_skipped_at, taken_today, skipped_today, day, updated_at)
        VALUES (?,?,?,?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET last_taken_at=excluded.last_taken_at,
            last_skipped_at=excluded.last_skipped_at,
            taken_today=excluded.taken_today,
            skipped_today=excluded.skipped_today,
            day=excluded.day,
            updated_at=excluded.updated_at
    `, p.ID, lastTaken, lastSkipped, p.TakenCountToday, p.SkippedCountToday,
		day, time.Now().Unix())
	return err
}

// LoadDayState fills a fetched plan with the locally tracked counters,
// timestamps and today's resolution ledger. Missing rows are not an
// error; the plan simply starts the day fresh.
func (d *DB) LoadDayState(p *models.MedicationPlan, day string) error {
	var lastTaken, lastSkipped sql.NullInt64
	err := d.QueryRow(`
        SELECT last_taken_at, last_skipped_at, taken_today, skipped_today
        FROM plans WHERE id=?`, p.ID,
	).Scan(&lastTaken, &lastSkipped, &p.TakenCountToday, &p.SkippedCountToday)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if lastTaken.Valid {
		t := time.Unix(lastTaken.Int64, 0)
		p.LastTakenAt = &t
	}
	if lastSkipped.Valid {
		t := time.Unix(lastSkipped.Int64, 0)
		p.LastSkippedAt = &t
	}

	rows, err := d.Query(`
        SELECT slot_index, action FROM slot_resolutions
        WHERE plan_id=? AND day=?`, p.ID, day)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var idx int
		var action string
		if err := rows.Scan(&idx, &action); err != nil {
			return err
		}
		p.MarkResolved(idx, models.DoseAction(action))
	}
	return rows.Err()
}

// ---------- slot resolutions ------------------------------------------------

// MarkSlotResolved records one resolution per plan, day and slot index.
// INSERT OR IGNORE keeps it idempotent across repeated sweeps.
func (d *DB) MarkSlotResolved(planID, day string, index int, action models.DoseAction) error {
	_, err := d.Exec(`
        INSERT OR IGNORE INTO slot_resolutions (plan_id, day, slot_index, action, resolved_at)
        VALUES (?,?,?,?,?)
    `, planID, day, index, string(action), time.Now().Unix())
	return err
}

// ---------- dose outbox -----------------------------------------------------

func (d *DB) EnqueueDoseEvent(ev models.DoseEvent) error {
	_, err := d.Exec(`
        INSERT OR REPLACE INTO dose_outbox (id, plan_id, action, at, created_at)
        VALUES (?,?,?,?,?)
    `, ev.ID, ev.PlanID, string(ev.Action), ev.Timestamp.Unix(), time.Now().Unix())
	return err
}

func (d *DB) ListDoseOutbox(limit int) ([]models.DoseEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.Query(`
        SELECT id, plan_id, action, at FROM dose_outbox
        ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []models.DoseEvent
	for rows.Next() {
		var ev models.DoseEvent
		var action string
		var at int64
		if err := rows.Scan(&ev.ID, &ev.PlanID, &action, &at); err != nil {
			return nil, err
		}
		ev.Action = models.DoseAction(action)
		ev.Timestamp = time.Unix(at, 0)
		res = append(res, ev)
	}
	return res, rows.Err()
}

func (d *DB) DeleteDoseEvent(id string) error {
	_, err := d.Exec(`DELETE FROM dose_outbox WHERE id=?`, id)
	return err
}

// TouchDoseEvent bumps the retry bookkeeping after a failed delivery.
func (d *DB) TouchDoseEvent(id string) error {
	_, err := d.Exec(`UPDATE dose_outbox
                      SET attempts = attempts + 1, last_try = strftime('%s','now')
                      WHERE id = ?`, id)
	return err
}
