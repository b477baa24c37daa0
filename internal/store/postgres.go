package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fleetcmd/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies *.sql files in lexical order. Dev helper; production
// schemas are managed out of band.
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, f := range files {
		b, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(b)); err != nil {
			return err
		}
	}
	return nil
}

// Vehicles

func (p *Postgres) CreateVehicle(ctx context.Context, in model.VehicleIn) (model.Vehicle, error) {
	v := model.Vehicle{ID: uuid.New().String(), Name: in.Name, Plate: in.Plate, MaxLoad: in.MaxLoad, Status: in.Status}
	if v.Status == "" { v.Status = model.VehicleAvailable }
	_, err := p.db.ExecContext(ctx, `INSERT INTO vehicles (id, name, plate, max_load, status) VALUES ($1,$2,$3,$4,$5)`,
		v.ID, nullIfEmpty(v.Name), nullIfEmpty(v.Plate), v.MaxLoad, v.Status)
	if err != nil { return model.Vehicle{}, err }
	return v, nil
}

func (p *Postgres) GetVehicle(ctx context.Context, id string) (model.Vehicle, error) {
	var v model.Vehicle
	var name, plate sql.NullString
	err := p.db.QueryRowContext(ctx, `SELECT id::text, name, plate, max_load, status FROM vehicles WHERE id=$1`, id).
		Scan(&v.ID, &name, &plate, &v.MaxLoad, &v.Status)
	if errors.Is(err, sql.ErrNoRows) { return model.Vehicle{}, ErrNotFound }
	if err != nil { return model.Vehicle{}, err }
	v.Name, v.Plate = name.String, plate.String
	return v, nil
}

func (p *Postgres) ListVehicles(ctx context.Context, status, cursor string, limit int) ([]model.Vehicle, string, error) {
	if limit <= 0 || limit > 500 { limit = 100 }
	var rows *sql.Rows
	var err error
	switch {
	case status != "" && cursor != "":
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, name, plate, max_load, status FROM vehicles WHERE status=$1 AND id::text > $2 ORDER BY id LIMIT $3`, status, cursor, limit)
	case status != "":
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, name, plate, max_load, status FROM vehicles WHERE status=$1 ORDER BY id LIMIT $2`, status, limit)
	case cursor != "":
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, name, plate, max_load, status FROM vehicles WHERE id::text > $1 ORDER BY id LIMIT $2`, cursor, limit)
	default:
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, name, plate, max_load, status FROM vehicles ORDER BY id LIMIT $1`, limit)
	}
	if err != nil { return nil, "", err }
	defer rows.Close()
	out := []model.Vehicle{}
	for rows.Next() {
		var v model.Vehicle
		var name, plate sql.NullString
		if err := rows.Scan(&v.ID, &name, &plate, &v.MaxLoad, &v.Status); err != nil { return nil, "", err }
		v.Name, v.Plate = name.String, plate.String
		out = append(out, v)
	}
	next := ""
	if len(out) == limit { next = out[len(out)-1].ID }
	return out, next, rows.Err()
}

// Drivers

func (p *Postgres) CreateDriver(ctx context.Context, in model.DriverIn) (model.Driver, error) {
	d := model.Driver{ID: uuid.New().String(), Name: in.Name, LicenseStatus: in.LicenseStatus, SafetyScore: in.SafetyScore, DutyStatus: in.DutyStatus}
	if d.LicenseStatus == "" { d.LicenseStatus = model.LicenseValid }
	if d.DutyStatus == "" { d.DutyStatus = model.DutyAvailable }
	_, err := p.db.ExecContext(ctx, `INSERT INTO drivers (id, name, license_status, safety_score, duty_status) VALUES ($1,$2,$3,$4,$5)`,
		d.ID, nullIfEmpty(d.Name), d.LicenseStatus, d.SafetyScore, d.DutyStatus)
	if err != nil { return model.Driver{}, err }
	return d, nil
}

func (p *Postgres) GetDriver(ctx context.Context, id string) (model.Driver, error) {
	var d model.Driver
	var name sql.NullString
	err := p.db.QueryRowContext(ctx, `SELECT id::text, name, license_status, safety_score, duty_status FROM drivers WHERE id=$1`, id).
		Scan(&d.ID, &name, &d.LicenseStatus, &d.SafetyScore, &d.DutyStatus)
	if errors.Is(err, sql.ErrNoRows) { return model.Driver{}, ErrNotFound }
	if err != nil { return model.Driver{}, err }
	d.Name = name.String
	return d, nil
}

func (p *Postgres) ListDrivers(ctx context.Context, cursor string, limit int) ([]model.Driver, string, error) {
	if limit <= 0 || limit > 500 { limit = 100 }
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, name, license_status, safety_score, duty_status FROM drivers WHERE id::text > $1 ORDER BY id LIMIT $2`, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, name, license_status, safety_score, duty_status FROM drivers ORDER BY id LIMIT $1`, limit)
	}
	if err != nil { return nil, "", err }
	defer rows.Close()
	out := []model.Driver{}
	for rows.Next() {
		var d model.Driver
		var name sql.NullString
		if err := rows.Scan(&d.ID, &name, &d.LicenseStatus, &d.SafetyScore, &d.DutyStatus); err != nil { return nil, "", err }
		d.Name = name.String
		out = append(out, d)
	}
	next := ""
	if len(out) == limit { next = out[len(out)-1].ID }
	return out, next, rows.Err()
}

// Trips

func (p *Postgres) GetTrip(ctx context.Context, id string) (model.Trip, error) {
	var t model.Trip
	var created time.Time
	err := p.db.QueryRowContext(ctx, `SELECT id::text, driver_id::text, vehicle_id::text, cargo_weight, status, created_at FROM trips WHERE id=$1`, id).
		Scan(&t.ID, &t.DriverID, &t.VehicleID, &t.CargoWeight, &t.Status, &created)
	if errors.Is(err, sql.ErrNoRows) { return model.Trip{}, ErrNotFound }
	if err != nil { return model.Trip{}, err }
	t.CreatedAt = created.UTC().Format(time.RFC3339)
	return t, nil
}

func (p *Postgres) ListTrips(ctx context.Context, status, cursor string, limit int) ([]model.Trip, string, error) {
	if limit <= 0 || limit > 500 { limit = 100 }
	var rows *sql.Rows
	var err error
	switch {
	case status != "" && cursor != "":
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, driver_id::text, vehicle_id::text, cargo_weight, status, created_at FROM trips WHERE status=$1 AND id::text > $2 ORDER BY id LIMIT $3`, status, cursor, limit)
	case status != "":
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, driver_id::text, vehicle_id::text, cargo_weight, status, created_at FROM trips WHERE status=$1 ORDER BY id LIMIT $2`, status, limit)
	case cursor != "":
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, driver_id::text, vehicle_id::text, cargo_weight, status, created_at FROM trips WHERE id::text > $1 ORDER BY id LIMIT $2`, cursor, limit)
	default:
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, driver_id::text, vehicle_id::text, cargo_weight, status, created_at FROM trips ORDER BY id LIMIT $1`, limit)
	}
	if err != nil { return nil, "", err }
	defer rows.Close()
	out := []model.Trip{}
	for rows.Next() {
		var t model.Trip
		var created time.Time
		if err := rows.Scan(&t.ID, &t.DriverID, &t.VehicleID, &t.CargoWeight, &t.Status, &created); err != nil { return nil, "", err }
		t.CreatedAt = created.UTC().Format(time.RFC3339)
		out = append(out, t)
	}
	next := ""
	if len(out) == limit { next = out[len(out)-1].ID }
	return out, next, rows.Err()
}

// Maintenance records

func (p *Postgres) GetMaintenanceRecord(ctx context.Context, id string) (model.MaintenanceRecord, error) {
	var r model.MaintenanceRecord
	var desc sql.NullString
	var created time.Time
	err := p.db.QueryRowContext(ctx, `SELECT id::text, vehicle_id::text, description, status, created_at FROM maintenance_records WHERE id=$1`, id).
		Scan(&r.ID, &r.VehicleID, &desc, &r.Status, &created)
	if errors.Is(err, sql.ErrNoRows) { return model.MaintenanceRecord{}, ErrNotFound }
	if err != nil { return model.MaintenanceRecord{}, err }
	r.Description = desc.String
	r.CreatedAt = created.UTC().Format(time.RFC3339)
	return r, nil
}

func (p *Postgres) ListMaintenanceRecords(ctx context.Context, vehicleID, cursor string, limit int) ([]model.MaintenanceRecord, string, error) {
	if limit <= 0 || limit > 500 { limit = 100 }
	var rows *sql.Rows
	var err error
	switch {
	case vehicleID != "" && cursor != "":
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, vehicle_id::text, description, status, created_at FROM maintenance_records WHERE vehicle_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, vehicleID, cursor, limit)
	case vehicleID != "":
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, vehicle_id::text, description, status, created_at FROM maintenance_records WHERE vehicle_id=$1 ORDER BY id LIMIT $2`, vehicleID, limit)
	case cursor != "":
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, vehicle_id::text, description, status, created_at FROM maintenance_records WHERE id::text > $1 ORDER BY id LIMIT $2`, cursor, limit)
	default:
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, vehicle_id::text, description, status, created_at FROM maintenance_records ORDER BY id LIMIT $1`, limit)
	}
	if err != nil { return nil, "", err }
	defer rows.Close()
	out := []model.MaintenanceRecord{}
	for rows.Next() {
		var r model.MaintenanceRecord
		var desc sql.NullString
		var created time.Time
		if err := rows.Scan(&r.ID, &r.VehicleID, &desc, &r.Status, &created); err != nil { return nil, "", err }
		r.Description = desc.String
		r.CreatedAt = created.UTC().Format(time.RFC3339)
		out = append(out, r)
	}
	next := ""
	if len(out) == limit { next = out[len(out)-1].ID }
	return out, next, rows.Err()
}

// Apply runs the batch inside one transaction. Guarded updates use
// UPDATE ... WHERE status = ANY(from); a zero row count is resolved to either
// ErrNotFound or a ConflictError carrying the status the row holds now, and
// the transaction rolls back so nothing partial ever lands.
func (p *Postgres) Apply(ctx context.Context, b Batch) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil { return err }
	defer func(){ _ = tx.Rollback() }()

	for _, t := range b.InsertTrips {
		_, err := tx.ExecContext(ctx, `INSERT INTO trips (id, driver_id, vehicle_id, cargo_weight, status, created_at) VALUES ($1,$2,$3,$4,$5,now())`,
			t.ID, t.DriverID, t.VehicleID, t.CargoWeight, t.Status)
		if err != nil { return err }
	}
	for _, r := range b.InsertMaintenance {
		_, err := tx.ExecContext(ctx, `INSERT INTO maintenance_records (id, vehicle_id, description, status, created_at) VALUES ($1,$2,$3,$4,now())`,
			r.ID, r.VehicleID, nullIfEmpty(r.Description), r.Status)
		if err != nil { return err }
	}
	steps := []struct {
		entity string
		table  string
		column string
		writes []StatusWrite
	}{
		{"trip", "trips", "status", b.Trips},
		{"vehicle", "vehicles", "status", b.Vehicles},
		{"driver", "drivers", "duty_status", b.Drivers},
		{"maintenance", "maintenance_records", "status", b.Maintenance},
	}
	for _, st := range steps {
		for _, sw := range st.writes {
			if err := applyGuarded(ctx, tx, st.entity, st.table, st.column, sw); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func applyGuarded(ctx context.Context, tx *sql.Tx, entity, table, column string, sw StatusWrite) error {
	var res sql.Result
	var err error
	if len(sw.From) == 0 {
		res, err = tx.ExecContext(ctx, `UPDATE `+table+` SET `+column+`=$1 WHERE id=$2`, sw.To, sw.ID)
	} else {
		res, err = tx.ExecContext(ctx, `UPDATE `+table+` SET `+column+`=$1 WHERE id=$2 AND `+column+` = ANY($3)`, sw.To, sw.ID, sw.From)
	}
	if err != nil { return err }
	n, err := res.RowsAffected()
	if err != nil { return err }
	if n == 1 { return nil }
	// Guard missed or row gone; read what is actually there.
	var have string
	err = tx.QueryRowContext(ctx, `SELECT `+column+` FROM `+table+` WHERE id=$1`, sw.ID).Scan(&have)
	if errors.Is(err, sql.ErrNoRows) { return ErrNotFound }
	if err != nil { return err }
	return &ConflictError{Entity: entity, ID: sw.ID, Have: have}
}

// Webhook subscriptions

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	s := model.Subscription{ID: uuid.New().String(), URL: req.URL, Events: req.Events, Secret: req.Secret}
	_, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, url, events, secret) VALUES ($1,$2,$3,$4)`,
		s.ID, s.URL, s.Events, nullIfEmpty(s.Secret))
	if err != nil { return model.Subscription{}, err }
	return s, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 || limit > 500 { limit = 100 }
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, array_to_string(events,','), COALESCE(secret,'') FROM subscriptions WHERE id::text > $1 ORDER BY id LIMIT $2`, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, array_to_string(events,','), COALESCE(secret,'') FROM subscriptions ORDER BY id LIMIT $1`, limit)
	}
	if err != nil { return nil, "", err }
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var events string
		if err := rows.Scan(&s.ID, &s.URL, &events, &s.Secret); err != nil { return nil, "", err }
		s.Events = splitEvents(events)
		out = append(out, s)
	}
	next := ""
	if len(out) == limit { next = out[len(out)-1].ID }
	return out, next, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id=$1`, id)
	if err != nil { return err }
	if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
	return nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, array_to_string(events,','), COALESCE(secret,'') FROM subscriptions WHERE $1 = ANY(events) OR '*' = ANY(events)`, eventType)
	if err != nil { return nil, err }
	defer rows.Close()
	var out []model.Subscription
	for rows.Next() {
		var s model.Subscription
		var events string
		if err := rows.Scan(&s.ID, &s.URL, &events, &s.Secret); err != nil { return nil, err }
		s.Events = splitEvents(events)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Webhook deliveries

func (p *Postgres) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at) VALUES ($1,$2,$3,$4,$5,$6,'pending',0,now())`,
		id, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload)
	if err != nil { return "", err }
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 { limit = 50 }
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
		FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at LIMIT $1`, limit)
	if err != nil { return nil, err }
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil { return nil, err }
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if success {
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='delivered', attempts=attempts+1, response_code=$2, latency_ms=$3, delivered_at=now() WHERE id=$1`,
			id, responseCode, latencyMs)
		return err
	}
	next := time.Now().Add(time.Minute)
	if nextAttemptAt != nil { next = *nextAttemptAt }
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='retry', attempts=attempts+1, last_error=$2, response_code=$3, latency_ms=$4, next_attempt_at=$5 WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode, latencyMs, next)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', attempts=attempts+1, last_error=$2, response_code=$3, latency_ms=$4 WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func splitEvents(s string) []string {
	if s == "" { return nil }
	return strings.Split(s, ",")
}

func nullIfEmpty(s string) any { if s == "" { return nil }; return s }
