/*
Package sqlite provides a SQLite-backed maintenance.Repository.

PURPOSE:
  Persists assets, plans, projected events, work orders and their audit log.
  In production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

INTERFACES IMPLEMENTED:
  maintenance.Repository: Assets, plans, events, work orders
  generic.AuditLog:       Work order log (embedded in Repository)
  maintenance.SweepLog:   Overdue sweeper runs

AT-MOST-ONE WORK ORDER PER EVENT:
  Enforced twice:
  - work_orders.event_id is UNIQUE (NULL for ad-hoc orders)
  - CreateWorkOrder checks and sets events.linked_work_order_id in the same
    transaction as the insert
  Either failing maps to generic.ErrEventAlreadyLinked.

APPEND-ONLY LOG:
  No UPDATE or DELETE statements touch work_order_log. Rows are returned in
  insertion order (seq).

KEY TABLES:
  assets:         Equipment and usage counters
  plans:          Frequency configuration per asset
  events:         Projected and manual events
  event_tasks:    Tasks owned by an event (ON DELETE CASCADE)
  work_orders:    Execution records
  work_order_log: Audit trail
  sweep_runs:     Overdue sweeper history

STORAGE FORMATS:
  Dates are YYYY-MM-DD text so ORDER BY due_date is chronological.
  Decimals are stored as text to keep exact values.
  Timestamps are RFC3339Nano UTC.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency.
  ":memory:" databases are limited to one connection since every
  connection would otherwise see its own empty database.

USAGE:
  store, err := sqlite.New("./data/assets.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := maintenance.NewService(store, logger)

SEE ALSO:
  - maintenance/store.go: Interface definitions
  - store/memory/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/asset-engine/generic"
	"github.com/warp/asset-engine/maintenance"
)

// Store implements maintenance.Repository using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ maintenance.Repository = (*Store)(nil)
	_ maintenance.SweepLog   = (*Store)(nil)
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		usage_unit TEXT NOT NULL DEFAULT '',
		current_usage TEXT NOT NULL DEFAULT '0',
		daily_usage_rate TEXT NOT NULL DEFAULT '0',
		location TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		asset_id TEXT NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		usage_interval TEXT NOT NULL DEFAULT '0',
		usage_unit TEXT NOT NULL DEFAULT '',
		time_interval INTEGER NOT NULL DEFAULT 0,
		time_unit TEXT NOT NULL DEFAULT '',
		start_offset TEXT NOT NULL DEFAULT '0',
		tasks_json TEXT,
		template_key TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_plans_asset
		ON plans(asset_id);

	-- plan_id is free text: manual events have no plan.
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		asset_id TEXT NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
		plan_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		due_date TEXT NOT NULL,
		trigger_usage_value TEXT NOT NULL DEFAULT '0',
		trigger_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'scheduled',
		priority TEXT NOT NULL DEFAULT 'low',
		linked_work_order_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- Hot path: an asset's schedule ordered by due date
	CREATE INDEX IF NOT EXISTS idx_events_asset_due
		ON events(asset_id, due_date);
	CREATE INDEX IF NOT EXISTS idx_events_status_due
		ON events(status, due_date);

	CREATE TABLE IF NOT EXISTS event_tasks (
		event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		description TEXT NOT NULL,
		duration_days INTEGER NOT NULL DEFAULT 0,
		is_critical BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (event_id, position)
	);

	-- event_id is UNIQUE: at most one work order per event.
	-- No foreign key: a deleted event leaves its history behind.
	CREATE TABLE IF NOT EXISTS work_orders (
		id TEXT PRIMARY KEY,
		asset_id TEXT NOT NULL,
		event_id TEXT UNIQUE,
		plan_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL,
		status TEXT NOT NULL,
		scheduled_start TEXT,
		due_date TEXT,
		completed_at TEXT,
		regularization BOOLEAN NOT NULL DEFAULT FALSE,
		days_overdue INTEGER NOT NULL DEFAULT 0,
		tasks_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_work_orders_asset
		ON work_orders(asset_id);
	CREATE INDEX IF NOT EXISTS idx_work_orders_status
		ON work_orders(status);

	CREATE TABLE IF NOT EXISTS work_order_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		work_order_id TEXT NOT NULL REFERENCES work_orders(id),
		at TEXT NOT NULL,
		actor TEXT NOT NULL,
		kind TEXT NOT NULL,
		message TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_work_order_log_order
		ON work_order_log(work_order_id, seq);

	CREATE TABLE IF NOT EXISTS sweep_runs (
		id TEXT PRIMARY KEY,
		as_of TEXT NOT NULL,
		status TEXT NOT NULL,
		overdue INTEGER NOT NULL DEFAULT 0,
		max_days_overdue INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		completed_at TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// withTx runs fn inside a database transaction. Everything fn does must go
// through tx.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// ASSETS
// =============================================================================

// SaveAsset inserts or updates an asset.
func (s *Store) SaveAsset(ctx context.Context, a maintenance.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO assets (id, name, category, usage_unit, current_usage, daily_usage_rate,
			location, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			usage_unit = excluded.usage_unit,
			current_usage = excluded.current_usage,
			daily_usage_rate = excluded.daily_usage_rate,
			location = excluded.location,
			active = excluded.active
	`

	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.Name, a.Category, a.UsageUnit,
		a.CurrentUsage.String(), a.DailyUsageRate.String(),
		a.Location, a.Active, now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save asset: %w", err)
	}
	return nil
}

const assetColumns = `id, name, category, usage_unit, current_usage, daily_usage_rate, location, active`

// GetAsset retrieves an asset by ID.
func (s *Store) GetAsset(ctx context.Context, id generic.AssetID) (*maintenance.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+assetColumns+" FROM assets WHERE id = ?", id)
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", generic.ErrAssetNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAssets returns all assets ordered by name.
func (s *Store) ListAssets(ctx context.Context) ([]maintenance.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+assetColumns+" FROM assets ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []maintenance.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAsset(row scanner) (maintenance.Asset, error) {
	var (
		a             maintenance.Asset
		current, rate string
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Category, &a.UsageUnit, &current, &rate, &a.Location, &a.Active); err != nil {
		return a, err
	}
	var err error
	if a.CurrentUsage, err = parseDecimal(current); err != nil {
		return a, err
	}
	if a.DailyUsageRate, err = parseDecimal(rate); err != nil {
		return a, err
	}
	return a, nil
}

// =============================================================================
// PLANS
// =============================================================================

// SavePlan inserts or updates a plan.
func (s *Store) SavePlan(ctx context.Context, p maintenance.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasksJSON, err := json.Marshal(p.Tasks)
	if err != nil {
		return fmt.Errorf("failed to encode plan tasks: %w", err)
	}

	query := `
		INSERT INTO plans (id, asset_id, name, usage_interval, usage_unit, time_interval, time_unit,
			start_offset, tasks_json, template_key, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			usage_interval = excluded.usage_interval,
			usage_unit = excluded.usage_unit,
			time_interval = excluded.time_interval,
			time_unit = excluded.time_unit,
			start_offset = excluded.start_offset,
			tasks_json = excluded.tasks_json,
			template_key = excluded.template_key,
			active = excluded.active
	`

	_, err = s.db.ExecContext(ctx, query,
		p.ID, p.AssetID, p.Name,
		p.Frequency.UsageInterval.String(), p.Frequency.UsageUnit,
		p.Frequency.TimeInterval, p.Frequency.TimeUnit,
		p.StartOffset.String(), string(tasksJSON), p.TemplateKey, p.Active, now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

const planColumns = `id, asset_id, name, usage_interval, usage_unit, time_interval, time_unit,
	start_offset, tasks_json, template_key, active`

// GetPlan retrieves a plan by ID.
func (s *Store) GetPlan(ctx context.Context, id generic.PlanID) (*maintenance.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+planColumns+" FROM plans WHERE id = ?", id)
	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", generic.ErrPlanNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPlans returns the plans of one asset, or all plans when assetID is empty.
func (s *Store) ListPlans(ctx context.Context, assetID generic.AssetID) ([]maintenance.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + planColumns + " FROM plans"
	var args []any
	if assetID != "" {
		query += " WHERE asset_id = ?"
		args = append(args, assetID)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []maintenance.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func scanPlan(row scanner) (maintenance.Plan, error) {
	var (
		p                          maintenance.Plan
		usageInterval, startOffset string
		tasksJSON                  sql.NullString
	)
	err := row.Scan(&p.ID, &p.AssetID, &p.Name, &usageInterval, &p.Frequency.UsageUnit,
		&p.Frequency.TimeInterval, &p.Frequency.TimeUnit, &startOffset, &tasksJSON,
		&p.TemplateKey, &p.Active)
	if err != nil {
		return p, err
	}
	if p.Frequency.UsageInterval, err = parseDecimal(usageInterval); err != nil {
		return p, err
	}
	if p.StartOffset, err = parseDecimal(startOffset); err != nil {
		return p, err
	}
	if tasksJSON.Valid && tasksJSON.String != "" {
		if err := json.Unmarshal([]byte(tasksJSON.String), &p.Tasks); err != nil {
			return p, fmt.Errorf("failed to decode plan tasks: %w", err)
		}
	}
	return p, nil
}

// =============================================================================
// EVENTS
// =============================================================================

// SaveEvents upserts events and replaces their tasks in one transaction.
// Status and work order linkage of an existing row are left alone; only
// CreateWorkOrder and CompleteWorkOrder change them.
func (s *Store) SaveEvents(ctx context.Context, events []maintenance.ProjectedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range events {
			if err := saveEvent(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func saveEvent(ctx context.Context, q querier, e maintenance.ProjectedEvent) error {
	if e.ID == "" {
		return generic.Invalid("id", "event id required")
	}

	query := `
		INSERT INTO events (id, asset_id, plan_id, title, due_date, trigger_usage_value,
			trigger_type, status, priority, linked_work_order_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			due_date = excluded.due_date,
			trigger_usage_value = excluded.trigger_usage_value,
			trigger_type = excluded.trigger_type,
			priority = excluded.priority
	`
	_, err := q.ExecContext(ctx, query,
		e.ID, e.AssetID, e.PlanID, e.Title, formatDate(e.DueDate),
		e.TriggerUsageValue.String(), e.Trigger, e.Status, e.Priority,
		e.LinkedWorkOrderID, now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save event %s: %w", e.ID, err)
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM event_tasks WHERE event_id = ?", e.ID); err != nil {
		return fmt.Errorf("failed to replace tasks of event %s: %w", e.ID, err)
	}
	for i, t := range e.Tasks {
		_, err := q.ExecContext(ctx, `
			INSERT INTO event_tasks (event_id, position, description, duration_days, is_critical)
			VALUES (?, ?, ?, ?, ?)`,
			e.ID, i, t.Description, t.DurationDays, t.IsCritical,
		)
		if err != nil {
			return fmt.Errorf("failed to save task of event %s: %w", e.ID, err)
		}
	}
	return nil
}

const eventColumns = `id, asset_id, plan_id, title, due_date, trigger_usage_value,
	trigger_type, status, priority, linked_work_order_id`

// GetEvent retrieves an event and its tasks.
func (s *Store) GetEvent(ctx context.Context, id generic.EventID) (*maintenance.ProjectedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getEvent(ctx, s.db, id)
}

func getEvent(ctx context.Context, q querier, id generic.EventID) (*maintenance.ProjectedEvent, error) {
	row := q.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ?", id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", generic.ErrEventNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if err := loadTasks(ctx, q, []*maintenance.ProjectedEvent{&e}); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEvents returns matching events ordered by due date.
func (s *Store) ListEvents(ctx context.Context, filter maintenance.EventFilter) ([]maintenance.ProjectedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if filter.AssetID != "" {
		where = append(where, "asset_id = ?")
		args = append(args, filter.AssetID)
	}
	if filter.PlanID != "" {
		where = append(where, "plan_id = ?")
		args = append(args, filter.PlanID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := "SELECT " + eventColumns + " FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY due_date ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []maintenance.ProjectedEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ptrs := make([]*maintenance.ProjectedEvent, len(events))
	for i := range events {
		ptrs[i] = &events[i]
	}
	if err := loadTasks(ctx, s.db, ptrs); err != nil {
		return nil, err
	}
	return events, nil
}

func scanEvent(row scanner) (maintenance.ProjectedEvent, error) {
	var (
		e                maintenance.ProjectedEvent
		dueDate, trigger string
	)
	err := row.Scan(&e.ID, &e.AssetID, &e.PlanID, &e.Title, &dueDate, &trigger,
		&e.Trigger, &e.Status, &e.Priority, &e.LinkedWorkOrderID)
	if err != nil {
		return e, err
	}
	if e.DueDate, err = generic.ParseDate(dueDate); err != nil {
		return e, fmt.Errorf("event %s: %w", e.ID, err)
	}
	if e.TriggerUsageValue, err = parseDecimal(trigger); err != nil {
		return e, fmt.Errorf("event %s: %w", e.ID, err)
	}
	return e, nil
}

// loadTasks fills the tasks of events with one query.
func loadTasks(ctx context.Context, q querier, events []*maintenance.ProjectedEvent) error {
	if len(events) == 0 {
		return nil
	}
	byID := make(map[generic.EventID]*maintenance.ProjectedEvent, len(events))
	placeholders := make([]string, 0, len(events))
	args := make([]any, 0, len(events))
	for _, e := range events {
		byID[e.ID] = e
		placeholders = append(placeholders, "?")
		args = append(args, e.ID)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT event_id, description, duration_days, is_critical
		FROM event_tasks
		WHERE event_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY event_id, position`, args...)
	if err != nil {
		return fmt.Errorf("failed to query event tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			eventID generic.EventID
			t       maintenance.Task
		)
		if err := rows.Scan(&eventID, &t.Description, &t.DurationDays, &t.IsCritical); err != nil {
			return err
		}
		if e, ok := byID[eventID]; ok {
			e.Tasks = append(e.Tasks, t)
		}
	}
	return rows.Err()
}

// DeleteEvent removes an event. Its tasks go with it (ON DELETE CASCADE).
func (s *Store) DeleteEvent(ctx context.Context, id generic.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrEventNotFound, id)
	}
	return nil
}

// =============================================================================
// WORK ORDERS
// =============================================================================

// CreateWorkOrder inserts the order, links its event and appends the first
// log entry in one transaction.
func (s *Store) CreateWorkOrder(ctx context.Context, wo maintenance.WorkOrder, first generic.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if wo.EventID != "" {
			var linked string
			err := tx.QueryRowContext(ctx,
				"SELECT linked_work_order_id FROM events WHERE id = ?", wo.EventID,
			).Scan(&linked)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", generic.ErrEventNotFound, wo.EventID)
			}
			if err != nil {
				return err
			}
			if linked != "" {
				return fmt.Errorf("%w: event %s has work order %s",
					generic.ErrEventAlreadyLinked, wo.EventID, linked)
			}
		}

		if err := insertWorkOrder(ctx, tx, wo); err != nil {
			return err
		}

		if wo.EventID != "" {
			res, err := tx.ExecContext(ctx,
				"UPDATE events SET linked_work_order_id = ? WHERE id = ? AND linked_work_order_id = ''",
				wo.ID, wo.EventID,
			)
			if err != nil {
				return fmt.Errorf("failed to link event: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("%w: event %s", generic.ErrEventAlreadyLinked, wo.EventID)
			}
		}

		return appendLog(ctx, tx, first)
	})
}

func insertWorkOrder(ctx context.Context, q querier, wo maintenance.WorkOrder) error {
	tasksJSON, err := json.Marshal(wo.Tasks)
	if err != nil {
		return fmt.Errorf("failed to encode work order tasks: %w", err)
	}

	query := `
		INSERT INTO work_orders (id, asset_id, event_id, plan_id, title, description, priority,
			status, scheduled_start, due_date, completed_at, regularization, days_overdue,
			tasks_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = q.ExecContext(ctx, query,
		wo.ID, wo.AssetID, nullString(string(wo.EventID)), wo.PlanID, wo.Title, wo.Description,
		wo.Priority, wo.Status, nullDate(wo.ScheduledStart), nullDate(wo.DueDate),
		nullDatePtr(wo.CompletedAt), wo.Regularization, wo.DaysOverdue,
		string(tasksJSON), wo.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) && strings.Contains(err.Error(), "event_id") {
			return fmt.Errorf("%w: event %s", generic.ErrEventAlreadyLinked, wo.EventID)
		}
		return fmt.Errorf("failed to insert work order: %w", err)
	}
	return nil
}

const workOrderColumns = `id, asset_id, event_id, plan_id, title, description, priority, status,
	scheduled_start, due_date, completed_at, regularization, days_overdue, tasks_json, created_at`

// GetWorkOrder retrieves a work order by ID.
func (s *Store) GetWorkOrder(ctx context.Context, id generic.WorkOrderID) (*maintenance.WorkOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getWorkOrder(ctx, s.db, id)
}

func getWorkOrder(ctx context.Context, q querier, id generic.WorkOrderID) (*maintenance.WorkOrder, error) {
	row := q.QueryRowContext(ctx, "SELECT "+workOrderColumns+" FROM work_orders WHERE id = ?", id)
	wo, err := scanWorkOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", generic.ErrWorkOrderNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &wo, nil
}

// ListWorkOrders returns matching work orders, oldest first.
func (s *Store) ListWorkOrders(ctx context.Context, filter maintenance.WorkOrderFilter) ([]maintenance.WorkOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if filter.AssetID != "" {
		where = append(where, "asset_id = ?")
		args = append(args, filter.AssetID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := "SELECT " + workOrderColumns + " FROM work_orders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query work orders: %w", err)
	}
	defer rows.Close()

	var orders []maintenance.WorkOrder
	for rows.Next() {
		wo, err := scanWorkOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, wo)
	}
	return orders, rows.Err()
}

func scanWorkOrder(row scanner) (maintenance.WorkOrder, error) {
	var (
		wo                             maintenance.WorkOrder
		eventID, tasksJSON             sql.NullString
		scheduledStart, due, completed sql.NullString
		createdAt                      string
	)
	err := row.Scan(&wo.ID, &wo.AssetID, &eventID, &wo.PlanID, &wo.Title, &wo.Description,
		&wo.Priority, &wo.Status, &scheduledStart, &due, &completed,
		&wo.Regularization, &wo.DaysOverdue, &tasksJSON, &createdAt)
	if err != nil {
		return wo, err
	}

	wo.EventID = generic.EventID(eventID.String)
	if wo.ScheduledStart, err = parseNullDate(scheduledStart); err != nil {
		return wo, err
	}
	if wo.DueDate, err = parseNullDate(due); err != nil {
		return wo, err
	}
	if completed.Valid {
		at, err := generic.ParseDate(completed.String)
		if err != nil {
			return wo, err
		}
		wo.CompletedAt = &at
	}
	if tasksJSON.Valid && tasksJSON.String != "" {
		if err := json.Unmarshal([]byte(tasksJSON.String), &wo.Tasks); err != nil {
			return wo, fmt.Errorf("failed to decode work order tasks: %w", err)
		}
	}
	wo.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return wo, nil
}

// CompleteWorkOrder closes the order, completes its event and appends entry.
func (s *Store) CompleteWorkOrder(ctx context.Context, id generic.WorkOrderID, at generic.TimePoint, entry generic.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		wo, err := getWorkOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		if wo.Done() {
			return generic.Invalid("status", "work order %s is already %s", id, wo.Status)
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE work_orders SET status = ?, completed_at = ? WHERE id = ?",
			maintenance.WorkOrderCompleted, formatDate(at), id,
		); err != nil {
			return fmt.Errorf("failed to complete work order: %w", err)
		}
		if wo.EventID != "" {
			if _, err := tx.ExecContext(ctx,
				"UPDATE events SET status = ? WHERE id = ?",
				maintenance.StatusCompleted, wo.EventID,
			); err != nil {
				return fmt.Errorf("failed to complete event: %w", err)
			}
		}
		return appendLog(ctx, tx, entry)
	})
}

// RescheduleLinked stores the new dates of an event and its work order.
func (s *Store) RescheduleLinked(ctx context.Context, event maintenance.ProjectedEvent, wo maintenance.WorkOrder, entry generic.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE events SET due_date = ? WHERE id = ?",
			formatDate(event.DueDate), event.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to reschedule event: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", generic.ErrEventNotFound, event.ID)
		}

		res, err = tx.ExecContext(ctx,
			"UPDATE work_orders SET scheduled_start = ?, due_date = ? WHERE id = ?",
			nullDate(wo.ScheduledStart), nullDate(wo.DueDate), wo.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to reschedule work order: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", generic.ErrWorkOrderNotFound, wo.ID)
		}
		return appendLog(ctx, tx, entry)
	})
}

// =============================================================================
// AUDIT LOG (generic.AuditLog interface)
// =============================================================================

// AppendLog adds an entry to a work order's log.
func (s *Store) AppendLog(ctx context.Context, entry generic.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return appendLog(ctx, s.db, entry)
}

func appendLog(ctx context.Context, q querier, entry generic.LogEntry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO work_order_log (id, work_order_id, at, actor, kind, message)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.WorkOrderID, entry.At.UTC().Format(time.RFC3339Nano),
		entry.Actor, entry.Kind, entry.Message,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("%w: %s", generic.ErrWorkOrderNotFound, entry.WorkOrderID)
		}
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}

// ListLog returns a work order's entries in insertion order.
func (s *Store) ListLog(ctx context.Context, id generic.WorkOrderID) ([]generic.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, work_order_id, at, actor, kind, message
		FROM work_order_log
		WHERE work_order_id = ?
		ORDER BY seq ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []generic.LogEntry
	for rows.Next() {
		var (
			e  generic.LogEntry
			at string
		)
		if err := rows.Scan(&e.ID, &e.WorkOrderID, &at, &e.Actor, &e.Kind, &e.Message); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// SWEEP RUNS (maintenance.SweepLog interface)
// =============================================================================

// SaveSweepRun inserts or updates a sweeper run.
func (s *Store) SaveSweepRun(ctx context.Context, r maintenance.SweepRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO sweep_runs (id, as_of, status, overdue, max_days_overdue, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			overdue = excluded.overdue,
			max_days_overdue = excluded.max_days_overdue,
			error = excluded.error,
			completed_at = excluded.completed_at
	`

	var completedAt *string
	if !r.CompletedAt.IsZero() {
		v := r.CompletedAt.UTC().Format(time.RFC3339Nano)
		completedAt = &v
	}

	_, err := s.db.ExecContext(ctx, query,
		r.ID, formatDate(r.AsOf), r.Status, r.Overdue, r.MaxDaysOverdue, r.Error,
		r.StartedAt.UTC().Format(time.RFC3339Nano), completedAt,
	)
	return err
}

// ListSweepRuns returns the newest runs first.
func (s *Store) ListSweepRuns(ctx context.Context, limit int) ([]maintenance.SweepRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, as_of, status, overdue, max_days_overdue, error, started_at, completed_at
		FROM sweep_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []maintenance.SweepRun
	for rows.Next() {
		var (
			r               maintenance.SweepRun
			asOf, startedAt string
			completedAt     sql.NullString
		)
		if err := rows.Scan(&r.ID, &asOf, &r.Status, &r.Overdue, &r.MaxDaysOverdue, &r.Error,
			&startedAt, &completedAt); err != nil {
			return nil, err
		}
		r.AsOf, _ = generic.ParseDate(asOf)
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		if completedAt.Valid {
			r.CompletedAt, _ = time.Parse(time.RFC3339Nano, completedAt.String)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"work_order_log", "work_orders", "event_tasks", "events", "plans", "assets", "sweep_runs"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatDate(tp generic.TimePoint) string {
	return tp.Time.Format(generic.DateLayout)
}

func nullDate(tp generic.TimePoint) sql.NullString {
	if tp.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(tp), Valid: true}
}

func nullDatePtr(tp *generic.TimePoint) sql.NullString {
	if tp == nil {
		return sql.NullString{}
	}
	return nullDate(*tp)
}

func parseNullDate(s sql.NullString) (generic.TimePoint, error) {
	if !s.Valid || s.String == "" {
		return generic.TimePoint{}, nil
	}
	return generic.ParseDate(s.String)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad decimal %q: %w", s, err)
	}
	return d, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
