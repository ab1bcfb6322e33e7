package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"gathersim/internal/sim/world"
)

// SQLiteIndex is a secondary read model over the world's tick journal:
// external consumers query gather totals and depletions without touching the
// simulation goroutine. Writes are applied by a single writer goroutine and
// dropped (never blocking the sim) when it falls behind.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan world.TickLogEntry
	wg   sync.WaitGroup
	once sync.Once

	closed    atomic.Bool
	dropTotal atomic.Uint64
}

func Open(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan world.TickLogEntry, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads; NORMAL durability is
	// enough for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			joins INTEGER NOT NULL,
			leaves INTEGER NOT NULL,
			actions INTEGER NOT NULL,
			events INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			type TEXT NOT NULL,
			node_id TEXT,
			resource TEXT,
			count INTEGER,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_tick ON events(type, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_events_agent_tick ON events(agent_id, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteTick queues the entry for indexing. Never blocks; entries are dropped
// when the writer is saturated, the JSONL journal stays the source of truth.
func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- entry:
	default:
		s.dropTotal.Add(1)
	}
	return nil
}

// Drops reports how many entries were discarded because the writer lagged.
func (s *SQLiteIndex) Drops() uint64 { return s.dropTotal.Load() }

func (s *SQLiteIndex) loop() {
	for entry := range s.ch {
		if err := s.applyTick(entry); err != nil {
			// Indexing is best-effort; keep consuming.
			continue
		}
	}
}

func (s *SQLiteIndex) applyTick(entry world.TickLogEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO ticks (tick, joins, leaves, actions, events, raw_json) VALUES (?,?,?,?,?,?)`,
		entry.Tick, len(entry.Joins), len(entry.Leaves), len(entry.Actions), len(entry.Events), string(raw),
	); err != nil {
		return err
	}

	for seq, re := range entry.Events {
		rawEv, err := json.Marshal(re.Event)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO events (tick, seq, agent_id, type, node_id, resource, count, raw_json)
			 VALUES (?,?,?,?,?,?,?,?)`,
			entry.Tick, seq, re.AgentID,
			evString(re.Event, "type"), evString(re.Event, "node_id"), evString(re.Event, "resource"),
			evInt(re.Event, "count"), string(rawEv),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func evString(e map[string]interface{}, key string) string {
	v, _ := e[key].(string)
	return v
}

func evInt(e map[string]interface{}, key string) int {
	switch v := e[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// GatheredTotals sums the yield of every indexed GATHER_CYCLE event, keyed
// by resource id.
func (s *SQLiteIndex) GatheredTotals(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT resource, COALESCE(SUM(count), 0) FROM events WHERE type = 'GATHER_CYCLE' GROUP BY resource`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var resource string
		var total int
		if err := rows.Scan(&resource, &total); err != nil {
			return nil, err
		}
		out[resource] = total
	}
	return out, rows.Err()
}

// DepletedNodes lists node ids with an indexed NODE_DEPLETED event, in
// depletion order.
func (s *SQLiteIndex) DepletedNodes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT node_id FROM events WHERE type = 'NODE_DEPLETED' ORDER BY tick, seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AgentEvents returns up to limit raw events for one agent, oldest first.
func (s *SQLiteIndex) AgentEvents(ctx context.Context, agentID string, limit int) ([]world.RecordedEvent, error) {
	if limit <= 0 || limit > 1024 {
		limit = 256
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent_id, raw_json FROM events WHERE agent_id = ? ORDER BY tick, seq LIMIT ?`, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []world.RecordedEvent
	for rows.Next() {
		var re world.RecordedEvent
		var raw string
		if err := rows.Scan(&re.AgentID, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &re.Event); err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, rows.Err()
}
