package journal

import (
	"database/sql"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sgomezmalagon/juego-bolas/internal/logging"
)

// Event types written by the controller and the server
const (
	EvtRunStart      = "run_start"
	EvtRunEnd        = "run_end"
	EvtBallAdded     = "ball_added"
	EvtPlayerAdded   = "player_added"
	EvtPlayerRefused = "player_refused"
	EvtBallsCleared  = "balls_cleared"
	EvtResize        = "resize"
	EvtRoomEnter     = "room_enter"
	EvtRoomLeave     = "room_leave"
	EvtTickStats     = "tick_stats"
	EvtClientJoin    = "client_join"
	EvtClientLeave   = "client_leave"
	EvtLogin         = "login"
	EvtLoginFailed   = "login_failed"
)

// Event is a single journal row
type Event struct {
	Type      string    `json:"type"`
	BodyID    uint64    `json:"bodyId,omitempty"`
	Data      string    `json:"data,omitempty"` // JSON metadata (optional)
	Timestamp time.Time `json:"ts"`
}

// Options tunes the background writer
type Options struct {
	FlushInterval time.Duration
	BatchSize     int
	QueueSize     int
}

func (o Options) withDefaults() Options {
	if o.FlushInterval <= 0 {
		o.FlushInterval = 5 * time.Second
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
	return o
}

// Journal records events with batched background writes. Track never
// blocks: when the queue is full the event is dropped and counted.
type Journal struct {
	db      *DB
	runID   int64
	opts    Options
	log     zerolog.Logger
	events  chan Event
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	dropped atomic.Int64
	written atomic.Int64
}

// New starts the background writer. db may be nil, in which case events
// are accepted and discarded.
func New(db *DB, runID int64, opts Options, log zerolog.Logger) *Journal {
	opts = opts.withDefaults()
	j := &Journal{
		db:     db,
		runID:  runID,
		opts:   opts,
		log:    logging.Component(log, "journal"),
		events: make(chan Event, opts.QueueSize),
		stop:   make(chan struct{}),
	}
	j.wg.Add(1)
	go j.writer()
	return j
}

// Track enqueues an event for async persistence (non-blocking)
func (j *Journal) Track(evtType string, bodyID uint64, data string) {
	select {
	case <-j.stop:
		j.dropped.Add(1)
		return
	default:
	}
	select {
	case j.events <- Event{
		Type:      evtType,
		BodyID:    bodyID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}:
	default:
		j.dropped.Add(1)
	}
}

// TrackJSON is Track with data marshalled from v
func (j *Journal) TrackJSON(evtType string, bodyID uint64, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		j.log.Warn().Err(err).Str("event", evtType).Msg("marshal event data")
		j.Track(evtType, bodyID, "")
		return
	}
	j.Track(evtType, bodyID, string(b))
}

// Dropped returns how many events were discarded because the queue was full
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// Written returns how many events reached the database
func (j *Journal) Written() int64 {
	return j.written.Load()
}

// Stop drains the queue, flushes and waits for the writer to exit.
// Safe to call more than once.
func (j *Journal) Stop() {
	j.once.Do(func() {
		close(j.stop)
		j.wg.Wait()
	})
}

func (j *Journal) writer() {
	defer j.wg.Done()

	batch := make([]Event, 0, j.opts.BatchSize)
	ticker := time.NewTicker(j.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case evt := <-j.events:
			batch = append(batch, evt)
			if len(batch) >= j.opts.BatchSize {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-j.stop:
			// Track checks stop first, so only in-flight sends can still land
		drain:
			for {
				select {
				case evt := <-j.events:
					batch = append(batch, evt)
				default:
					break drain
				}
			}
			if len(batch) > 0 {
				j.flush(batch)
			}
			return
		}
	}
}

func (j *Journal) flush(events []Event) {
	if j.db == nil || len(events) == 0 {
		return
	}
	tx, err := j.db.conn.Begin()
	if err != nil {
		j.log.Error().Err(err).Msg("begin tx")
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO events (run_id, event_type, body_id, data, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		j.log.Error().Err(err).Msg("prepare insert")
		return
	}
	defer stmt.Close()

	run := sql.NullInt64{Int64: j.runID, Valid: j.runID > 0}
	n := 0
	for _, evt := range events {
		body := sql.NullInt64{Int64: int64(evt.BodyID), Valid: evt.BodyID > 0}
		data := sql.NullString{String: evt.Data, Valid: evt.Data != ""}
		if _, err := stmt.Exec(run, evt.Type, body, data, evt.Timestamp.Format(time.RFC3339Nano)); err != nil {
			j.log.Error().Err(err).Str("event", evt.Type).Msg("insert event")
			continue
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		j.log.Error().Err(err).Msg("commit")
		return
	}
	j.written.Add(int64(n))
	j.log.Debug().Int("events", n).Msg("flushed")
}

// EventCounts returns counts of each event type for the last N days
func (j *Journal) EventCounts(days int) (map[string]int, error) {
	if j.db == nil {
		return map[string]int{}, nil
	}
	rows, err := j.db.conn.Query(`
		SELECT event_type, COUNT(*) FROM events
		WHERE created_at >= date('now', '-' || ? || ' days')
		GROUP BY event_type ORDER BY COUNT(*) DESC
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var evtType string
		var count int
		if err := rows.Scan(&evtType, &count); err != nil {
			continue
		}
		result[evtType] = count
	}
	return result, rows.Err()
}

// Recent returns the newest events, newest first
func (j *Journal) Recent(limit int) ([]Event, error) {
	if j.db == nil {
		return nil, nil
	}
	rows, err := j.db.conn.Query(`
		SELECT event_type, COALESCE(body_id, 0), COALESCE(data, ''), created_at
		FROM events ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Event
	for rows.Next() {
		var e Event
		var body int64
		var ts string
		if err := rows.Scan(&e.Type, &body, &e.Data, &ts); err != nil {
			continue
		}
		e.BodyID = uint64(body)
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		result = append(result, e)
	}
	return result, rows.Err()
}
