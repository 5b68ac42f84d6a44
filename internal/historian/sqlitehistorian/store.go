package sqlitehistorian

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/coriolis-automation/opcuacore/internal/subscription"
	"github.com/coriolis-automation/opcuacore/internal/ua"
)

// Store is a SQLite-backed subscription.EventHistorian, plus a general
// DataValue history table a demo or embedding application can use for
// HistoryRead-style queries — the core itself never calls RecordDataChange;
// spec.md's Non-goals keep value historization out of the core, but a
// reference sink for it belongs in a reference historian all the same.
type Store struct {
	db *sql.DB
}

var _ subscription.EventHistorian = (*Store)(nil)

// Open opens (creating if necessary) the SQLite database at path and
// applies any pending migrations.
func Open(path string) (*Store, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := migrateDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordEvent satisfies subscription.EventHistorian. Insert errors are
// discarded: the hook has no error return, so Manager.TriggerEvent never
// sees a historian failure.
func (s *Store) RecordEvent(eventId []byte, originNode ua.NodeId) {
	_, _ = s.db.Exec(
		`INSERT INTO event_history (event_id, origin_node_id, recorded_at_ns) VALUES (?, ?, ?)`,
		fmt.Sprintf("%x", eventId), originNode.String(), time.Now().UnixNano(),
	)
}

// RecordDataChange appends one DataValue sample for nodeId/attributeId.
// Numeric kinds are stored in value_float, everything else via its string
// cast so the table stays queryable without a Variant-aware reader.
func (s *Store) RecordDataChange(nodeId ua.NodeId, attributeId ua.AttributeId, dv ua.DataValue) error {
	var text sql.NullString
	var float sql.NullFloat64
	switch dv.Value.Type {
	case ua.VariantDouble, ua.VariantFloat:
		float = sql.NullFloat64{Float64: dv.Value.Float, Valid: true}
	case ua.VariantInt64, ua.VariantInt32, ua.VariantInt16, ua.VariantSByte:
		float = sql.NullFloat64{Float64: float64(dv.Value.Int), Valid: true}
	case ua.VariantUInt64, ua.VariantUInt32, ua.VariantUInt16, ua.VariantByte, ua.VariantStatusCode:
		float = sql.NullFloat64{Float64: float64(dv.Value.UInt), Valid: true}
	case ua.VariantString:
		text = sql.NullString{String: dv.Value.Str, Valid: true}
	}
	ts := dv.SourceTimestamp
	if !dv.HasSourceTimestamp {
		ts = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO data_value_history (node_id, attribute_id, value_encoding, value_text, value_float, status_code, source_ts_ns) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nodeId.String(), int(attributeId), int(dv.Value.Type), text, float, uint32(dv.Status), ts.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record data change for %s: %w", nodeId, err)
	}
	return nil
}

// EventRecord is one row read back from EventsForNode.
type EventRecord struct {
	EventId      string
	OriginNodeId string
	RecordedAt   time.Time
}

// EventsForNode returns every recorded event whose origin matches nodeId,
// most recent first.
func (s *Store) EventsForNode(nodeId ua.NodeId) ([]EventRecord, error) {
	rows, err := s.db.Query(
		`SELECT event_id, origin_node_id, recorded_at_ns FROM event_history WHERE origin_node_id = ? ORDER BY recorded_at_ns DESC`,
		nodeId.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query events for %s: %w", nodeId, err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var rec EventRecord
		var recordedAtNs int64
		if err := rows.Scan(&rec.EventId, &rec.OriginNodeId, &recordedAtNs); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		rec.RecordedAt = time.Unix(0, recordedAtNs)
		out = append(out, rec)
	}
	return out, rows.Err()
}
