package sqlitehistorian

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/coriolis-automation/opcuacore/internal/ua"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "historian.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordEventAndQuery(t *testing.T) {
	s := openTestStore(t)
	origin := ua.NewNumericNodeId(1, 42)

	s.RecordEvent([]byte{0x01, 0x02}, origin)
	s.RecordEvent([]byte{0x03, 0x04}, origin)
	s.RecordEvent([]byte{0x05}, ua.NewNumericNodeId(1, 99))

	events, err := s.EventsForNode(origin)
	if err != nil {
		t.Fatalf("EventsForNode: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("EventsForNode = %d records, want 2", len(events))
	}
	if events[0].EventId != "0304" {
		t.Fatalf("most recent event id = %q, want 0304", events[0].EventId)
	}
}

func TestStore_RecordDataChange(t *testing.T) {
	s := openTestStore(t)
	node := ua.NewNumericNodeId(1, 7)

	dv := ua.DataValue{
		Value:              ua.NewDoubleVariant(21.5),
		Status:             ua.Good,
		HasValue:           true,
		SourceTimestamp:    time.Unix(1700000000, 0),
		HasSourceTimestamp: true,
	}
	if err := s.RecordDataChange(node, ua.AttrValue, dv); err != nil {
		t.Fatalf("RecordDataChange: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM data_value_history WHERE node_id = ?`, node.String()).Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 1 {
		t.Fatalf("data_value_history rows = %d, want 1", count)
	}
}

func TestStore_MigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "historian.db")
	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open (re-migrate): %v", err)
	}
	defer s2.Close()
}
