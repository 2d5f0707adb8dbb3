package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lirancohen/questengine/internal/questdef"
)

// AddEvent persists an event against an instance. Idempotent on event.ID:
// a duplicate insert is a no-op, matching the at-least-once delivery
// contract — a replayed fold over the event set is unaffected either way.
func (s *Store) AddEvent(event questdef.Event, instanceID string) error {
	if err := validateUUID(instanceID); err != nil {
		return err
	}
	encoded, err := json.Marshal(event.Action)
	if err != nil {
		return fmt.Errorf("%w: encode event: %v", ErrSerialization, err)
	}
	_, err = s.db.Exec(
		`INSERT OR IGNORE INTO events (id, user_address, event, quest_instance_id, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		event.ID, event.Address, encoded, instanceID, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("%w: add event: %v", ErrStoreFailure, err)
	}
	return nil
}

// GetEvents returns every event for an instance, ascending by timestamp —
// the ordering apply_event's fold requires.
func (s *Store) GetEvents(instanceID string) ([]questdef.Event, error) {
	if err := validateUUID(instanceID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT id, user_address, event FROM events WHERE quest_instance_id = ? ORDER BY timestamp ASC`,
		instanceID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: get events: %v", ErrStoreFailure, err)
	}
	defer rows.Close()

	var events []questdef.Event
	for rows.Next() {
		var e questdef.Event
		var encoded []byte
		if err := rows.Scan(&e.ID, &e.Address, &encoded); err != nil {
			return nil, fmt.Errorf("%w: scan event: %v", ErrStoreFailure, err)
		}
		if err := json.Unmarshal(encoded, &e.Action); err != nil {
			return nil, fmt.Errorf("%w: decode event action %q: %v", ErrSerialization, e.ID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// RemoveEvent deletes a single event by id.
func (s *Store) RemoveEvent(eventID string) error {
	if err := validateUUID(eventID); err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM events WHERE id = ?`, eventID); err != nil {
		return fmt.Errorf("%w: remove event: %v", ErrStoreFailure, err)
	}
	return nil
}

// RemoveEventsForInstance deletes every event for an instance, used by the
// creator-initiated reset operation.
func (s *Store) RemoveEventsForInstance(instanceID string) error {
	if err := validateUUID(instanceID); err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM events WHERE quest_instance_id = ?`, instanceID); err != nil {
		return fmt.Errorf("%w: remove events for instance: %v", ErrStoreFailure, err)
	}
	return nil
}
