package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lirancohen/questengine/internal/questdef"
)

// StartQuest creates a new instance of quest_id for user, rejecting the
// call with ErrQuestAlreadyStarted if the user already holds an active
// instance of this quest.
func (s *Store) StartQuest(questID, user string) (string, error) {
	if err := validateUUID(questID); err != nil {
		return "", err
	}
	user = strings.ToLower(user)

	active, err := s.GetActiveUserQuestInstances(user)
	if err != nil {
		return "", err
	}
	for _, inst := range active {
		if inst.QuestID == questID {
			return "", ErrQuestAlreadyStarted
		}
	}

	id := uuid.New().String()
	_, err = s.db.Exec(
		`INSERT INTO quest_instances (id, quest_id, user_address, start_timestamp) VALUES (?, ?, ?, ?)`,
		id, questID, user, time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: start quest: %v", ErrStoreFailure, err)
	}
	return id, nil
}

// AbandonQuestInstance marks an instance abandoned.
func (s *Store) AbandonQuestInstance(id string) error {
	if err := validateUUID(id); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT OR IGNORE INTO abandoned_quests (instance_id) VALUES (?)`, id)
	if err != nil {
		return fmt.Errorf("%w: abandon instance: %v", ErrStoreFailure, err)
	}
	return nil
}

// CompleteQuestInstance marks an instance completed.
func (s *Store) CompleteQuestInstance(id string) error {
	if err := validateUUID(id); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT OR IGNORE INTO completed_instances (instance_id) VALUES (?)`, id)
	if err != nil {
		return fmt.Errorf("%w: complete instance: %v", ErrStoreFailure, err)
	}
	return nil
}

// RemoveInstanceFromCompletedInstances clears an instance's completion
// mark, used when a creator resets an instance back to active.
func (s *Store) RemoveInstanceFromCompletedInstances(id string) error {
	if err := validateUUID(id); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM completed_instances WHERE instance_id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: clear completion mark: %v", ErrStoreFailure, err)
	}
	return nil
}

// IsCompletedInstance reports whether id is in the completed set.
func (s *Store) IsCompletedInstance(id string) (bool, error) {
	if err := validateUUID(id); err != nil {
		return false, err
	}
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM completed_instances WHERE instance_id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: check completed instance: %v", ErrStoreFailure, err)
	}
	return exists, nil
}

// IsActiveQuestInstance reports whether id exists and is neither abandoned
// nor completed.
func (s *Store) IsActiveQuestInstance(id string) (bool, error) {
	if err := validateUUID(id); err != nil {
		return false, err
	}
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM quest_instances WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: check instance exists: %v", ErrStoreFailure, err)
	}
	if !exists {
		return false, nil
	}
	var abandoned, completed bool
	if err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM abandoned_quests WHERE instance_id = ?)`, id).Scan(&abandoned); err != nil {
		return false, fmt.Errorf("%w: check abandoned: %v", ErrStoreFailure, err)
	}
	if err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM completed_instances WHERE instance_id = ?)`, id).Scan(&completed); err != nil {
		return false, fmt.Errorf("%w: check completed: %v", ErrStoreFailure, err)
	}
	return !abandoned && !completed, nil
}

// GetQuestInstance returns a single instance by id.
func (s *Store) GetQuestInstance(id string) (questdef.QuestInstance, error) {
	if err := validateUUID(id); err != nil {
		return questdef.QuestInstance{}, err
	}

	var inst questdef.QuestInstance
	err := s.db.QueryRow(
		`SELECT id, quest_id, user_address, start_timestamp FROM quest_instances WHERE id = ?`, id,
	).Scan(&inst.ID, &inst.QuestID, &inst.UserAddress, &inst.StartTimestamp)
	if err == sql.ErrNoRows {
		return questdef.QuestInstance{}, ErrNotFound
	}
	if err != nil {
		return questdef.QuestInstance{}, fmt.Errorf("%w: get instance: %v", ErrStoreFailure, err)
	}
	return inst, nil
}

// GetActiveUserQuestInstances returns every instance of user that is
// neither abandoned nor completed.
func (s *Store) GetActiveUserQuestInstances(user string) ([]questdef.QuestInstance, error) {
	rows, err := s.db.Query(
		`SELECT id, quest_id, user_address, start_timestamp
		 FROM quest_instances
		 WHERE user_address = ?
		   AND id NOT IN (SELECT instance_id FROM abandoned_quests)
		   AND id NOT IN (SELECT instance_id FROM completed_instances)
		 ORDER BY start_timestamp ASC`,
		strings.ToLower(user),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list active user instances: %v", ErrStoreFailure, err)
	}
	defer rows.Close()
	return scanInstances(rows)
}

// GetActiveQuestInstancesByQuestID returns a page of active instances of
// quest_id, for a creator's instance-listing endpoint.
func (s *Store) GetActiveQuestInstancesByQuestID(questID string, offset, limit int) ([]questdef.QuestInstance, error) {
	if err := validateUUID(questID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT id, quest_id, user_address, start_timestamp
		 FROM quest_instances
		 WHERE quest_id = ?
		   AND id NOT IN (SELECT instance_id FROM abandoned_quests)
		   AND id NOT IN (SELECT instance_id FROM completed_instances)
		 ORDER BY start_timestamp DESC
		 LIMIT ? OFFSET ?`,
		questID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list instances by quest: %v", ErrStoreFailure, err)
	}
	defer rows.Close()
	return scanInstances(rows)
}

// CountActiveQuestInstancesByQuestID is used by the stats endpoint.
func (s *Store) CountActiveQuestInstancesByQuestID(questID string) (int, error) {
	if err := validateUUID(questID); err != nil {
		return 0, err
	}
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM quest_instances
		 WHERE quest_id = ?
		   AND id NOT IN (SELECT instance_id FROM abandoned_quests)
		   AND id NOT IN (SELECT instance_id FROM completed_instances)`,
		questID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: count active instances: %v", ErrStoreFailure, err)
	}
	return count, nil
}

// QuestStats backs the creator-facing stats endpoint.
type QuestStats struct {
	ActivePlayers        int `json:"active_players"`
	Abandoned            int `json:"abandoned"`
	Completed            int `json:"completed"`
	StartedInLast24Hours int `json:"started_in_last_24_hours"`
}

// GetQuestStats aggregates the instance counters for a quest.
func (s *Store) GetQuestStats(questID string) (QuestStats, error) {
	if err := validateUUID(questID); err != nil {
		return QuestStats{}, err
	}

	var stats QuestStats

	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM quest_instances
		 WHERE quest_id = ?
		   AND id NOT IN (SELECT instance_id FROM abandoned_quests)
		   AND id NOT IN (SELECT instance_id FROM completed_instances)`,
		questID,
	).Scan(&stats.ActivePlayers)
	if err != nil {
		return QuestStats{}, fmt.Errorf("%w: active players: %v", ErrStoreFailure, err)
	}

	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM quest_instances qi
		 JOIN abandoned_quests aq ON aq.instance_id = qi.id
		 WHERE qi.quest_id = ?`,
		questID,
	).Scan(&stats.Abandoned)
	if err != nil {
		return QuestStats{}, fmt.Errorf("%w: abandoned count: %v", ErrStoreFailure, err)
	}

	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM quest_instances qi
		 JOIN completed_instances ci ON ci.instance_id = qi.id
		 WHERE qi.quest_id = ?`,
		questID,
	).Scan(&stats.Completed)
	if err != nil {
		return QuestStats{}, fmt.Errorf("%w: completed count: %v", ErrStoreFailure, err)
	}

	cutoff := time.Now().Add(-24 * time.Hour).Unix()
	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM quest_instances WHERE quest_id = ? AND start_timestamp >= ?`,
		questID, cutoff,
	).Scan(&stats.StartedInLast24Hours)
	if err != nil {
		return QuestStats{}, fmt.Errorf("%w: started in last 24h: %v", ErrStoreFailure, err)
	}

	return stats, nil
}

func scanInstances(rows *sql.Rows) ([]questdef.QuestInstance, error) {
	var instances []questdef.QuestInstance
	for rows.Next() {
		var inst questdef.QuestInstance
		if err := rows.Scan(&inst.ID, &inst.QuestID, &inst.UserAddress, &inst.StartTimestamp); err != nil {
			return nil, fmt.Errorf("%w: scan instance: %v", ErrStoreFailure, err)
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}
