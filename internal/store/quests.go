package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lirancohen/questengine/internal/questdef"
)

// CreateQuest validates and inserts a new quest, returning its generated id.
func (s *Store) CreateQuest(q questdef.Quest, creator string) (string, error) {
	if err := q.Validate(); err != nil {
		return "", err
	}

	defJSON, err := json.Marshal(q.Definition)
	if err != nil {
		return "", fmt.Errorf("%w: encode definition: %v", ErrSerialization, err)
	}

	id := uuid.New().String()
	createdAt := time.Now().Unix()

	_, err = s.db.Exec(
		`INSERT INTO quests (id, name, description, image_url, creator_address, definition, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, q.Name, q.Description, q.ImageURL, strings.ToLower(creator), defJSON, createdAt,
	)
	if err != nil {
		return "", fmt.Errorf("%w: insert quest: %v", ErrStoreFailure, err)
	}
	return id, nil
}

// UpdateQuest atomically replaces prevID with a new quest: the new quest is
// created, the old one deactivated, and a predecessor link recorded. Fails
// with ErrQuestIsNotUpdatable if any instance has ever been started on
// prevID.
func (s *Store) UpdateQuest(prevID string, newQuest questdef.Quest, creator string) (string, error) {
	if err := newQuest.Validate(); err != nil {
		return "", err
	}
	if err := validateUUID(prevID); err != nil {
		return "", err
	}

	updatable, err := s.IsUpdatable(prevID)
	if err != nil {
		return "", err
	}
	if !updatable {
		return "", ErrQuestIsNotUpdatable
	}

	defJSON, err := json.Marshal(newQuest.Definition)
	if err != nil {
		return "", fmt.Errorf("%w: encode definition: %v", ErrSerialization, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("%w: begin tx: %v", ErrStoreFailure, err)
	}
	defer tx.Rollback()

	newID := uuid.New().String()
	createdAt := time.Now().Unix()

	if _, err := tx.Exec(
		`INSERT INTO quests (id, name, description, image_url, creator_address, definition, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		newID, newQuest.Name, newQuest.Description, newQuest.ImageURL, strings.ToLower(creator), defJSON, createdAt,
	); err != nil {
		return "", fmt.Errorf("%w: insert new quest: %v", ErrStoreFailure, err)
	}

	if _, err := tx.Exec(
		`INSERT INTO deactivated_quests (quest_id) VALUES (?)`, prevID,
	); err != nil {
		return "", fmt.Errorf("%w: deactivate previous quest: %v", ErrStoreFailure, err)
	}

	if _, err := tx.Exec(
		`INSERT INTO quest_updates (id, quest_id, previous_quest_id) VALUES (?, ?, ?)`,
		uuid.New().String(), newID, prevID,
	); err != nil {
		return "", fmt.Errorf("%w: insert predecessor link: %v", ErrStoreFailure, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%w: commit update_quest: %v", ErrStoreFailure, err)
	}
	return newID, nil
}

// GetQuest returns a quest by id, including whether it is currently active.
func (s *Store) GetQuest(id string) (questdef.Quest, error) {
	if err := validateUUID(id); err != nil {
		return questdef.Quest{}, err
	}

	var q questdef.Quest
	var defJSON []byte

	err := s.db.QueryRow(
		`SELECT id, name, description, image_url, creator_address, definition, created_at FROM quests WHERE id = ?`,
		id,
	).Scan(&q.ID, &q.Name, &q.Description, &q.ImageURL, &q.CreatorAddress, &defJSON, &q.CreatedAt)
	if err == sql.ErrNoRows {
		return questdef.Quest{}, ErrNotFound
	}
	if err != nil {
		return questdef.Quest{}, fmt.Errorf("%w: get quest: %v", ErrStoreFailure, err)
	}

	if err := json.Unmarshal(defJSON, &q.Definition); err != nil {
		return questdef.Quest{}, fmt.Errorf("%w: decode definition: %v", ErrSerialization, err)
	}

	active, err := s.IsActiveQuest(id)
	if err != nil {
		return questdef.Quest{}, err
	}
	q.Active = active
	return q, nil
}

// GetActiveQuests returns a page of currently-active quests.
func (s *Store) GetActiveQuests(offset, limit int) ([]questdef.Quest, error) {
	rows, err := s.db.Query(
		`SELECT id, name, description, image_url, creator_address, definition, created_at
		 FROM quests
		 WHERE id NOT IN (SELECT quest_id FROM deactivated_quests)
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list active quests: %v", ErrStoreFailure, err)
	}
	defer rows.Close()
	return scanQuests(rows, true)
}

// GetQuestsByCreator returns a page of quests (active or not) created by addr.
func (s *Store) GetQuestsByCreator(addr string, offset, limit int) ([]questdef.Quest, error) {
	rows, err := s.db.Query(
		`SELECT id, name, description, image_url, creator_address, definition, created_at
		 FROM quests
		 WHERE creator_address = ?
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		strings.ToLower(addr), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list quests by creator: %v", ErrStoreFailure, err)
	}
	defer rows.Close()

	quests, err := scanQuests(rows, false)
	if err != nil {
		return nil, err
	}
	for i := range quests {
		active, err := s.IsActiveQuest(quests[i].ID)
		if err != nil {
			return nil, err
		}
		quests[i].Active = active
	}
	return quests, nil
}

// IsActiveQuest reports whether id is present in quests and absent from
// deactivated_quests.
func (s *Store) IsActiveQuest(id string) (bool, error) {
	if err := validateUUID(id); err != nil {
		return false, err
	}

	var deactivated bool
	err := s.db.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM deactivated_quests WHERE quest_id = ?)`, id,
	).Scan(&deactivated)
	if err != nil {
		return false, fmt.Errorf("%w: check active quest: %v", ErrStoreFailure, err)
	}
	if deactivated {
		return false, nil
	}
	var exists bool
	err = s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM quests WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: check quest exists: %v", ErrStoreFailure, err)
	}
	return exists, nil
}

// IsUpdatable reports whether no instance has ever been started on id.
func (s *Store) IsUpdatable(id string) (bool, error) {
	if err := validateUUID(id); err != nil {
		return false, err
	}

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM quest_instances WHERE quest_id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("%w: check updatable: %v", ErrStoreFailure, err)
	}
	return count == 0, nil
}

// CanActivateQuest reports whether id is currently inactive and no newer
// version (a quest_updates row naming id as previous_quest_id) links to it.
func (s *Store) CanActivateQuest(id string) (bool, error) {
	if err := validateUUID(id); err != nil {
		return false, err
	}

	active, err := s.IsActiveQuest(id)
	if err != nil {
		return false, err
	}
	if active {
		return false, nil
	}
	var hasNewerVersion bool
	err = s.db.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM quest_updates WHERE previous_quest_id = ?)`, id,
	).Scan(&hasNewerVersion)
	if err != nil {
		return false, fmt.Errorf("%w: check newer version: %v", ErrStoreFailure, err)
	}
	return !hasNewerVersion, nil
}

// ActivateQuest reactivates a deactivated quest, failing with
// ErrQuestNotActivable if it cannot be activated.
func (s *Store) ActivateQuest(id string) error {
	can, err := s.CanActivateQuest(id)
	if err != nil {
		return err
	}
	if !can {
		return ErrQuestNotActivable
	}
	if _, err := s.db.Exec(`DELETE FROM deactivated_quests WHERE quest_id = ?`, id); err != nil {
		return fmt.Errorf("%w: activate quest: %v", ErrStoreFailure, err)
	}
	return nil
}

// DeactivateQuest marks a quest inactive.
func (s *Store) DeactivateQuest(id string) error {
	active, err := s.IsActiveQuest(id)
	if err != nil {
		return err
	}
	if !active {
		return ErrQuestIsCurrentlyDeactivated
	}
	if _, err := s.db.Exec(`INSERT INTO deactivated_quests (quest_id) VALUES (?)`, id); err != nil {
		return fmt.Errorf("%w: deactivate quest: %v", ErrStoreFailure, err)
	}
	return nil
}

// GetOldQuestVersions returns the chain of quest ids that id superseded,
// most recent predecessor first.
func (s *Store) GetOldQuestVersions(id string) ([]string, error) {
	if err := validateUUID(id); err != nil {
		return nil, err
	}

	var versions []string
	current := id
	for {
		var previous string
		err := s.db.QueryRow(
			`SELECT previous_quest_id FROM quest_updates WHERE quest_id = ?`, current,
		).Scan(&previous)
		if err == sql.ErrNoRows {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: walk quest versions: %v", ErrStoreFailure, err)
		}
		versions = append(versions, previous)
		current = previous
	}
	return versions, nil
}

// IsQuestCreator reports whether addr (case-insensitively) created quest_id.
func (s *Store) IsQuestCreator(questID, addr string) (bool, error) {
	q, err := s.GetQuest(questID)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(q.CreatorAddress, addr), nil
}

func scanQuests(rows *sql.Rows, allActive bool) ([]questdef.Quest, error) {
	var quests []questdef.Quest
	for rows.Next() {
		var q questdef.Quest
		var defJSON []byte
		if err := rows.Scan(&q.ID, &q.Name, &q.Description, &q.ImageURL, &q.CreatorAddress, &defJSON, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan quest: %v", ErrStoreFailure, err)
		}
		if err := json.Unmarshal(defJSON, &q.Definition); err != nil {
			return nil, fmt.Errorf("%w: decode definition: %v", ErrSerialization, err)
		}
		q.Active = allActive
		quests = append(quests, q)
	}
	return quests, rows.Err()
}
