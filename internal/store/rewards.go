package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// RewardHook is the webhook configuration dispatched on an instance's first
// completion. RequestBody's values (and WebhookURL) may contain the
// literal tokens "{user_address}"/"{quest_id}", substituted by the reward
// dispatcher before the request is sent.
type RewardHook struct {
	WebhookURL  string            `json:"webhook_url"`
	RequestBody map[string]string `json:"request_body"`
}

// AddRewardHookToQuest sets (replacing any existing) the reward hook for a
// quest.
func (s *Store) AddRewardHookToQuest(questID string, hook RewardHook) error {
	if err := validateUUID(questID); err != nil {
		return err
	}
	bodyJSON, err := json.Marshal(hook.RequestBody)
	if err != nil {
		return fmt.Errorf("%w: encode reward hook body: %v", ErrSerialization, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO quest_reward_hooks (quest_id, webhook_url, request_body) VALUES (?, ?, ?)
		 ON CONFLICT(quest_id) DO UPDATE SET webhook_url = excluded.webhook_url, request_body = excluded.request_body`,
		questID, hook.WebhookURL, bodyJSON,
	)
	if err != nil {
		return fmt.Errorf("%w: add reward hook: %v", ErrStoreFailure, err)
	}
	return nil
}

// GetQuestRewardHook returns the reward hook for a quest, or ErrNotFound
// if none is configured.
func (s *Store) GetQuestRewardHook(questID string) (RewardHook, error) {
	if err := validateUUID(questID); err != nil {
		return RewardHook{}, err
	}

	var hook RewardHook
	var bodyJSON []byte
	err := s.db.QueryRow(
		`SELECT webhook_url, request_body FROM quest_reward_hooks WHERE quest_id = ?`, questID,
	).Scan(&hook.WebhookURL, &bodyJSON)
	if err == sql.ErrNoRows {
		return RewardHook{}, ErrNotFound
	}
	if err != nil {
		return RewardHook{}, fmt.Errorf("%w: get reward hook: %v", ErrStoreFailure, err)
	}
	if err := json.Unmarshal(bodyJSON, &hook.RequestBody); err != nil {
		return RewardHook{}, fmt.Errorf("%w: decode reward hook body: %v", ErrSerialization, err)
	}
	return hook, nil
}

// AddRewardItemsToQuest replaces the reward item list shown on a quest's
// reward page.
func (s *Store) AddRewardItemsToQuest(questID string, items []string) error {
	if err := validateUUID(questID); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", ErrStoreFailure, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM quest_reward_items WHERE quest_id = ?`, questID); err != nil {
		return fmt.Errorf("%w: clear reward items: %v", ErrStoreFailure, err)
	}
	for i, item := range items {
		if _, err := tx.Exec(
			`INSERT INTO quest_reward_items (quest_id, ordinal, item) VALUES (?, ?, ?)`,
			questID, i, item,
		); err != nil {
			return fmt.Errorf("%w: insert reward item: %v", ErrStoreFailure, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit reward items: %v", ErrStoreFailure, err)
	}
	return nil
}

// GetQuestRewardItems returns a quest's reward items in their stored order.
func (s *Store) GetQuestRewardItems(questID string) ([]string, error) {
	if err := validateUUID(questID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT item FROM quest_reward_items WHERE quest_id = ? ORDER BY ordinal ASC`, questID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: get reward items: %v", ErrStoreFailure, err)
	}
	defer rows.Close()

	var items []string
	for rows.Next() {
		var item string
		if err := rows.Scan(&item); err != nil {
			return nil, fmt.Errorf("%w: scan reward item: %v", ErrStoreFailure, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
