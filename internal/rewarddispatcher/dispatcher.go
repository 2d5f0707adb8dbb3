// Package rewarddispatcher issues the webhook call that grants a quest's
// configured reward on first completion (C9). It never retries: a dropped
// reward is logged and left for an operator to notice, not silently
// re-attempted against a webhook that may not be idempotent.
package rewarddispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lirancohen/questengine/internal/store"
)

const requestTimeout = 10 * time.Second

// Dispatcher looks up a quest's reward hook and, if one is configured,
// issues its webhook.
type Dispatcher struct {
	store      *store.Store
	httpClient *http.Client
	logger     *slog.Logger
}

// New returns a Dispatcher backed by st, using client for outbound webhook
// calls (nil selects a client with requestTimeout applied).
func New(st *store.Store, client *http.Client, logger *slog.Logger) *Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{store: st, httpClient: client, logger: logger}
}

// Dispatch looks up questID's reward hook and, if present, POSTs its
// templated body to its webhook URL for userAddress. Absent hook is a
// silent no-op; every other failure is logged and dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, questID, instanceID, userAddress string) {
	hook, err := d.store.GetQuestRewardHook(questID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return
		}
		d.logger.Error("reward dispatch: load reward hook", "quest_id", questID, "instance_id", instanceID, "error", err)
		return
	}

	url := substitute(hook.WebhookURL, questID, userAddress)
	body := make(map[string]string, len(hook.RequestBody))
	for k, v := range hook.RequestBody {
		body[k] = substitute(v, questID, userAddress)
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		d.logger.Error("reward dispatch: encode request body", "quest_id", questID, "instance_id", instanceID, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		d.logger.Error("reward dispatch: build request", "quest_id", questID, "instance_id", instanceID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Error("reward dispatch: webhook request failed", "quest_id", questID, "instance_id", instanceID, "error", err)
		return
	}
	defer resp.Body.Close()

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		d.logger.Error("reward dispatch: non-JSON webhook response", "quest_id", questID, "instance_id", instanceID, "error", err)
		return
	}

	if result.OK {
		d.logger.Info("reward granted", "quest_id", questID, "instance_id", instanceID, "user_address", userAddress)
	} else {
		d.logger.Warn("reward not granted", "quest_id", questID, "instance_id", instanceID, "user_address", userAddress)
	}
}

func substitute(template, questID, userAddress string) string {
	r := strings.NewReplacer("{user_address}", userAddress, "{quest_id}", questID)
	return r.Replace(template)
}
