package questdef

// QuestInstance is one user's run of a quest: it owns an event log (kept in
// the store, not here) and a derived state (computed by package queststate).
type QuestInstance struct {
	ID             string `json:"id"`
	QuestID        string `json:"quest_id"`
	UserAddress    string `json:"user_address"`
	StartTimestamp int64  `json:"start_timestamp"`
}

// Event is an immutable user action submitted to the engine. Once stored,
// an event is never mutated except by a full instance reset, which deletes
// every event for that instance.
type Event struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Action  Action `json:"action"`
}
