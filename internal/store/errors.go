package store

import (
	"errors"

	"github.com/google/uuid"
)

// Error kinds surfaced by the store, per the engine's error-handling design:
// every store failure is one of these sentinels, wrapped with its cause so
// errors.Is still recovers the kind at the HTTP/RPC boundary.
var (
	ErrNotFound                    = errors.New("not found")
	ErrNotUuid                     = errors.New("not a uuid")
	ErrNotOwner                    = errors.New("not owner")
	ErrNotQuestCreator             = errors.New("not quest creator")
	ErrQuestAlreadyStarted         = errors.New("quest already started")
	ErrQuestNotActivable           = errors.New("quest not activable")
	ErrQuestIsNotUpdatable         = errors.New("quest is not updatable")
	ErrQuestIsCurrentlyDeactivated = errors.New("quest is currently deactivated")
	ErrStoreFailure                = errors.New("store failure")
	ErrSerialization               = errors.New("serialization failure")
)

// validateUUID rejects any id that isn't a parseable UUID, before it ever
// reaches a query. Every store accessor keyed on a quest, instance, or event
// id calls this first, so a malformed id surfaces as ErrNotUuid rather than
// falling through to ErrNotFound.
func validateUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotUuid
	}
	return nil
}
