package store

// Schema follows spec's persisted-state layout exactly: quests,
// deactivated_quests, quest_updates, quest_instances, abandoned_quests,
// completed_instances, events, quest_reward_hooks, quest_reward_items.
// "Active" and "completed"/"abandoned" are membership in a side table
// rather than a status column, matching the data model's "a quest is
// active iff present in quests and absent from deactivated_quests".

const migrationQuests = `
CREATE TABLE IF NOT EXISTS quests (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	image_url       TEXT NOT NULL DEFAULT '',
	creator_address TEXT NOT NULL,
	definition      BLOB NOT NULL,
	created_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quests_creator ON quests(creator_address);
`

const migrationDeactivatedQuests = `
CREATE TABLE IF NOT EXISTS deactivated_quests (
	quest_id TEXT PRIMARY KEY REFERENCES quests(id)
);
`

const migrationQuestUpdates = `
CREATE TABLE IF NOT EXISTS quest_updates (
	id                 TEXT PRIMARY KEY,
	quest_id           TEXT NOT NULL REFERENCES quests(id),
	previous_quest_id  TEXT NOT NULL REFERENCES quests(id)
);

CREATE INDEX IF NOT EXISTS idx_quest_updates_quest ON quest_updates(quest_id);
CREATE INDEX IF NOT EXISTS idx_quest_updates_previous ON quest_updates(previous_quest_id);
`

const migrationQuestInstances = `
CREATE TABLE IF NOT EXISTS quest_instances (
	id              TEXT PRIMARY KEY,
	quest_id        TEXT NOT NULL REFERENCES quests(id),
	user_address    TEXT NOT NULL,
	start_timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quest_instances_quest ON quest_instances(quest_id);
CREATE INDEX IF NOT EXISTS idx_quest_instances_user ON quest_instances(user_address);
`

const migrationAbandonedQuests = `
CREATE TABLE IF NOT EXISTS abandoned_quests (
	instance_id TEXT PRIMARY KEY REFERENCES quest_instances(id)
);
`

const migrationCompletedInstances = `
CREATE TABLE IF NOT EXISTS completed_instances (
	instance_id TEXT PRIMARY KEY REFERENCES quest_instances(id)
);
`

const migrationEvents = `
CREATE TABLE IF NOT EXISTS events (
	id                TEXT PRIMARY KEY,
	user_address      TEXT NOT NULL,
	event             BLOB NOT NULL,
	quest_instance_id TEXT NOT NULL REFERENCES quest_instances(id),
	timestamp         INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_instance ON events(quest_instance_id, timestamp);
`

const migrationQuestRewardHooks = `
CREATE TABLE IF NOT EXISTS quest_reward_hooks (
	quest_id     TEXT PRIMARY KEY REFERENCES quests(id),
	webhook_url  TEXT NOT NULL,
	request_body TEXT NOT NULL
);
`

const migrationQuestRewardItems = `
CREATE TABLE IF NOT EXISTS quest_reward_items (
	quest_id TEXT NOT NULL REFERENCES quests(id),
	ordinal  INTEGER NOT NULL,
	item     TEXT NOT NULL,
	PRIMARY KEY (quest_id, ordinal)
);
`
