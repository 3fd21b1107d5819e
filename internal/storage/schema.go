package storage

const schema = `
-- Cards embed their spaced-repetition scheduling state. Only the scheduling
-- algorithm writes the scheduling columns.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    front TEXT NOT NULL,
    back TEXT NOT NULL,
    context TEXT NOT NULL DEFAULT '',
    fingerprint TEXT NOT NULL,
    skill_node_id TEXT,
    state INTEGER NOT NULL DEFAULT 0, -- 0: New, 1: Learning, 2: Review, 3: Relearning
    due DATETIME NOT NULL,
    stability REAL NOT NULL DEFAULT 0,
    difficulty REAL NOT NULL DEFAULT 0,
    reps INTEGER NOT NULL DEFAULT 0,
    lapses INTEGER NOT NULL DEFAULT 0,
    elapsed_days REAL NOT NULL DEFAULT 0,
    scheduled_days REAL NOT NULL DEFAULT 0,
    last_review DATETIME,
    created_at DATETIME NOT NULL,

    FOREIGN KEY(skill_node_id) REFERENCES skill_nodes(id) ON DELETE SET NULL
);
CREATE INDEX IF NOT EXISTS idx_cards_user_due ON cards(user_id, due);
CREATE UNIQUE INDEX IF NOT EXISTS idx_cards_user_fingerprint ON cards(user_id, fingerprint);

-- Append-only record of every rating event.
CREATE TABLE IF NOT EXISTS review_logs (
    id TEXT PRIMARY KEY,
    flashcard_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    rating INTEGER NOT NULL,
    state INTEGER NOT NULL,
    due DATETIME NOT NULL,
    stability REAL NOT NULL,
    difficulty REAL NOT NULL,
    elapsed_days REAL NOT NULL,
    last_elapsed_days REAL NOT NULL,
    scheduled_days REAL NOT NULL,
    reviewed_at DATETIME NOT NULL,

    FOREIGN KEY(flashcard_id) REFERENCES cards(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_review_logs_card ON review_logs(flashcard_id, reviewed_at);

CREATE TABLE IF NOT EXISTS decks (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    new_cards_per_day INTEGER,
    cards_per_session INTEGER,
    archived INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL
);

-- Membership is unique per (deck, card); the primary key is what makes
-- concurrent overlapping adds idempotent.
CREATE TABLE IF NOT EXISTS deck_cards (
    deck_id TEXT NOT NULL,
    card_id TEXT NOT NULL,
    added_at DATETIME NOT NULL,

    PRIMARY KEY (deck_id, card_id),
    FOREIGN KEY(deck_id) REFERENCES decks(id) ON DELETE CASCADE,
    FOREIGN KEY(card_id) REFERENCES cards(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS skill_trees (
    id TEXT PRIMARY KEY,
    goal_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_skill_trees_goal ON skill_trees(goal_id, is_active);

CREATE TABLE IF NOT EXISTS skill_nodes (
    id TEXT PRIMARY KEY,
    tree_id TEXT NOT NULL,
    parent_id TEXT,
    depth INTEGER NOT NULL,
    path TEXT NOT NULL,
    sort_order INTEGER NOT NULL DEFAULT 0,
    is_enabled INTEGER NOT NULL DEFAULT 1,
    mastery_percentage REAL NOT NULL DEFAULT 0,
    card_count INTEGER NOT NULL DEFAULT 0,

    FOREIGN KEY(tree_id) REFERENCES skill_trees(id) ON DELETE CASCADE,
    FOREIGN KEY(parent_id) REFERENCES skill_nodes(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_skill_nodes_tree_depth ON skill_nodes(tree_id, depth);

CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    goal_id TEXT NOT NULL DEFAULT '',
    deck_id TEXT NOT NULL DEFAULT '',
    mode TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'active',
    card_ids TEXT NOT NULL,   -- JSON array, immutable after insert
    current_index INTEGER NOT NULL DEFAULT 0,
    responses TEXT NOT NULL DEFAULT '[]', -- JSON array of {cardId, rating, timeMs}
    started_at DATETIME NOT NULL,
    last_activity_at DATETIME NOT NULL,
    expires_at DATETIME NOT NULL,
    completed_at DATETIME,
    time_remaining_ms INTEGER,
    score INTEGER,
    is_guided INTEGER NOT NULL DEFAULT 0,
    current_node_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_active ON sessions(user_id, goal_id, status);
CREATE INDEX IF NOT EXISTS idx_sessions_expiry ON sessions(status, expires_at);
`
