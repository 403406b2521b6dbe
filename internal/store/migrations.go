package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create accounts",
		SQL: `
			CREATE TABLE accounts (
				id            TEXT PRIMARY KEY,
				secure_c_ses  TEXT NOT NULL,
				host_c_oses   TEXT NOT NULL DEFAULT '',
				csesidx       TEXT NOT NULL,
				config_id     TEXT NOT NULL,
				expires_at    TEXT NOT NULL DEFAULT '',
				disabled      INTEGER NOT NULL DEFAULT 0,
				position      INTEGER NOT NULL,
				updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_accounts_position ON accounts (position);
		`,
	},
}
