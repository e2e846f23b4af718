package repository

import (
	"strconv"
	"strings"
)

// dialect captures the SQL differences between the supported backends.
type dialect struct {
	name string

	// schema is executed statement by statement; the MySQL driver rejects
	// multi-statement Exec without multiStatements=true.
	schema []string

	// insertUser inserts a user row and silently skips an existing id.
	insertUser string

	// numbered placeholders ($1, $2) instead of ?
	numbered bool

	// returning means LastInsertId is unsupported and INSERT ... RETURNING id is used.
	returning bool
}

// rebind rewrites ? placeholders for dialects that use numbered parameters.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tracked_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			link TEXT NOT NULL,
			current_price NUMERIC NOT NULL CHECK (current_price >= 0),
			target_price NUMERIC NOT NULL CHECK (target_price >= 0),
			currency TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			last_checked_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tracked_items_user ON tracked_items(user_id)`,
	},
	insertUser: `INSERT INTO users (id, created_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
}

var postgresDialect = dialect{
	name: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS tracked_items (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			link TEXT NOT NULL,
			current_price NUMERIC(18,4) NOT NULL CHECK (current_price >= 0),
			target_price NUMERIC(18,4) NOT NULL CHECK (target_price >= 0),
			currency VARCHAR(16) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			last_checked_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tracked_items_user ON tracked_items(user_id)`,
	},
	insertUser: `INSERT INTO users (id, created_at) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`,
	numbered:   true,
	returning:  true,
}

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			created_at DATETIME(6) NOT NULL
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS tracked_items (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			link TEXT NOT NULL,
			current_price DECIMAL(18,4) NOT NULL,
			target_price DECIMAL(18,4) NOT NULL,
			currency VARCHAR(16) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			last_checked_at DATETIME(6) NOT NULL,
			INDEX idx_tracked_items_user (user_id),
			CONSTRAINT fk_tracked_items_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		) ENGINE=InnoDB`,
	},
	insertUser: `INSERT IGNORE INTO users (id, created_at) VALUES (?, ?)`,
}
