package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// exportSchema drops and recreates every table. The mirror is a disposable
// reporting artifact: schema drift is resolved by rebuilding from scratch.
const exportSchema = `
DROP TABLE IF EXISTS application_responses;
DROP TABLE IF EXISTS application_history;
DROP TABLE IF EXISTS applications;
DROP TABLE IF EXISTS xp;
DROP TABLE IF EXISTS cup_podium;
DROP TABLE IF EXISTS cups;
DROP TABLE IF EXISTS admins;
DROP TABLE IF EXISTS metadata;

CREATE TABLE applications (
    chat_id TEXT NOT NULL,
    user_id INTEGER NOT NULL,
    full_name TEXT,
    username TEXT,
    answer TEXT,
    status TEXT NOT NULL,
    note TEXT,
    language_code TEXT,
    created_at TEXT,
    updated_at TEXT,
    PRIMARY KEY (chat_id, user_id)
);

CREATE TABLE application_responses (
    chat_id TEXT NOT NULL,
    user_id INTEGER NOT NULL,
    position INTEGER NOT NULL,
    question_id TEXT,
    question TEXT,
    answer TEXT,
    PRIMARY KEY (chat_id, user_id, position),
    FOREIGN KEY (chat_id, user_id) REFERENCES applications(chat_id, user_id) ON DELETE CASCADE
);

CREATE TABLE application_history (
    chat_id TEXT NOT NULL,
    user_id INTEGER NOT NULL,
    position INTEGER NOT NULL,
    status TEXT NOT NULL,
    at TEXT,
    actor INTEGER,
    note TEXT,
    PRIMARY KEY (chat_id, user_id, position),
    FOREIGN KEY (chat_id, user_id) REFERENCES applications(chat_id, user_id) ON DELETE CASCADE
);

CREATE TABLE xp (
    chat_id TEXT NOT NULL,
    user_id INTEGER NOT NULL,
    score INTEGER NOT NULL,
    username TEXT,
    full_name TEXT,
    updated_at TEXT,
    PRIMARY KEY (chat_id, user_id)
);

CREATE TABLE cups (
    chat_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    title TEXT NOT NULL,
    description TEXT,
    created_at TEXT,
    PRIMARY KEY (chat_id, position)
);

CREATE TABLE cup_podium (
    chat_id TEXT NOT NULL,
    cup_position INTEGER NOT NULL,
    rank INTEGER NOT NULL,
    entry TEXT NOT NULL,
    PRIMARY KEY (chat_id, cup_position, rank),
    FOREIGN KEY (chat_id, cup_position) REFERENCES cups(chat_id, position) ON DELETE CASCADE
);

CREATE TABLE admins (
    chat_id TEXT NOT NULL,
    user_id INTEGER NOT NULL,
    username TEXT,
    full_name TEXT,
    is_owner INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (chat_id, user_id)
);

CREATE TABLE metadata (
    key TEXT PRIMARY KEY,
    value TEXT
);
`

// ExportSQLite rebuilds the relational mirror at path from the current
// in-memory state. The snapshot is taken under the guard; the database work
// happens outside it.
func (s *Service) ExportSQLite(ctx context.Context, path string) error {
	s.mu.Lock()
	snapshot := s.state.clone()
	s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON")
	if err != nil {
		return fmt.Errorf("open sqlite export: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite export: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin export tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, exportSchema); err != nil {
		return fmt.Errorf("create export schema: %w", err)
	}
	if err := exportState(ctx, tx, snapshot); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit export: %w", err)
	}

	s.log.Info().Str("path", path).Msg("sqlite_export_written")
	return nil
}

func exportState(ctx context.Context, tx *sql.Tx, st *state) error {
	for chat, apps := range st.Applications {
		for user, app := range apps {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO applications(
					chat_id, user_id, full_name, username, answer,
					status, note, language_code, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				chat, user, app.FullName, app.Username, app.Answer,
				string(app.Status), app.Note, app.Language,
				formatExportTime(app.CreatedAt), formatExportTime(app.UpdatedAt))
			if err != nil {
				return fmt.Errorf("export application %s/%d: %w", chat, user, err)
			}
			for pos, resp := range app.Responses {
				_, err := tx.ExecContext(ctx, `
					INSERT INTO application_responses(
						chat_id, user_id, position, question_id, question, answer
					) VALUES (?, ?, ?, ?, ?, ?)`,
					chat, user, pos, resp.QuestionID, resp.Question, resp.Answer)
				if err != nil {
					return fmt.Errorf("export responses %s/%d: %w", chat, user, err)
				}
			}
			for pos, entry := range app.History {
				_, err := tx.ExecContext(ctx, `
					INSERT INTO application_history(
						chat_id, user_id, position, status, at, actor, note
					) VALUES (?, ?, ?, ?, ?, ?, ?)`,
					chat, user, pos, string(entry.Status),
					formatExportTime(entry.At), entry.Actor, entry.Note)
				if err != nil {
					return fmt.Errorf("export history %s/%d: %w", chat, user, err)
				}
			}
		}
	}

	for chat, records := range st.XP {
		for user, rec := range records {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO xp(chat_id, user_id, score, username, full_name, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				chat, user, rec.Score, rec.Username, rec.FullName, formatExportTime(rec.UpdatedAt))
			if err != nil {
				return fmt.Errorf("export xp %s/%d: %w", chat, user, err)
			}
		}
	}

	for chat, cups := range st.Cups {
		for pos, cup := range cups {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO cups(chat_id, position, title, description, created_at)
				VALUES (?, ?, ?, ?, ?)`,
				chat, pos, cup.Title, cup.Description, formatExportTime(cup.CreatedAt))
			if err != nil {
				return fmt.Errorf("export cup %s/%d: %w", chat, pos, err)
			}
			for rank, entry := range cup.Podium {
				_, err := tx.ExecContext(ctx, `
					INSERT INTO cup_podium(chat_id, cup_position, rank, entry)
					VALUES (?, ?, ?, ?)`,
					chat, pos, rank+1, entry)
				if err != nil {
					return fmt.Errorf("export podium %s/%d: %w", chat, pos, err)
				}
			}
		}
	}

	for chat, admins := range st.Admins {
		for user, adm := range admins {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO admins(chat_id, user_id, username, full_name, is_owner)
				VALUES (?, ?, ?, ?, ?)`,
				chat, user, adm.Username, adm.FullName, boolToInt(adm.Owner))
			if err != nil {
				return fmt.Errorf("export admin %s/%d: %w", chat, user, err)
			}
		}
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO metadata(key, value) VALUES ('exported_at', ?)`,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("export metadata: %w", err)
	}
	return nil
}

func formatExportTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
