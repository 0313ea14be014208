// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/aide/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		ref_id INTEGER,
		content TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS doc_term_freq (
		doc_id INTEGER NOT NULL,
		term TEXT NOT NULL,
		tf INTEGER NOT NULL,
		PRIMARY KEY (doc_id, term),
		FOREIGN KEY (doc_id) REFERENCES documents(id)
	);

	CREATE INDEX IF NOT EXISTS idx_doc_term_freq_term ON doc_term_freq(term);

	CREATE TABLE IF NOT EXISTS term_doc_freq (
		term TEXT PRIMARY KEY,
		df INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);

	CREATE TABLE IF NOT EXISTS web_queries (
		qhash TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		payload TEXT NOT NULL,
		fetched_at TIMESTAMP NOT NULL,
		ttl_hours INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS web_pages (
		url TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		fetched_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS web_citations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		user_message_id INTEGER NOT NULL,
		url TEXT NOT NULL,
		title TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id INTEGER NOT NULL,
		score INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateConversation inserts a new conversation with a generated id.
func (s *SQLiteStorage) CreateConversation(ctx context.Context) (*models.Conversation, error) {
	conv := &models.Conversation{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, created_at) VALUES (?, ?)`,
		conv.ID, conv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// GetConversation returns a conversation by id.
func (s *SQLiteStorage) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM conversations WHERE id = ?`, id,
	).Scan(&conv.ID, &conv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// AppendMessage inserts a message and returns its id.
func (s *SQLiteStorage) AppendMessage(ctx context.Context, conversationID, role, content string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		conversationID, role, content, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecentMessages returns the last limit messages of a conversation in
// chronological order.
func (s *SQLiteStorage) RecentMessages(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY id DESC LIMIT ?`,
		conversationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// UserMessageContents returns the content of every user message in insertion
// order. This is the training corpus.
func (s *SQLiteStorage) UserMessageContents(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT content FROM messages WHERE role = ? ORDER BY id ASC`, models.RoleUser,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateDocument inserts a document and returns it with its assigned id.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, source string, refID *int64, content string) (*models.Document, error) {
	doc := &models.Document{
		Source:    source,
		RefID:     refID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (source, ref_id, content, created_at) VALUES (?, ?, ?, ?)`,
		doc.Source, doc.RefID, doc.Content, doc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.ID, err = res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// DocumentContents returns a docID -> content map for the given ids.
// Missing ids are simply absent from the result.
func (s *SQLiteStorage) DocumentContents(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content FROM documents WHERE id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var content string
		if err := rows.Scan(&id, &content); err != nil {
			return nil, err
		}
		out[id] = content
	}
	return out, rows.Err()
}

// ApplyDocTerms upserts per-term frequencies for a document in one transaction.
// The global document frequency of a term is incremented only when the
// (doc_id, term) row is created, so reindexing the same document never
// inflates df.
func (s *SQLiteStorage) ApplyDocTerms(ctx context.Context, docID int64, counts map[string]int) error {
	if len(counts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insTF, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO doc_term_freq (doc_id, term, tf) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insTF.Close()
	updTF, err := tx.PrepareContext(ctx,
		`UPDATE doc_term_freq SET tf = ? WHERE doc_id = ? AND term = ?`)
	if err != nil {
		return err
	}
	defer updTF.Close()
	incDF, err := tx.PrepareContext(ctx,
		`INSERT INTO term_doc_freq (term, df) VALUES (?, 1)
		 ON CONFLICT(term) DO UPDATE SET df = df + 1`)
	if err != nil {
		return err
	}
	defer incDF.Close()

	for term, tf := range counts {
		res, err := insTF.ExecContext(ctx, docID, term, tf)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// Row existed: refresh tf, leave df alone.
			if _, err := updTF.ExecContext(ctx, tf, docID, term); err != nil {
				return err
			}
			continue
		}
		if _, err := incDF.ExecContext(ctx, term); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DocFreqs returns term -> df for the given terms. Terms with no row are absent.
func (s *SQLiteStorage) DocFreqs(ctx context.Context, terms []string) (map[string]int64, error) {
	out := make(map[string]int64, len(terms))
	if len(terms) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(terms)), ",")
	args := make([]interface{}, len(terms))
	for i, t := range terms {
		args[i] = t
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT term, df FROM term_doc_freq WHERE term IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var term string
		var df int64
		if err := rows.Scan(&term, &df); err != nil {
			return nil, err
		}
		out[term] = df
	}
	return out, rows.Err()
}

// Postings returns all (doc_id, tf) rows for a term.
func (s *SQLiteStorage) Postings(ctx context.Context, term string) ([]Posting, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, tf FROM doc_term_freq WHERE term = ?`, term,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Posting
	for rows.Next() {
		var p Posting
		if err := rows.Scan(&p.DocID, &p.TF); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// GetWebQuery returns the cached web query row for qhash, or nil if absent.
func (s *SQLiteStorage) GetWebQuery(ctx context.Context, qhash string) (*WebQueryRow, error) {
	var row WebQueryRow
	err := s.db.QueryRowContext(ctx,
		`SELECT qhash, query, payload, fetched_at, ttl_hours FROM web_queries WHERE qhash = ?`,
		qhash,
	).Scan(&row.QHash, &row.Query, &row.Payload, &row.FetchedAt, &row.TTLHours)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SetWebQuery upserts a web query cache row.
func (s *SQLiteStorage) SetWebQuery(ctx context.Context, row *WebQueryRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO web_queries (qhash, query, payload, fetched_at, ttl_hours)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(qhash) DO UPDATE SET
		   query = excluded.query,
		   payload = excluded.payload,
		   fetched_at = excluded.fetched_at,
		   ttl_hours = excluded.ttl_hours`,
		row.QHash, row.Query, row.Payload, row.FetchedAt, row.TTLHours,
	)
	return err
}

// GetWebPage returns the cached page row for url, or nil if absent.
func (s *SQLiteStorage) GetWebPage(ctx context.Context, url string) (*WebPageRow, error) {
	var row WebPageRow
	err := s.db.QueryRowContext(ctx,
		`SELECT url, content, fetched_at FROM web_pages WHERE url = ?`, url,
	).Scan(&row.URL, &row.Content, &row.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SetWebPage upserts a web page cache row.
func (s *SQLiteStorage) SetWebPage(ctx context.Context, row *WebPageRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO web_pages (url, content, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET
		   content = excluded.content,
		   fetched_at = excluded.fetched_at`,
		row.URL, row.Content, row.FetchedAt,
	)
	return err
}

// InsertFeedback records a score for a message.
func (s *SQLiteStorage) InsertFeedback(ctx context.Context, messageID int64, score int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (message_id, score, created_at) VALUES (?, ?, ?)`,
		messageID, score, time.Now(),
	)
	return err
}

// InsertCitation records a web source used while answering a user message.
func (s *SQLiteStorage) InsertCitation(ctx context.Context, conversationID string, userMessageID int64, url, title string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO web_citations (conversation_id, user_message_id, url, title, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		conversationID, userMessageID, url, title, time.Now(),
	)
	return err
}

// CountConversations returns the total number of conversations.
func (s *SQLiteStorage) CountConversations(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&count)
	return count, err
}

// CountMessages returns the total number of messages.
func (s *SQLiteStorage) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
