package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// driverName is go-sqlite3 with go_lower registered on every connection.
// SQLite's own lower() folds ASCII only, while the in-memory store folds
// with strings.ToLower.
const driverName = "sqlite3_market"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("go_lower", strings.ToLower, true)
		},
	})
}

const contentColumns = "id, owner_id, title, description, llm_model, llm_settings, price, system_prompt, metadata"

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writes and keeps ":memory:" databases
	// from splitting across pooled connections.
	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.runMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) runMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, "migrations")
}

// User methods
func (s *SQLiteStore) AddUser(ctx context.Context, user *User) (*User, error) {
	stored := cloneUser(user)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, username, profile_picture, description) VALUES (?, ?, ?, ?)",
		stored.ID, stored.Username, stored.ProfilePicture, stored.Description)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("failed to insert user %s: %w", stored.ID, ErrDuplicateID)
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return stored, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	var picture, description sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, profile_picture, description FROM users WHERE id = ?", id).
		Scan(&user.ID, &user.Username, &picture, &description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if picture.Valid {
		user.ProfilePicture = &picture.String
	}
	if description.Valid {
		user.Description = &description.String
	}
	return &user, nil
}

// Content methods
func (s *SQLiteStore) AddContent(ctx context.Context, content *Content) (*Content, error) {
	id := content.ID
	if id == "" {
		id = uuid.NewString()
	}

	settingsJSON, err := encodeSettings(content.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}
	metadataJSON, err := encodeMetadata(content.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	stmt, err := s.db.PrepareContext(ctx, "INSERT INTO content ("+contentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare content insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, id, content.OwnerID, content.Title, content.Description,
		content.ModelName, settingsJSON, content.Price, content.Prompt, metadataJSON)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("failed to insert content %s: %w", id, ErrDuplicateID)
		}
		return nil, fmt.Errorf("failed to execute content insert: %w", err)
	}
	return s.GetContent(ctx, id)
}

func (s *SQLiteStore) GetContent(ctx context.Context, id string) (*Content, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+contentColumns+" FROM content WHERE id = ?", id)
	content, err := scanContent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get content: %w", err)
	}
	return content, nil
}

func (s *SQLiteStore) GetContentByOwner(ctx context.Context, ownerID string) ([]Content, error) {
	return s.queryContent(ctx, "SELECT "+contentColumns+" FROM content WHERE owner_id = ? ORDER BY rowid", ownerID)
}

func (s *SQLiteStore) SearchContent(ctx context.Context, query string) ([]Content, error) {
	// instr keeps this a plain substring match; LIKE would treat % and _ as wildcards.
	q := strings.ToLower(query)
	return s.queryContent(ctx,
		"SELECT "+contentColumns+" FROM content WHERE instr(go_lower(title), ?) > 0 OR instr(go_lower(description), ?) > 0 ORDER BY rowid",
		q, q)
}

func (s *SQLiteStore) GetNItems(ctx context.Context, n int) ([]Content, error) {
	if n <= 0 {
		return []Content{}, nil
	}
	return s.queryContent(ctx, "SELECT "+contentColumns+" FROM content ORDER BY rowid LIMIT ?", n)
}

func (s *SQLiteStore) UpdateContentMetadata(ctx context.Context, id string, metadata map[string]any) error {
	metadataJSON, err := encodeMetadata(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx, "UPDATE content SET metadata = ? WHERE id = ?", metadataJSON, id)
	if err != nil {
		return fmt.Errorf("failed to execute metadata update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("content %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) queryContent(ctx context.Context, query string, args ...any) ([]Content, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query content: %w", err)
	}
	defer rows.Close()

	results := []Content{}
	for rows.Next() {
		content, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content row: %w", err)
		}
		results = append(results, *content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return results, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(row rowScanner) (*Content, error) {
	var content Content
	var settingsJSON, metadataJSON string
	var prompt sql.NullString
	err := row.Scan(&content.ID, &content.OwnerID, &content.Title, &content.Description,
		&content.ModelName, &settingsJSON, &content.Price, &prompt, &metadataJSON)
	if err != nil {
		return nil, err
	}
	if prompt.Valid {
		content.Prompt = &prompt.String
	}
	if content.Settings, err = decodeSettings(settingsJSON); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings for content %s: %w", content.ID, err)
	}
	if content.Metadata, err = decodeMetadata(metadataJSON); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata for content %s: %w", content.ID, err)
	}
	return &content, nil
}

// Purchase methods
func (s *SQLiteStore) AddPurchase(ctx context.Context, purchase *Purchase) (*Purchase, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO purchases (user_id, content_id) VALUES (?, ?)", purchase.UserID, purchase.ContentID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert purchase: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read purchase id: %w", err)
	}
	return &Purchase{ID: id, UserID: purchase.UserID, ContentID: purchase.ContentID}, nil
}

func (s *SQLiteStore) GetPurchasesByUser(ctx context.Context, userID string) ([]Purchase, error) {
	return s.queryPurchases(ctx, "SELECT id, user_id, content_id FROM purchases WHERE user_id = ? ORDER BY id", userID)
}

func (s *SQLiteStore) GetPurchasesByContent(ctx context.Context, contentID string) ([]Purchase, error) {
	return s.queryPurchases(ctx, "SELECT id, user_id, content_id FROM purchases WHERE content_id = ? ORDER BY id", contentID)
}

func (s *SQLiteStore) queryPurchases(ctx context.Context, query string, arg string) ([]Purchase, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	purchases := []Purchase{}
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.ID, &p.UserID, &p.ContentID); err != nil {
			return nil, fmt.Errorf("failed to scan purchase row: %w", err)
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return purchases, nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
