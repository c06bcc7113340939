package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// maxRecentLimit caps recent-problem listings regardless of the caller's
// requested limit.
const maxRecentLimit = 10

// Store wraps a SQLite database with methods for problem nodes and attempts.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "unstuck.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't
// been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// --- Problem nodes ---

// CreateNode inserts a new problem node. The caller assigns the ID. When
// ParentID is set it must reference an existing node; otherwise ErrNotFound
// is returned. Content is validated at this boundary.
func (s *Store) CreateNode(n ProblemNode) error {
	if err := n.Content.Validate(); err != nil {
		return err
	}
	if !n.GeneratedBy.Valid() {
		return fmt.Errorf("invalid generated_by %q", n.GeneratedBy)
	}
	if n.Status == "" {
		n.Status = StatusActive
	}
	if !n.Status.Valid() {
		return fmt.Errorf("invalid status %q", n.Status)
	}

	if n.ParentID != "" {
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM problem_nodes WHERE id = ?", n.ParentID).Scan(&exists); err != nil {
			return fmt.Errorf("checking parent node: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("parent node %s: %w", n.ParentID, ErrNotFound)
		}
	}

	parent := sql.NullString{String: n.ParentID, Valid: n.ParentID != ""}
	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO problem_nodes (id, parent_id, content_text, content_image_url, content_category, content_title,
			hidden_solution, hidden_answer, target_insight, generated_by, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, parent, n.Content.Text, n.Content.ImageURL, n.Content.Category, n.Content.Title,
		n.HiddenSolution, n.HiddenAnswer, n.TargetInsight, string(n.GeneratedBy), string(n.Status),
		createdAt.UTC().Format(time.RFC3339),
	)
	return err
}

const nodeColumns = `id, parent_id, content_text, content_image_url, content_category, content_title,
	hidden_solution, hidden_answer, target_insight, generated_by, status, created_at`

func scanNode(row interface{ Scan(...any) error }) (ProblemNode, error) {
	var n ProblemNode
	var parent sql.NullString
	var createdAt string
	err := row.Scan(&n.ID, &parent, &n.Content.Text, &n.Content.ImageURL, &n.Content.Category, &n.Content.Title,
		&n.HiddenSolution, &n.HiddenAnswer, &n.TargetInsight, (*string)(&n.GeneratedBy), (*string)(&n.Status), &createdAt)
	if err == sql.ErrNoRows {
		return ProblemNode{}, ErrNotFound
	}
	if err != nil {
		return ProblemNode{}, err
	}
	n.ParentID = parent.String
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return ProblemNode{}, fmt.Errorf("parsing created_at: %w", err)
	}
	n.CreatedAt = t
	return n, nil
}

// GetNode fetches a single node by id.
func (s *Store) GetNode(id string) (ProblemNode, error) {
	row := s.db.QueryRow("SELECT "+nodeColumns+" FROM problem_nodes WHERE id = ?", id)
	return scanNode(row)
}

// GetNodeWithParent fetches a node and, when it has one, its parent.
// The parent is nil for root nodes.
func (s *Store) GetNodeWithParent(id string) (ProblemNode, *ProblemNode, error) {
	n, err := s.GetNode(id)
	if err != nil {
		return ProblemNode{}, nil, err
	}
	if n.ParentID == "" {
		return n, nil, nil
	}
	p, err := s.GetNode(n.ParentID)
	if err != nil {
		return ProblemNode{}, nil, fmt.Errorf("loading parent %s: %w", n.ParentID, err)
	}
	return n, &p, nil
}

// GetHiddenFields fetches only the confidential solution and answer of a node.
func (s *Store) GetHiddenFields(id string) (HiddenFields, error) {
	var h HiddenFields
	err := s.db.QueryRow("SELECT hidden_solution, hidden_answer FROM problem_nodes WHERE id = ?", id).
		Scan(&h.Solution, &h.Answer)
	if err == sql.ErrNoRows {
		return HiddenFields{}, ErrNotFound
	}
	return h, err
}

// UpdateStatus transitions a node's lifecycle status. Setting the current
// status again is an idempotent no-op. Any transition outside the allowed
// table is rejected with a *TransitionError.
func (s *Store) UpdateStatus(id string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning status transaction: %w", err)
	}
	defer tx.Rollback()

	var current Status
	err = tx.QueryRow("SELECT status FROM problem_nodes WHERE id = ?", id).Scan((*string)(&current))
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if current == status {
		return nil
	}

	allowed := false
	for _, next := range allowedTransitions[current] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return &TransitionError{From: current, To: status}
	}

	if _, err := tx.Exec("UPDATE problem_nodes SET status = ? WHERE id = ?", string(status), id); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Attempts ---

// CreateAttempt appends an attempt record against an existing node.
// Returns ErrNotFound when the node does not exist.
func (s *Store) CreateAttempt(a Attempt) error {
	var exists int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM problem_nodes WHERE id = ?", a.ProblemNodeID).Scan(&exists); err != nil {
		return fmt.Errorf("checking node: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("node %s: %w", a.ProblemNodeID, ErrNotFound)
	}

	images := a.UserWork
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("marshalling user work: %w", err)
	}

	ts := a.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err = s.db.Exec(`
		INSERT INTO attempts (id, problem_node_id, user_work_images, user_text, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.ProblemNodeID, string(imagesJSON), a.UserText, ts.UTC().Format(time.RFC3339),
	)
	return err
}

// ListAttempts returns all attempts against a node, newest first.
func (s *Store) ListAttempts(problemNodeID string) ([]Attempt, error) {
	rows, err := s.db.Query(`
		SELECT id, problem_node_id, user_work_images, user_text, timestamp
		FROM attempts WHERE problem_node_id = ? ORDER BY timestamp DESC`, problemNodeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Attempt
	for rows.Next() {
		var a Attempt
		var images, ts string
		if err := rows.Scan(&a.ID, &a.ProblemNodeID, &images, &a.UserText, &ts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(images), &a.UserWork); err != nil {
			return nil, fmt.Errorf("parsing user work for attempt %s: %w", a.ID, err)
		}
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		a.Timestamp = t
		results = append(results, a)
	}
	return results, rows.Err()
}

// --- Recent problems ---

// ListRecent returns the most recently created nodes with the given
// provenance, joined with the time of each node's latest attempt. The limit
// is clamped to maxRecentLimit regardless of the requested value.
func (s *Store) ListRecent(generatedBy GeneratedBy, limit int) ([]RecentProblem, error) {
	if limit <= 0 || limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := s.db.Query(`
		SELECT n.id, n.content_title, n.content_category, n.status, n.created_at,
			(SELECT MAX(a.timestamp) FROM attempts a WHERE a.problem_node_id = n.id)
		FROM problem_nodes n
		WHERE n.generated_by = ?
		ORDER BY n.created_at DESC LIMIT ?`, string(generatedBy), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []RecentProblem
	for rows.Next() {
		var p RecentProblem
		var createdAt string
		var lastAttempt sql.NullString
		if err := rows.Scan(&p.ID, &p.Title, &p.Category, (*string)(&p.Status), &createdAt, &lastAttempt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		p.CreatedAt = t
		p.LastActiveAt = t
		if lastAttempt.Valid {
			at, err := time.Parse(time.RFC3339, lastAttempt.String)
			if err != nil {
				return nil, fmt.Errorf("parsing attempt timestamp: %w", err)
			}
			if at.After(p.LastActiveAt) {
				p.LastActiveAt = at
			}
		}
		results = append(results, p)
	}
	return results, rows.Err()
}
