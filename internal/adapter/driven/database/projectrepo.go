package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/codexnumeris/codexnumeris/internal/domain/model"
	"github.com/codexnumeris/codexnumeris/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProjectStore = (*ProjectRepo)(nil)

const projectColumns = `id, name, description, url, stars, language, organization, created_at, updated_at, topics`

// ProjectRepo is the SQL implementation of the ProjectStore port interface.
type ProjectRepo struct {
	db *DB
}

// NewProjectRepo creates a new ProjectRepo backed by the given DB.
func NewProjectRepo(db *DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

// Exists reports whether a project with the given ID is stored. It runs on
// the writer connection so the collector works through a single connection.
func (r *ProjectRepo) Exists(ctx context.Context, id int64) (bool, error) {
	query := r.db.rebind(`SELECT 1 FROM projects WHERE id = ?`)

	var one int
	err := r.db.Writer.QueryRowContext(ctx, query, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check project %d: %w", id, err)
	}

	return true, nil
}

// InsertBatch inserts projects in a single transaction. Rows whose ID already
// exists are left untouched. Returns the number of rows inserted.
func (r *ProjectRepo) InsertBatch(ctx context.Context, projects []model.Project) (int, error) {
	if len(projects) == 0 {
		return 0, nil
	}

	query := r.db.rebind(`
		INSERT INTO projects (` + projectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`)

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int
	for _, p := range projects {
		topics := p.Topics
		if topics == nil {
			topics = []string{}
		}
		topicsJSON, err := json.Marshal(topics)
		if err != nil {
			return 0, fmt.Errorf("marshal topics for project %d: %w", p.ID, err)
		}

		result, err := stmt.ExecContext(ctx,
			p.ID, p.Name, nullString(p.Description), p.URL, p.Stars,
			nullString(p.Language), nullString(p.Organization),
			r.timeArg(p.CreatedAt), r.timeArg(p.UpdatedAt), string(topicsJSON),
		)
		if err != nil {
			return 0, fmt.Errorf("insert project %d: %w", p.ID, err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("check rows affected: %w", err)
		}
		inserted += int(rows)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit projects: %w", err)
	}

	return inserted, nil
}

// GetByID retrieves a project by its GitHub ID. Returns ErrProjectNotFound if
// it does not exist.
func (r *ProjectRepo) GetByID(ctx context.Context, id int64) (*model.Project, error) {
	query := r.db.rebind(`SELECT ` + projectColumns + ` FROM projects WHERE id = ?`)

	p, err := scanProject(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get project %d: %w", id, driven.ErrProjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project %d: %w", id, err)
	}

	return p, nil
}

// ListByStarsDesc returns all projects, most starred first. Ties are broken by
// ID so the order is stable. Returns an empty, non-nil slice when the table is
// empty.
func (r *ProjectRepo) ListByStarsDesc(ctx context.Context) ([]model.Project, error) {
	const query = `SELECT ` + projectColumns + ` FROM projects ORDER BY stars DESC, id ASC`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	return projects, nil
}

// Count returns the number of stored projects.
func (r *ProjectRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return n, nil
}

// timeArg converts an optional instant into a driver argument. SQLite stores
// RFC 3339 text; PostgreSQL takes the instant as TIMESTAMPTZ.
func (r *ProjectRepo) timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	if r.db.Dialect == DialectPostgres {
		return t.UTC()
	}
	return t.UTC().Format(time.RFC3339)
}
