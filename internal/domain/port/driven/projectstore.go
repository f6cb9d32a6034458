package driven

import (
	"context"
	"errors"

	"github.com/codexnumeris/codexnumeris/internal/domain/model"
)

// ErrProjectNotFound indicates the requested project does not exist.
var ErrProjectNotFound = errors.New("project not found")

// ProjectStore defines the driven port for project persistence.
// InsertBatch writes all projects in a single transaction and never overwrites
// an existing row; it returns the number of rows actually inserted.
type ProjectStore interface {
	Exists(ctx context.Context, id int64) (bool, error)
	InsertBatch(ctx context.Context, projects []model.Project) (int, error)
	GetByID(ctx context.Context, id int64) (*model.Project, error)
	ListByStarsDesc(ctx context.Context) ([]model.Project, error)
	Count(ctx context.Context) (int, error)
}
