package user

import (
	"time"

	commentrepo "github.com/ovaphlow/pitchfork/service-task-tracker/internal/comment/repo"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/projection"
	taskrepo "github.com/ovaphlow/pitchfork/service-task-tracker/internal/task/repo"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/user/entity"
)

// View is the response projection of a user.
type View struct {
	ID         int64                                `json:"id"`
	FirstName  string                               `json:"firstName"`
	LastName   string                               `json:"lastName"`
	Email      string                               `json:"email"`
	Role       entity.Role                          `json:"role"`
	CreatedAt  time.Time                            `json:"createdAt"`
	UpdatedAt  *time.Time                           `json:"updatedAt"`
	AsAuthor   projection.Relation[taskrepo.Ref]    `json:"asAuthor"`
	AsExecutor projection.Relation[taskrepo.Ref]    `json:"asExecutor"`
	Comments   projection.Relation[commentrepo.Ref] `json:"comments"`
}

func newView(u *entity.User) View {
	return View{
		ID:         u.ID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Email:      u.Email,
		Role:       u.Role,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
		AsAuthor:   projection.NotRequested[taskrepo.Ref](),
		AsExecutor: projection.NotRequested[taskrepo.Ref](),
		Comments:   projection.NotRequested[commentrepo.Ref](),
	}
}
