package staff

import "context"

type Repository interface {
	Create(ctx context.Context, idm, name, number, note string) (*Staff, error)
	FindByID(ctx context.Context, id int) (*Staff, error)
	FindByIDm(ctx context.Context, idm string) (*Staff, error)
	List(ctx context.Context, includeDeleted bool) ([]Staff, error)
	Update(ctx context.Context, id int, name, number, note string) (*Staff, error)
	SoftDelete(ctx context.Context, id int) error
	Restore(ctx context.Context, id int) error
}
