package identity

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/aminrj/storedesk/pkg/model"
)

const keyPrefix = "identity:"

// Redis resolves identities from the hashes the storefront's account service
// maintains (and that Record refreshes at handshake).
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (r *Redis) Lookup(ctx context.Context, id string) (model.Identity, error) {
	vals, err := r.rdb.HGetAll(ctx, keyPrefix+id).Result()
	if err != nil {
		return model.Identity{}, err
	}
	if len(vals) == 0 {
		return model.Identity{}, model.ErrUnknownIdentity
	}
	ident := model.Identity{
		ID:     id,
		Role:   model.Role(vals["role"]),
		Name:   vals["name"],
		Avatar: vals["avatar"],
	}
	if ident.Role != model.RoleAdmin {
		ident.Role = model.RoleCustomer
	}
	return ident, nil
}

func (r *Redis) Record(ctx context.Context, id model.Identity) error {
	return r.rdb.HSet(ctx, keyPrefix+id.ID,
		"role", string(id.Role),
		"name", id.Name,
		"avatar", id.Avatar,
	).Err()
}
