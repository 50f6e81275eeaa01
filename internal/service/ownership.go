package service

import (
	"context"
	"fmt"
	"strconv"

	"agora/internal/models"
	"agora/internal/repository"
)

// ResourceKind names the resource an ownership check loads. It is chosen
// when a route is registered, never parsed from the URL.
type ResourceKind int

const (
	ResourceForum ResourceKind = iota + 1
	ResourcePost
	ResourceReply
	ResourceUser
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceForum:
		return "Forum"
	case ResourcePost:
		return "Post"
	case ResourceReply:
		return "Reply"
	case ResourceUser:
		return "User"
	}
	return fmt.Sprintf("ResourceKind(%d)", int(k))
}

// Ownership lists the owner references a resource may carry.
type Ownership struct {
	Author  *uint
	Creator *uint
	User    *uint
}

// Owner returns the first set reference in author, creator, user order.
func (o Ownership) Owner() (uint, bool) {
	for _, ref := range []*uint{o.Author, o.Creator, o.User} {
		if ref != nil {
			return *ref, true
		}
	}
	return 0, false
}

// ResourceRef is a resource's route id, plus the id of the resource it is
// nested under when the route has one (a reply's post).
type ResourceRef struct {
	ID     string
	Parent string
}

// OwnerResolver loads a resource by its route ids and reports who owns it.
// A missing resource, or a missing parent, is a NOT_FOUND error.
type OwnerResolver interface {
	ResolveOwner(ctx context.Context, ref ResourceRef) (Ownership, error)
}

// OwnerResolverFunc adapts a function to OwnerResolver.
type OwnerResolverFunc func(ctx context.Context, ref ResourceRef) (Ownership, error)

func (f OwnerResolverFunc) ResolveOwner(ctx context.Context, ref ResourceRef) (Ownership, error) {
	return f(ctx, ref)
}

// OwnerRegistry maps each ResourceKind to its resolver.
type OwnerRegistry struct {
	resolvers map[ResourceKind]OwnerResolver
}

// NewOwnerRegistry registers the resolvers for forums, posts, replies and
// users over repos.
func NewOwnerRegistry(repos repository.Repositories) *OwnerRegistry {
	r := &OwnerRegistry{resolvers: make(map[ResourceKind]OwnerResolver)}

	r.Register(ResourceForum, OwnerResolverFunc(func(ctx context.Context, ref ResourceRef) (Ownership, error) {
		id, err := ParseID(ResourceForum, ref.ID)
		if err != nil {
			return Ownership{}, err
		}
		forum, err := repos.Forums.GetByID(ctx, id)
		if err != nil {
			return Ownership{}, err
		}
		return Ownership{Creator: &forum.CreatorID}, nil
	}))

	r.Register(ResourcePost, OwnerResolverFunc(func(ctx context.Context, ref ResourceRef) (Ownership, error) {
		id, err := ParseID(ResourcePost, ref.ID)
		if err != nil {
			return Ownership{}, err
		}
		post, err := repos.Posts.GetByID(ctx, id)
		if err != nil {
			return Ownership{}, err
		}
		return Ownership{Author: &post.AuthorID}, nil
	}))

	r.Register(ResourceReply, OwnerResolverFunc(func(ctx context.Context, ref ResourceRef) (Ownership, error) {
		if ref.Parent == "" {
			reply, err := repos.Replies.GetByID(ctx, ref.ID)
			if err != nil {
				return Ownership{}, err
			}
			return Ownership{Author: &reply.AuthorID}, nil
		}

		postID, err := ParseID(ResourcePost, ref.Parent)
		if err != nil {
			return Ownership{}, err
		}
		if _, err := repos.Posts.GetByID(ctx, postID); err != nil {
			return Ownership{}, err
		}
		reply, err := repos.Replies.Get(ctx, postID, ref.ID)
		if err != nil {
			return Ownership{}, err
		}
		return Ownership{Author: &reply.AuthorID}, nil
	}))

	r.Register(ResourceUser, OwnerResolverFunc(func(ctx context.Context, ref ResourceRef) (Ownership, error) {
		id, err := ParseID(ResourceUser, ref.ID)
		if err != nil {
			return Ownership{}, err
		}
		user, err := repos.Users.GetByID(ctx, id)
		if err != nil {
			return Ownership{}, err
		}
		return Ownership{User: &user.ID}, nil
	}))

	return r
}

// Register installs or replaces the resolver for kind.
func (r *OwnerRegistry) Register(kind ResourceKind, resolver OwnerResolver) {
	r.resolvers[kind] = resolver
}

// Authorize loads the resource and fails with FORBIDDEN unless caller owns
// it or is an admin. It performs no writes.
func (r *OwnerRegistry) Authorize(ctx context.Context, kind ResourceKind, ref ResourceRef, caller *models.User) error {
	resolver, ok := r.resolvers[kind]
	if !ok {
		return models.NewInternalError(fmt.Errorf("no owner resolver for %s", kind))
	}
	ownership, err := resolver.ResolveOwner(ctx, ref)
	if err != nil {
		return err
	}
	if caller == nil {
		return models.NewUnauthorizedError("Not authorized to access this route")
	}
	if caller.IsAdmin() {
		return nil
	}
	if owner, ok := ownership.Owner(); ok && owner == caller.ID {
		return nil
	}
	return models.NewForbiddenError("Not authorized to modify this resource")
}

// ParseID reads a positive numeric route id. Malformed ids cannot name an
// existing resource, so they are reported as NOT_FOUND.
func ParseID(kind ResourceKind, raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, models.NewNotFoundError(kind.String(), raw)
	}
	return uint(id), nil
}
