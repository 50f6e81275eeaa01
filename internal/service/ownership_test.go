package service

import (
	"context"
	"strconv"
	"testing"

	"agora/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnership_Owner(t *testing.T) {
	t.Parallel()
	a, c, u := uint(1), uint(2), uint(3)

	tests := []struct {
		name  string
		o     Ownership
		want  uint
		found bool
	}{
		{"author wins", Ownership{Author: &a, Creator: &c, User: &u}, 1, true},
		{"creator before user", Ownership{Creator: &c, User: &u}, 2, true},
		{"user only", Ownership{User: &u}, 3, true},
		{"none", Ownership{}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := tt.o.Owner()
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOwnerRegistry_Authorize(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	reg := NewOwnerRegistry(h.repos)

	f := h.createForum(t, "Tech")
	p := h.createPost(t, f.ID, h.alice, "Thread")
	r := h.addReply(t, p.ID, h.bob, "reply body")
	id := func(v uint) string { return strconv.FormatUint(uint64(v), 10) }

	tests := []struct {
		name   string
		kind   ResourceKind
		id     string
		caller *models.User
		code   string
	}{
		{"post author", ResourcePost, id(p.ID), h.alice, ""},
		{"post stranger", ResourcePost, id(p.ID), h.bob, models.CodeForbidden},
		{"post admin", ResourcePost, id(p.ID), h.admin, ""},
		{"missing post", ResourcePost, "999", h.alice, models.CodeNotFound},
		{"malformed post id", ResourcePost, "abc", h.alice, models.CodeNotFound},
		{"anonymous", ResourcePost, id(p.ID), nil, models.CodeUnauthorized},
		{"forum creator", ResourceForum, id(f.ID), h.admin, ""},
		{"forum member", ResourceForum, id(f.ID), h.alice, models.CodeForbidden},
		{"reply author", ResourceReply, r.ID, h.bob, ""},
		{"reply stranger", ResourceReply, r.ID, h.alice, models.CodeForbidden},
		{"user self", ResourceUser, id(h.bob.ID), h.bob, ""},
		{"user other", ResourceUser, id(h.bob.ID), h.alice, models.CodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Authorize(ctx, tt.kind, ResourceRef{ID: tt.id}, tt.caller)
			if tt.code == "" {
				require.NoError(t, err)
				return
			}
			requireCode(t, err, tt.code)
		})
	}

	requireCode(t, reg.Authorize(ctx, ResourceKind(99), ResourceRef{ID: "1"}, h.admin), models.CodeInternal)
}

func TestOwnerRegistry_AuthorizeNestedReply(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	reg := NewOwnerRegistry(h.repos)

	f := h.createForum(t, "Tech")
	p := h.createPost(t, f.ID, h.alice, "Thread")
	other := h.createPost(t, f.ID, h.alice, "Other thread")
	r := h.addReply(t, p.ID, h.bob, "reply body")
	id := func(v uint) string { return strconv.FormatUint(uint64(v), 10) }

	tests := []struct {
		name   string
		ref    ResourceRef
		caller *models.User
		code   string
	}{
		{"author under its post", ResourceRef{ID: r.ID, Parent: id(p.ID)}, h.bob, ""},
		{"stranger under its post", ResourceRef{ID: r.ID, Parent: id(p.ID)}, h.alice, models.CodeForbidden},
		{"stranger under missing post", ResourceRef{ID: r.ID, Parent: "999"}, h.alice, models.CodeNotFound},
		{"stranger under malformed post", ResourceRef{ID: r.ID, Parent: "abc"}, h.alice, models.CodeNotFound},
		{"stranger under another post", ResourceRef{ID: r.ID, Parent: id(other.ID)}, h.alice, models.CodeNotFound},
		{"author under another post", ResourceRef{ID: r.ID, Parent: id(other.ID)}, h.bob, models.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Authorize(ctx, ResourceReply, tt.ref, tt.caller)
			if tt.code == "" {
				require.NoError(t, err)
				return
			}
			requireCode(t, err, tt.code)
		})
	}
}

func TestResourceKind_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Post", ResourcePost.String())
	assert.Equal(t, "ResourceKind(42)", ResourceKind(42).String())
}
