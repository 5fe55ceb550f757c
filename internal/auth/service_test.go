package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/delifood/delifood/internal/events"
	"github.com/delifood/delifood/internal/shared"
	"github.com/delifood/delifood/internal/token"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type harness struct {
	svc   *Service
	repo  *memRepo
	pub   *recordingPublisher
	codec *token.Codec
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	codec, err := token.NewCodec(testSecret)
	require.NoError(t, err)
	repo := newMemRepo()
	pub := &recordingPublisher{}
	svc := NewService(repo, newStaticRoles(), token.NewIssuer(codec, 24*time.Hour), pub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.hashCost = bcrypt.MinCost
	return &harness{svc: svc, repo: repo, pub: pub, codec: codec}
}

func TestSignUpAssignsDefaultRoleAndPublishes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	user, err := h.svc.SignUp(ctx, "  Ana@Example.COM ", "password1")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, []string{"r-user"}, user.RoleIDs)
	assert.NotEqual(t, "password1", user.PasswordHash)

	require.Equal(t, []string{events.TopicUserCreated}, h.pub.topics())
	payload := h.pub.events[0].payload.(events.UserPayload)
	assert.Equal(t, user.ID, payload.ID)
	assert.Equal(t, "ana@example.com", payload.Email)

	_, err = h.svc.SignUp(ctx, "ana@example.com", "password2")
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.Len(t, h.pub.topics(), 1)
}

func TestSignUpPublishesAfterRequestCancelled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	user, err := h.svc.SignUp(ctx, "cy@example.com", "password1")
	require.NoError(t, err)
	require.Equal(t, []string{events.TopicUserCreated}, h.pub.topics())
	assert.Equal(t, user.ID, h.pub.events[0].payload.(events.UserPayload).ID)
	assert.Equal(t, []bool{true}, h.pub.deadlines)
}

func TestSignUpSurvivesPublishFailure(t *testing.T) {
	h := newHarness(t)
	h.pub.fail = true

	user, err := h.svc.SignUp(context.Background(), "bo@example.com", "password1")
	require.NoError(t, err)
	_, err = h.repo.GetUser(context.Background(), user.ID)
	assert.NoError(t, err)
}

func TestSignIn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.CreateUser(ctx, "admin@admin.com", "adminadmin", []string{"r-admin", "r-user"})
	require.NoError(t, err)

	_, err = h.svc.SignIn(ctx, "nobody@admin.com", "adminadmin")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = h.svc.SignIn(ctx, "admin@admin.com", "wrong-password")
	assert.ErrorIs(t, err, shared.ErrUnprocessable)

	session, err := h.svc.SignIn(ctx, "ADMIN@admin.com", "adminadmin")
	require.NoError(t, err)
	assert.Equal(t, []string{"Admin", DefaultRole}, session.User.Roles)
	assert.Equal(t, []string{"create:cart/item", "get:cart", "list:user", "put:user/role"}, session.User.Permissions)

	payload, err := h.codec.Unseal(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.Permissions, payload.User.Permissions)
	assert.Equal(t, int64(24*time.Hour/time.Millisecond), payload.ExpiresAt-payload.IssuedAt)
}

func TestPutUserRolesRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user, err := h.svc.SignUp(ctx, "cy@example.com", "password1")
	require.NoError(t, err)

	_, err = h.svc.PutUserRoles(ctx, user.ID, []string{"r-admin", "r-admin"})
	assert.ErrorIs(t, err, shared.ErrUnprocessable)

	_, err = h.svc.PutUserRoles(ctx, user.ID, []string{"r-ghost"})
	assert.ErrorIs(t, err, shared.ErrUnprocessable)

	_, err = h.svc.PutUserRoles(ctx, "u-ghost", []string{"r-admin"})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	updated, err := h.svc.PutUserRoles(ctx, user.ID, []string{"r-admin"})
	require.NoError(t, err)
	assert.Equal(t, []string{"r-admin"}, updated.RoleIDs)
	assert.Equal(t, []string{events.TopicUserCreated, events.TopicUserUpdated}, h.pub.topics())
}

func TestPatchUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user, err := h.svc.SignUp(ctx, "di@example.com", "password1")
	require.NoError(t, err)

	_, err = h.svc.PatchUser(ctx, user.ID, nil, nil)
	assert.ErrorIs(t, err, shared.ErrValidation)

	email := "DI2@example.com"
	password := "password2"
	updated, err := h.svc.PatchUser(ctx, user.ID, &email, &password)
	require.NoError(t, err)
	assert.Equal(t, "di2@example.com", updated.Email)

	_, err = h.svc.SignIn(ctx, "di2@example.com", "password2")
	assert.NoError(t, err)
}
