package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"taxportal/internal/config"
	"taxportal/internal/database/migration"
	"taxportal/internal/model"
	"taxportal/internal/service"
	serviceMocks "taxportal/internal/service/mocks"
)

func TestSeedAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("created", func(t *testing.T) {
		users := new(serviceMocks.MockUserService)
		users.On("SeedAdmin", mock.Anything, "Root", "root@example.com", "longenough").
			Return(&model.User{ID: "a-1", Email: "root@example.com", Role: model.RoleAdmin}, true, nil).Once()

		var out bytes.Buffer
		require.NoError(t, seedAdmin(ctx, users, &out, "Root", "root@example.com", "longenough"))
		assert.Equal(t, "created admin root@example.com (id a-1)\n", out.String())
	})

	t.Run("already exists", func(t *testing.T) {
		users := new(serviceMocks.MockUserService)
		users.On("SeedAdmin", mock.Anything, "Root", "root@example.com", "longenough").
			Return(&model.User{ID: "a-1", Email: "root@example.com", Role: model.RoleAdmin}, false, nil).Once()

		var out bytes.Buffer
		require.NoError(t, seedAdmin(ctx, users, &out, "Root", "root@example.com", "longenough"))
		assert.Contains(t, out.String(), "already exists")
	})

	t.Run("missing password", func(t *testing.T) {
		users := new(serviceMocks.MockUserService)
		err := seedAdmin(ctx, users, io.Discard, "Root", "root@example.com", "")
		assert.ErrorContains(t, err, adminPasswordEnv)
		users.AssertNotCalled(t, "SeedAdmin", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("validation message surfaces", func(t *testing.T) {
		users := new(serviceMocks.MockUserService)
		users.On("SeedAdmin", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, false, &service.ValidationError{Msg: "password must be at least 8 characters"}).Once()

		err := seedAdmin(ctx, users, io.Discard, "Root", "root@example.com", "short")
		assert.EqualError(t, err, "invalid admin account: password must be at least 8 characters")
	})
}

func TestPrintStatus(t *testing.T) {
	var out bytes.Buffer
	err := printStatus(&out, []migration.MigrationState{
		{Version: 1, Source: "00001_users.sql", Applied: true, AppliedAt: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)},
		{Version: 2, Source: "00002_regions.sql"},
	})
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[1]), "applied")
	assert.Contains(t, string(lines[1]), "2025-07-01T09:00:00Z")
	assert.Contains(t, string(lines[2]), "pending")
}

func TestRootCmd_DatabaseErrorsSurface(t *testing.T) {
	e := &env{
		cfg: &config.AppConfig{},
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
		openDB: func(context.Context) (*sql.DB, error) {
			return nil, errors.New("connection refused")
		},
	}
	for _, args := range [][]string{
		{"migrate", "up"},
		{"migrate", "status"},
		{"seed-admin", "--email", "root@example.com", "--password", "longenough"},
	} {
		cmd := newRootCmd(e)
		cmd.SetArgs(args)
		cmd.SetOut(io.Discard)
		err := cmd.Execute()
		assert.ErrorContains(t, err, "connection refused", args)
	}
}

func TestRootCmd_SeedAdminRequiresEmail(t *testing.T) {
	e := &env{cfg: &config.AppConfig{}, log: slog.Default()}
	cmd := newRootCmd(e)
	cmd.SetArgs([]string{"seed-admin"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	assert.ErrorContains(t, cmd.Execute(), "email")
}
