package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	keystoreDomain "github.com/aknoru/lacbot-security/internal/keystore/domain"
)

var keyColumns = []string{
	"id", "kind", "version", "state", "material", "public_key",
	"created_at", "retired_at", "revoked_at",
}

func newTestKey() *keystoreDomain.KeyMaterial {
	return &keystoreDomain.KeyMaterial{
		ID:        uuid.Must(uuid.NewV7()),
		Kind:      keystoreDomain.KindSymmetric,
		Version:   1,
		State:     keystoreDomain.StateActive,
		Material:  []byte("wrapped-material"),
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestPostgreSQLKeyRepository_Create(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	key := newTestKey()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO key_material")).
		WithArgs(
			key.ID, string(key.Kind), key.Version, string(key.State),
			key.Material, key.PublicKey, key.CreatedAt, key.RetiredAt, key.RevokedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPostgreSQLKeyRepository(db)
	err = repo.Create(ctx, key)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLKeyRepository_GetByVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() {
			_ = db.Close()
		}()

		key := newTestKey()
		rows := sqlmock.NewRows(keyColumns).AddRow(
			key.ID, string(key.Kind), key.Version, string(key.State),
			key.Material, key.PublicKey, key.CreatedAt, key.RetiredAt, key.RevokedAt,
		)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE kind = $1 AND version = $2")).
			WithArgs(string(key.Kind), key.Version).
			WillReturnRows(rows)

		repo := NewPostgreSQLKeyRepository(db)
		got, err := repo.GetByVersion(ctx, key.Kind, key.Version)
		require.NoError(t, err)
		assert.Equal(t, key.ID, got.ID)
		assert.Equal(t, keystoreDomain.StateActive, got.State)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() {
			_ = db.Close()
		}()

		mock.ExpectQuery(regexp.QuoteMeta("WHERE kind = $1 AND version = $2")).
			WithArgs(string(keystoreDomain.KindSymmetric), uint(99)).
			WillReturnRows(sqlmock.NewRows(keyColumns))

		repo := NewPostgreSQLKeyRepository(db)
		_, err = repo.GetByVersion(ctx, keystoreDomain.KindSymmetric, 99)
		assert.ErrorIs(t, err, keystoreDomain.ErrKeyNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgreSQLKeyRepository_MaxVersion(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(MAX(version), 0)")).
		WithArgs(string(keystoreDomain.KindSymmetric)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(7))

	repo := NewPostgreSQLKeyRepository(db)
	version, err := repo.MaxVersion(ctx, keystoreDomain.KindSymmetric)
	require.NoError(t, err)
	assert.Equal(t, uint(7), version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLKeyRepository_UpdateState(t *testing.T) {
	ctx := context.Background()

	t.Run("Retire", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() {
			_ = db.Close()
		}()

		now := time.Now().UTC()
		mock.ExpectExec(regexp.QuoteMeta("SET state = $1, retired_at = $2")).
			WithArgs(string(keystoreDomain.StateRetiring), now, string(keystoreDomain.KindSymmetric), uint(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		repo := NewPostgreSQLKeyRepository(db)
		err = repo.UpdateState(ctx, keystoreDomain.KindSymmetric, 1, keystoreDomain.StateRetiring, now)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UnknownVersion", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() {
			_ = db.Close()
		}()

		now := time.Now().UTC()
		mock.ExpectExec(regexp.QuoteMeta("SET state = $1, retired_at = $2")).
			WithArgs(string(keystoreDomain.StateRetiring), now, string(keystoreDomain.KindSymmetric), uint(42)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		repo := NewPostgreSQLKeyRepository(db)
		err = repo.UpdateState(ctx, keystoreDomain.KindSymmetric, 42, keystoreDomain.StateRetiring, now)
		assert.ErrorIs(t, err, keystoreDomain.ErrKeyNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InvalidTransition", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer func() {
			_ = db.Close()
		}()

		repo := NewPostgreSQLKeyRepository(db)
		err = repo.UpdateState(ctx, keystoreDomain.KindSymmetric, 1, keystoreDomain.StateActive, time.Now())
		assert.Error(t, err)
	})
}
