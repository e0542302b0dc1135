package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
)

func TestDigestRepositorySaveAssignsID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDigestRepository(db)

	digest := &domain.Digest{
		UserID: "u-1",
		Categories: []domain.DigestCategory{
			{Name: domain.CategoryScience, Posts: []domain.DigestPost{{Title: "Mars", Summary: "rover", Source: "r/space"}}},
		},
		GeneratedAt: fixedNow,
	}
	mock.ExpectExec("INSERT INTO digests").
		WithArgs(sqlmock.AnyArg(), "u-1", 1, sqlmock.AnyArg(), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Save(context.Background(), digest); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if digest.ID == "" {
		t.Fatalf("expected digest id to be assigned")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDigestRepositoryLatest(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDigestRepository(db)

	mock.ExpectQuery("FROM digests").
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "categories", "generated_at"}).
			AddRow("d-1", "u-1", []byte(`[{"name":"Other","posts":[{"title":"t","summary":"s","source":"LinkedIn","url":""}]}]`), fixedNow))

	digest, err := repo.Latest(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if digest.ID != "d-1" || digest.PostCount() != 1 || digest.Categories[0].Name != domain.CategoryOther {
		t.Fatalf("unexpected digest %+v", digest)
	}

	mock.ExpectQuery("FROM digests").
		WithArgs("u-2").
		WillReturnError(sql.ErrNoRows)
	if _, err := repo.Latest(context.Background(), "u-2"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
