package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
)

func newSummaryRepo(t *testing.T) (*SummaryRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	repo := NewSummaryRepository(db)
	repo.now = func() time.Time { return fixedNow }
	return repo, mock
}

func TestSummaryRepositoryAcquireUpsertsActiveRecord(t *testing.T) {
	repo, mock := newSummaryRepo(t)

	rows := sqlmock.NewRows(summaryColumns).
		AddRow("s-1", "u-1", "p-1", "processing", "Other", "", "", fixedNow.Add(-time.Hour), fixedNow)
	mock.ExpectQuery("INSERT INTO summaries .* ON CONFLICT \\(user_id, post_id\\) WHERE status <> 'failed' DO UPDATE").
		WithArgs(sqlmock.AnyArg(), "u-1", "p-1", "processing", "Other", "", "", fixedNow, fixedNow).
		WillReturnRows(rows)

	record, err := repo.Acquire(context.Background(), "u-1", "p-1", domain.CategoryOther)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if record.ID != "s-1" || record.Status != domain.SummaryProcessing {
		t.Fatalf("unexpected record %+v", record)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// newCapturingSummaryRepo records every SQL statement sent to the mock so a
// test can inspect clauses a regexp expectation cannot rule out.
func newCapturingSummaryRepo(t *testing.T) (*SummaryRepository, sqlmock.Sqlmock, *[]string) {
	t.Helper()
	var statements []string
	matcher := sqlmock.QueryMatcherFunc(func(expectedSQL, actualSQL string) error {
		statements = append(statements, actualSQL)
		return sqlmock.QueryMatcherRegexp.Match(expectedSQL, actualSQL)
	})
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(matcher))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := NewSummaryRepository(db)
	repo.now = func() time.Time { return fixedNow }
	return repo, mock, &statements
}

func TestSummaryRepositoryAcquireReuseKeepsCategoryAndClearsContent(t *testing.T) {
	repo, mock, statements := newCapturingSummaryRepo(t)

	rows := sqlmock.NewRows(summaryColumns).
		AddRow("s-1", "u-1", "p-1", "processing", "Science & Education", "", "", fixedNow.Add(-time.Hour), fixedNow)
	mock.ExpectQuery("INSERT INTO summaries .* DO UPDATE SET").
		WithArgs(sqlmock.AnyArg(), "u-1", "p-1", "processing", "Technology & Programming", "", "", fixedNow, fixedNow).
		WillReturnRows(rows)

	record, err := repo.Acquire(context.Background(), "u-1", "p-1", domain.CategoryTechnology)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if record.Category != domain.CategoryScience || record.Content != "" {
		t.Fatalf("unexpected reused record %+v", record)
	}

	if len(*statements) != 1 {
		t.Fatalf("expected one statement, got %d", len(*statements))
	}
	_, conflict, ok := strings.Cut((*statements)[0], "DO UPDATE SET")
	if !ok {
		t.Fatalf("missing conflict clause in %q", (*statements)[0])
	}
	conflict, _, _ = strings.Cut(conflict, "RETURNING")
	if strings.Contains(conflict, "category") {
		t.Fatalf("conflict clause must not touch category: %q", conflict)
	}
	if !strings.Contains(conflict, "content = ''") {
		t.Fatalf("conflict clause must clear content: %q", conflict)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSummaryRepositoryReopenClearsContent(t *testing.T) {
	repo, mock := newSummaryRepo(t)

	rows := sqlmock.NewRows(summaryColumns).
		AddRow("s-1", "u-1", "p-1", "processing", "Other", "", "", fixedNow.Add(-time.Hour), fixedNow)
	mock.ExpectQuery("UPDATE summaries\\s+SET status = \\$4, content = '', error_message = ''").
		WithArgs("s-1", "u-1", "p-1", "processing", fixedNow).
		WillReturnRows(rows)

	if _, err := repo.Reopen(context.Background(), "s-1", "u-1", "p-1"); err != nil {
		t.Fatalf("Reopen() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSummaryRepositoryReopenMapsUniqueViolationToConflict(t *testing.T) {
	repo, mock := newSummaryRepo(t)

	mock.ExpectQuery("UPDATE summaries").
		WithArgs("s-old", "u-1", "p-1", "processing", fixedNow).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_summaries_active_post"})

	_, err := repo.Reopen(context.Background(), "s-old", "u-1", "p-1")
	if !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSummaryRepositoryMarkFailedReturnsNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock := newSummaryRepo(t)

	mock.ExpectExec("UPDATE summaries").
		WithArgs("missing", "failed", "boom", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkFailed(context.Background(), "missing", "boom")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSummaryRepositoryMarkCompletedKeepsUpdatedAtMonotonic(t *testing.T) {
	repo, mock := newSummaryRepo(t)

	mock.ExpectExec("GREATEST\\(updated_at, \\$4\\)").
		WithArgs("s-1", "completed", "short summary", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkCompleted(context.Background(), "s-1", "short summary"); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSummaryRepositoryGetCurrentOrdersByUpdatedAt(t *testing.T) {
	repo, mock := newSummaryRepo(t)

	mock.ExpectQuery("FROM summaries WHERE user_id = \\$1 AND post_id = \\$2 ORDER BY updated_at DESC LIMIT 1").
		WithArgs("u-1", "p-1").
		WillReturnRows(sqlmock.NewRows(summaryColumns).
			AddRow("s-2", "u-1", "p-1", "failed", "Investing & Crypto", "", "timeout", fixedNow, fixedNow))

	record, err := repo.GetCurrent(context.Background(), "u-1", "p-1")
	if err != nil {
		t.Fatalf("GetCurrent() error = %v", err)
	}
	if record.Status != domain.SummaryFailed || record.Category != domain.CategoryInvesting {
		t.Fatalf("unexpected record %+v", record)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSummaryRepositoryListLatestCompletedSortsNewestFirst(t *testing.T) {
	repo, mock := newSummaryRepo(t)

	columns := append(append([]string{}, summaryColumns...), postColumns...)
	older := fixedNow.Add(-time.Hour)
	rows := sqlmock.NewRows(columns).
		AddRow("s-1", "u-1", "p-1", "completed", "Other", "first", "", older, older,
			"p-1", "u-1", "linkedin", "li-1", "Post one", "", "", "https://linkedin.com/1", "", []byte(`{}`), older, older, older).
		AddRow("s-2", "u-1", "p-2", "completed", "Technology & Programming", "second", "", fixedNow, fixedNow,
			"p-2", "u-1", "reddit", "t3_b", "Post two", "", "", "https://reddit.com/b", "golang", []byte(`{}`), fixedNow, fixedNow, fixedNow)
	mock.ExpectQuery("SELECT DISTINCT ON \\(s.post_id\\)").
		WithArgs("u-1", "completed").
		WillReturnRows(rows)

	items, err := repo.ListLatestCompleted(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("ListLatestCompleted() error = %v", err)
	}
	if len(items) != 2 || items[0].Summary.ID != "s-2" || items[1].Post.Source != domain.SourceLinkedIn {
		t.Fatalf("unexpected items %+v", items)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind error
	}{
		{name: "unique", err: &pgconn.PgError{Code: "23505"}, kind: domain.ErrConflict},
		{name: "foreign key", err: &pgconn.PgError{Code: "23503"}, kind: domain.ErrNotFound},
		{name: "check", err: &pgconn.PgError{Code: "23514"}, kind: domain.ErrValidation},
		{name: "deadline", err: context.DeadlineExceeded, kind: context.DeadlineExceeded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := mapError("op", tc.err)
			if !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
		})
	}

	if mapError("op", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}
