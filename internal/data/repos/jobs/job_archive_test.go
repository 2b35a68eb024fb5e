package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yungbote/contentagent/internal/data/repos/testutil"
	"github.com/yungbote/contentagent/internal/domain"
)

func finishedJob() domain.JobRecord {
	now := time.Now().UTC().Truncate(time.Second)
	return domain.JobRecord{
		ID:                      uuid.NewString(),
		Lifecycle:               domain.LifecycleCompleted,
		Payment:                 domain.PaymentConfirmed,
		PaymentReference:        "bc-" + uuid.NewString(),
		IdentifierFromPurchaser: "buyer",
		InputHash:               "hash",
		Terms:                   domain.PaymentTerms{BlockchainIdentifier: "bc", PayByTime: "1"},
		Input:                   domain.ContentRequest{Topic: "T", Tone: "bold", Platform: "linkedin", Keywords: []string{"k"}},
		Result: &domain.ContentResult{
			Topic:    "T",
			Post:     domain.Post{PostBody: "Body"},
			Hashtags: []string{"AI"},
		},
		CreatedAt: now.Add(-time.Minute),
		UpdatedAt: now,
	}
}

func TestJobArchiveRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewJobArchiveRepo(tx, testutil.Logger(t))

	rec := finishedJob()
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("second Save should be a no-op, got %v", err)
	}

	got, err := repo.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Lifecycle != domain.LifecycleCompleted || got.PaymentReference != rec.PaymentReference {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.Result == nil || got.Result.Post.PostBody != "Body" || len(got.Input.Keywords) != 1 {
		t.Fatalf("unexpected payload %+v", got)
	}
	if got.Terms.PayByTime != "1" {
		t.Fatalf("terms=%+v", got.Terms)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestJobArchiveRejectsLiveJobs(t *testing.T) {
	repo := NewJobArchiveRepo(nil, nil)
	rec := finishedJob()
	rec.Lifecycle = domain.LifecycleRunning
	if err := repo.Save(context.Background(), rec); !errors.Is(err, ErrNotTerminal) {
		t.Fatalf("expected ErrNotTerminal, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(errors.New("UNIQUE constraint failed: content_job_archive.job_id")) {
		t.Fatalf("sqlite message not detected")
	}
	if !isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})) {
		t.Fatalf("postgres unique_violation not detected")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("foreign key violation is not a duplicate")
	}
	if isUniqueViolation(errors.New("connection refused")) {
		t.Fatalf("unexpected match")
	}
}
