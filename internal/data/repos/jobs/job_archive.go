package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/contentagent/internal/domain"
	"github.com/yungbote/contentagent/internal/platform/logger"
)

var ErrNotTerminal = errors.New("only finished jobs can be archived")

type JobArchiveRepo interface {
	Save(ctx context.Context, rec domain.JobRecord) error
	Get(ctx context.Context, jobID string) (domain.JobRecord, error)
}

type jobArchiveRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobArchiveRepo(db *gorm.DB, baseLog *logger.Logger) JobArchiveRepo {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &jobArchiveRepo{
		db:  db,
		log: baseLog.With("repo", "JobArchiveRepo"),
	}
}

// Save inserts the job once. A second save of the same job is a no-op.
func (r *jobArchiveRepo) Save(ctx context.Context, rec domain.JobRecord) error {
	if !rec.Lifecycle.Terminal() {
		return ErrNotTerminal
	}
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			r.log.Debug("job already archived", "job_id", rec.ID)
			return nil
		}
		return fmt.Errorf("archive job %s: %w", rec.ID, err)
	}
	return nil
}

func (r *jobArchiveRepo) Get(ctx context.Context, jobID string) (domain.JobRecord, error) {
	var row domain.ArchivedJob
	err := r.db.WithContext(ctx).Where("job_id = ?", jobID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.JobRecord{}, domain.ErrJobNotFound
	}
	if err != nil {
		return domain.JobRecord{}, fmt.Errorf("load archived job %s: %w", jobID, err)
	}
	return fromRow(row)
}

func toRow(rec domain.JobRecord) (*domain.ArchivedJob, error) {
	input, err := json.Marshal(rec.Input)
	if err != nil {
		return nil, err
	}
	terms, err := json.Marshal(rec.Terms)
	if err != nil {
		return nil, err
	}
	row := &domain.ArchivedJob{
		JobID:                   rec.ID,
		Status:                  string(rec.Lifecycle),
		PaymentStatus:           string(rec.Payment),
		BlockchainIdentifier:    rec.PaymentReference,
		IdentifierFromPurchaser: rec.IdentifierFromPurchaser,
		InputHash:               rec.InputHash,
		Input:                   datatypes.JSON(input),
		Terms:                   datatypes.JSON(terms),
		Error:                   rec.Error,
		CreatedAt:               rec.CreatedAt,
		FinishedAt:              rec.UpdatedAt,
	}
	if rec.Result != nil {
		res, err := json.Marshal(rec.Result)
		if err != nil {
			return nil, err
		}
		row.Result = datatypes.JSON(res)
	}
	return row, nil
}

func fromRow(row domain.ArchivedJob) (domain.JobRecord, error) {
	rec := domain.JobRecord{
		ID:                      row.JobID,
		Lifecycle:               domain.LifecycleState(row.Status),
		Payment:                 domain.PaymentState(row.PaymentStatus),
		PaymentReference:        row.BlockchainIdentifier,
		IdentifierFromPurchaser: row.IdentifierFromPurchaser,
		InputHash:               row.InputHash,
		Error:                   row.Error,
		CreatedAt:               row.CreatedAt,
		UpdatedAt:               row.FinishedAt,
	}
	if len(row.Input) > 0 {
		if err := json.Unmarshal(row.Input, &rec.Input); err != nil {
			return rec, fmt.Errorf("decode archived input: %w", err)
		}
	}
	if len(row.Terms) > 0 {
		if err := json.Unmarshal(row.Terms, &rec.Terms); err != nil {
			return rec, fmt.Errorf("decode archived terms: %w", err)
		}
	}
	if len(row.Result) > 0 && string(row.Result) != "null" {
		var res domain.ContentResult
		if err := json.Unmarshal(row.Result, &res); err != nil {
			return rec, fmt.Errorf("decode archived result: %w", err)
		}
		rec.Result = &res
	}
	return rec, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.TrimSpace(pgErr.Code) == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "duplicate key")
}
