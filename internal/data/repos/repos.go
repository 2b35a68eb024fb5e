package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/contentagent/internal/data/repos/jobs"
	"github.com/yungbote/contentagent/internal/platform/logger"
)

type JobArchiveRepo = jobs.JobArchiveRepo

type Repos struct {
	JobArchive JobArchiveRepo
}

func New(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		JobArchive: jobs.NewJobArchiveRepo(db, log),
	}
}
