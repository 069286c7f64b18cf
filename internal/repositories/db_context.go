package repositories

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/jobdesk/autoapply/internal/entities"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type DbContext struct {
	DB *gorm.DB
}

func NewDbContext(connectionString string) (*DbContext, error) {
	db, err := gorm.Open(sqlite.Open(connectionString), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, err
	}

	return &DbContext{DB: db}, nil
}

func (c *DbContext) Migrate() error {
	err := c.DB.AutoMigrate(entities.JobPosting{})
	if err != nil {
		return fmt.Errorf("failed to migrate JobPosting entity: %w", err)
	}

	err = c.DB.AutoMigrate(entities.ApplicationRecord{})
	if err != nil {
		return fmt.Errorf("failed to migrate ApplicationRecord entity: %w", err)
	}

	err = c.DB.AutoMigrate(entities.UserProfile{})
	if err != nil {
		return fmt.Errorf("failed to migrate UserProfile entity: %w", err)
	}

	err = c.DB.AutoMigrate(entities.NotificationEvent{})
	if err != nil {
		return fmt.Errorf("failed to migrate NotificationEvent entity: %w", err)
	}

	// The partial unique index is the ledger's linearization point: at most
	// one live record per (user, job) pair, enforced by the store itself.
	if err = c.DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_live_user_job " +
		"ON application_records (user_id, job_id) WHERE superseded = 0; " +
		"CREATE INDEX IF NOT EXISTS idx_application_state_created " +
		"ON application_records (state, created_at);").
		Error; err != nil {
		return fmt.Errorf("failed to create application indexes: %w", err)
	}

	return nil
}

func (c *DbContext) Close() error {
	db, err := c.DB.DB()
	if err != nil {
		return err
	}

	return db.Close()
}
