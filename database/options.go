package database

import (
	"errors"
	"time"

	"github.com/gocrud/injectgen/logging"
	"gorm.io/gorm"
)

// DatabaseOptions configures the gorm store.
type DatabaseOptions struct {
	Dialector    gorm.Dialector
	GormConfig   *gorm.Config
	MaxIdleConns int
	MaxOpenConns int
	MaxLifetime  time.Duration
	Logger       logging.Logger
}

func NewDefaultOptions(dialector gorm.Dialector) *DatabaseOptions {
	return &DatabaseOptions{
		Dialector:    dialector,
		GormConfig:   &gorm.Config{},
		MaxIdleConns: 10,
		MaxOpenConns: 100,
		MaxLifetime:  time.Hour,
		Logger:       logging.Nop(),
	}
}

func (o *DatabaseOptions) Validate() error {
	if o.Dialector == nil {
		return errors.New("database dialector is required")
	}
	return nil
}
