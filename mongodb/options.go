package mongodb

import (
	"errors"
	"time"

	"github.com/gocrud/injectgen/logging"
)

// MongoOptions configures the MongoDB plan store.
type MongoOptions struct {
	URI         string
	Database    string
	Collection  string
	Username    string
	Password    string
	MaxPoolSize uint64
	MinPoolSize uint64
	Timeout     time.Duration
	Logger      logging.Logger
}

func NewDefaultOptions(uri string) *MongoOptions {
	return &MongoOptions{
		URI:         uri,
		Database:    "injectgen",
		Collection:  "plans",
		MaxPoolSize: 100,
		MinPoolSize: 0,
		Timeout:     10 * time.Second,
		Logger:      logging.Nop(),
	}
}

func (o *MongoOptions) Validate() error {
	switch {
	case o.URI == "":
		return errors.New("mongo uri is required")
	case o.Database == "" || o.Collection == "":
		return errors.New("mongo database and collection are required")
	}
	return nil
}
