// Package database persists planning results. Store is implemented here on
// gorm and in package mongodb on the MongoDB driver.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gocrud/injectgen/render"
)

var ErrNotFound = errors.New("plan record not found")

// Record is one stored planning result for a container.
type Record struct {
	Container     string
	Manifest      string
	Digest        string
	AsyncTeardown bool
	Roots         int
	Stubs         int
	Errors        int
	// Summary is the JSON encoding of the render.Summary.
	Summary   []byte
	CreatedAt time.Time
}

// NewRecord captures s as planned from the manifest named manifest.
func NewRecord(s render.Summary, manifest, digest string) (*Record, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode summary of %s: %w", s.Container, err)
	}
	r := &Record{
		Container:     string(s.Container),
		Manifest:      manifest,
		Digest:        digest,
		AsyncTeardown: s.AsyncTeardown,
		Roots:         len(s.Roots),
		Errors:        s.Errors,
		Summary:       raw,
		CreatedAt:     time.Now().UTC(),
	}
	for _, root := range s.Roots {
		if root.Stub {
			r.Stubs++
		}
	}
	return r, nil
}

// Decode returns the stored summary.
func (r *Record) Decode() (render.Summary, error) {
	var s render.Summary
	err := json.Unmarshal(r.Summary, &s)
	return s, err
}

// Store saves planning results.
type Store interface {
	Save(ctx context.Context, r *Record) error
	// Latest returns the newest record of container or ErrNotFound.
	Latest(ctx context.Context, container string) (*Record, error)
	// History returns up to limit records of container, newest first.
	History(ctx context.Context, container string, limit int) ([]*Record, error)
	// CloseContext releases the connection.
	CloseContext(ctx context.Context) error
}
