// Package metadata stores the records that describe uploaded media objects.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// FileMetadata is the free-form part of a record, stored as JSON.
type FileMetadata struct {
	OriginalName string    `json:"original_name"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// Record describes one uploaded object. (Bucket, Path) is unique.
type Record struct {
	ID          string
	Bucket      string
	Path        string
	Title       string
	Description string
	Size        int64
	MimeType    string
	Metadata    FileMetadata
	OwnerID     string
	Public      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SortField ...
type SortField string

// SortField values
const (
	SortByCreatedAt SortField = "created_at"
	SortBySize      SortField = "size"
	SortByName      SortField = "name"
)

// SortOrder ...
type SortOrder string

// SortOrder values
const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// Defaults applied by ListOptions.WithDefaults.
const (
	DefaultListLimit = 10
	DefaultSortBy    = SortByCreatedAt
	DefaultOrder     = OrderDesc
)

// ErrInvalidListOptions ...
var ErrInvalidListOptions = errors.New("invalid list options")

// ListOptions selects one page of a bucket's records.
type ListOptions struct {
	Bucket string
	SortBy SortField
	Order  SortOrder
	// Search is a case-insensitive substring match on Path.
	Search string
	Limit  int
	Offset int
}

// WithDefaults fills zero values: limit 10, sort by created_at, descending.
func (o ListOptions) WithDefaults() ListOptions {
	if o.Limit == 0 {
		o.Limit = DefaultListLimit
	}
	if o.SortBy == "" {
		o.SortBy = DefaultSortBy
	}
	if o.Order == "" {
		o.Order = DefaultOrder
	}
	return o
}

// Validate ...
func (o ListOptions) Validate() error {
	if o.Bucket == "" {
		return fmt.Errorf("%w: bucket must not be empty", ErrInvalidListOptions)
	}
	switch o.SortBy {
	case SortByCreatedAt, SortBySize, SortByName:
	default:
		return fmt.Errorf("%w: unsupported sort field %q", ErrInvalidListOptions, o.SortBy)
	}
	switch o.Order {
	case OrderAsc, OrderDesc:
	default:
		return fmt.Errorf("%w: unsupported sort order %q", ErrInvalidListOptions, o.Order)
	}
	if o.Limit < 0 || o.Offset < 0 {
		return fmt.Errorf("%w: limit and offset must not be negative", ErrInvalidListOptions)
	}
	return nil
}

// Repository ...
type Repository interface {
	Insert(ctx context.Context, record Record) error
	Delete(ctx context.Context, bucket, path string) error
	List(ctx context.Context, opts ListOptions) ([]Record, error)
}
