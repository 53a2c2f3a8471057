package apiclient

import (
	"context"
	"io"
	"net/url"

	"github.com/gaborage/dashclient/offline"
)

// Client defines the API client used by every dashboard service
type Client interface {
	Get(ctx context.Context, path string, query url.Values) (*Envelope, error)
	Post(ctx context.Context, path string, body any) (*Envelope, error)
	Put(ctx context.Context, path string, body any) (*Envelope, error)
	Patch(ctx context.Context, path string, body any) (*Envelope, error)
	Delete(ctx context.Context, path string) (*Envelope, error)
	Upload(ctx context.Context, path string, file UploadFile, progress ProgressFunc) (*Envelope, error)
	Do(ctx context.Context, req Request) (*Envelope, error)

	SetAuthToken(ctx context.Context, token string) error
	AuthToken(ctx context.Context) (string, error)
	ClearAuthToken(ctx context.Context) error

	SetRetryPolicy(policy RetryPolicy)
	RetryPolicy() RetryPolicy

	// Flush replays the offline queue once and reports the outcome
	Flush(ctx context.Context) FlushReport
	QueueLen() int

	Close() error
}

// Request describes one logical API call. It is passed by value and never
// modified once built, so queued copies replay exactly what was issued.
type Request struct {
	Method string
	// Path is relative to the base URL
	Path  string
	Query url.Values
	Body  []byte
	// ContentType defaults to application/json
	ContentType string
	// Progress observes upload bytes on every attempt
	Progress ProgressFunc
}

// UploadFile is one multipart file part plus optional form fields
type UploadFile struct {
	// FieldName defaults to "file"
	FieldName string
	FileName  string
	Content   io.Reader
	Fields    map[string]string
}

// ProgressFunc receives bytes sent so far and the total body size
type ProgressFunc func(sent, total int64)

// QueuedRequest is a request held by the offline queue
type QueuedRequest = offline.Item[Request]

// DroppedFunc observes queued requests that leave the queue unsent
type DroppedFunc func(item QueuedRequest, reason offline.DropReason)

// FlushReport summarizes one drain of the offline queue
type FlushReport struct {
	// Replayed counts items that succeeded
	Replayed int `json:"replayed"`
	Requeued int `json:"requeued"`
	Dropped  int `json:"dropped"`
}
