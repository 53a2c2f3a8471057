package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
)

const defaultUploadField = "file"

// Upload POSTs file as multipart/form-data. progress, when set, is called as
// the body is written on every attempt.
func (c *client) Upload(ctx context.Context, path string, file UploadFile, progress ProgressFunc) (*Envelope, error) {
	body, contentType, err := encodeMultipart(file)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: "invalid upload", cause: err}
	}
	return c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        path,
		Body:        body,
		ContentType: contentType,
		Progress:    progress,
	})
}

// encodeMultipart buffers the form so retries and replays resend the same bytes
func encodeMultipart(file UploadFile) ([]byte, string, error) {
	if file.Content == nil {
		return nil, "", errors.New("upload content is required")
	}
	field := file.FieldName
	if field == "" {
		field = defaultUploadField
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range file.Fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", k, err)
		}
	}
	part, err := w.CreateFormFile(field, file.FileName)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return nil, "", fmt.Errorf("failed to read upload content: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// progressReader reports cumulative bytes read
type progressReader struct {
	r     io.Reader
	total int64
	fn    ProgressFunc

	mu   sync.Mutex
	sent int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.mu.Lock()
		p.sent += int64(n)
		sent := p.sent
		p.mu.Unlock()
		p.fn(sent, p.total)
	}
	return n, err
}
