package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/glizzus/readaloud/internal/config"
)

// Multipart field names understood by the transcription service.
const (
	FieldAudio    = "audio"
	FieldQuestion = "question"
	FieldUserID   = "userID"
)

type Uploader interface {
	Upload(ctx context.Context, req *Request) (*Result, error)
}

// Result is the service's answer. Raw keeps the full body for callers that
// need more than the transcription.
type Result struct {
	Transcription string          `json:"transcription"`
	Raw           json.RawMessage `json:"-"`
}

// Error is returned for every failed upload. StatusCode is zero when the
// request never got a response.
type Error struct {
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("server error: %d", e.StatusCode)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

var _ error = (*Error)(nil)

type HTTPUploader struct {
	endpoint string
	client   *http.Client
}

func NewHTTPUploader(endpoint string, client *http.Client) *HTTPUploader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPUploader{endpoint: endpoint, client: client}
}

func NewHTTPUploaderFromConfig(cfg *config.UploadConfig) *HTTPUploader {
	return NewHTTPUploader(cfg.Endpoint, &http.Client{Timeout: cfg.Timeout})
}

var _ Uploader = (*HTTPUploader)(nil)

// Upload posts req once. Failures are never retried here.
func (u *HTTPUploader) Upload(ctx context.Context, req *Request) (*Result, error) {
	body, contentType, err := multipartBody(req)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("failed to build upload body: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, body)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("failed to create upload request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := u.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", bytes.TrimSpace(respBody))}
	}

	result := Result{Raw: json.RawMessage(respBody)}
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, &Error{Err: fmt.Errorf("failed to parse response JSON: %w", err)}
		}
	}
	return &result, nil
}

func multipartBody(req *Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part := make(textproto.MIMEHeader)
	part.Set("Content-Disposition", fileDisposition(FieldAudio, req.filename))
	part.Set("Content-Type", "audio/wav")
	fileWriter, err := writer.CreatePart(part)
	if err != nil {
		return nil, "", err
	}
	if _, err := fileWriter.Write(req.audio); err != nil {
		return nil, "", err
	}

	for _, field := range [][2]string{
		{FieldQuestion, req.question},
		{FieldUserID, req.userID},
	} {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func fileDisposition(field, filename string) string {
	return fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(field), quoteEscaper.Replace(filename))
}
