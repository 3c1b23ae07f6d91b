package redline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// UploadDocument uploads a .docx file and returns the parsed document.
// The filename extension is validated before any network I/O; a non-.docx
// name fails with ErrNotDocx and no request is made.
func (c *Client) UploadDocument(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".docx") {
		return nil, fmt.Errorf("UploadDocument: %w", ErrNotDocx)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("UploadDocument: create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("UploadDocument: copy file: %w", err)
	}
	if c.mode == ModeCommenter {
		if err := w.WriteField("is_editable", "false"); err != nil {
			return nil, fmt.Errorf("UploadDocument: write field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("UploadDocument: close multipart writer: %w", err)
	}

	fullURL, err := c.buildURL("/upload/", nil)
	if err != nil {
		return nil, wrapError(err, "UploadDocument")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", fullURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("UploadDocument: create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var result UploadResult
	if err := c.do(req, &result); err != nil {
		return nil, wrapError(err, "UploadDocument")
	}

	return &result, nil
}

// UnmarshalJSON accepts both upload response shapes: the flat payload and
// the nested {status, data: {...}} envelope. The envelope is a defined
// contract variant between the editor and commenter surfaces, not an
// error case.
func (u *UploadResult) UnmarshalJSON(data []byte) error {
	var env struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if len(env.Data) > 0 {
		data = env.Data
	}

	type flat UploadResult
	var payload flat
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	*u = UploadResult(payload)
	return nil
}
