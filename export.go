package redline

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
)

// defaultExportName is used when the response carries no usable
// Content-Disposition header.
const defaultExportName = "document.docx"

// ExportDocument fetches the server-rendered .docx for a document. When
// sync is true the backend flushes any pending paragraph edits into the
// file before rendering it. The filename is taken from the response's
// Content-Disposition header, falling back to a default name.
func (c *Client) ExportDocument(ctx context.Context, id int, sync bool) (*Export, error) {
	var query url.Values
	if sync {
		query = url.Values{}
		query.Set("sync", "true")
	}

	fullURL, err := c.buildURL(fmt.Sprintf("/document/%d/export/", id), query)
	if err != nil {
		return nil, wrapError(err, "ExportDocument")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("ExportDocument: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ExportDocument: do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := readAllBody(resp)
	if err != nil {
		return nil, wrapError(err, "ExportDocument")
	}

	return &Export{
		Filename: exportFilename(resp.Header.Get("Content-Disposition")),
		Data:     data,
	}, nil
}

// exportFilename extracts the attachment filename from a
// Content-Disposition header value.
func exportFilename(disposition string) string {
	if disposition == "" {
		return defaultExportName
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return defaultExportName
	}
	if name := params["filename"]; name != "" {
		return name
	}
	return defaultExportName
}

// readAllBody reads a response body, converting non-2xx statuses into
// *Error values.
func readAllBody(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Message:    string(data),
		}
	}

	return data, nil
}
