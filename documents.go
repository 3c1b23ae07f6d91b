package redline

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ListDocuments retrieves all documents known to the backend, newest
// first, with per-document comment counts.
func (c *Client) ListDocuments(ctx context.Context) ([]DocumentSummary, error) {
	var result []DocumentSummary
	if err := c.doJSON(ctx, "GET", "/documents/", nil, &result); err != nil {
		return nil, wrapError(err, "ListDocuments")
	}

	return result, nil
}

// GetDocument retrieves the full state of a document version: paragraphs,
// comments and version metadata. A cache-busting timestamp query is
// attached so intermediaries never serve a stale snapshot.
func (c *Client) GetDocument(ctx context.Context, id int) (*Document, error) {
	query := url.Values{}
	query.Set("t", strconv.FormatInt(time.Now().UnixMilli(), 10))

	fullURL, err := c.buildURL(fmt.Sprintf("/document/%d/", id), query)
	if err != nil {
		return nil, wrapError(err, "GetDocument")
	}

	var result Document
	if err := c.doJSONWithURL(ctx, "GET", fullURL, nil, &result); err != nil {
		return nil, wrapError(err, "GetDocument")
	}
	if result.DocumentID == 0 {
		result.DocumentID = id
	}

	return &result, nil
}

// GetImage retrieves the raw bytes of an embedded document image along
// with its content type.
func (c *Client) GetImage(ctx context.Context, imageID int) ([]byte, string, error) {
	fullURL, err := c.buildURL(fmt.Sprintf("/image/%d/", imageID), nil)
	if err != nil {
		return nil, "", wrapError(err, "GetImage")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", fullURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("GetImage: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("GetImage: do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := readAllBody(resp)
	if err != nil {
		return nil, "", wrapError(err, "GetImage")
	}

	return data, resp.Header.Get("Content-Type"), nil
}
