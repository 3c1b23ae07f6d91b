package redline

import (
	"context"
	"fmt"
)

// ListVersions retrieves the version history of a document chain.
func (c *Client) ListVersions(ctx context.Context, documentID int) (*VersionList, error) {
	var result VersionList
	path := fmt.Sprintf("/document/%d/versions/", documentID)
	if err := c.doJSON(ctx, "GET", path, nil, &result); err != nil {
		return nil, wrapError(err, "ListVersions")
	}

	return &result, nil
}

// CreateVersion snapshots the current document into a new version with
// optional free-text notes. Only allowed on the editor surface.
func (c *Client) CreateVersion(ctx context.Context, documentID int, notes string) (*CreateVersionResult, error) {
	if err := c.requireEdit("CreateVersion"); err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"version_notes": notes,
	}

	var result CreateVersionResult
	path := fmt.Sprintf("/document/%d/create-version/", documentID)
	if err := c.doJSON(ctx, "POST", path, payload, &result); err != nil {
		return nil, wrapError(err, "CreateVersion")
	}

	return &result, nil
}
