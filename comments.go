package redline

import (
	"context"
)

// AddComment attaches a comment to a paragraph and returns the stored
// comment, including its server-assigned id.
func (c *Client) AddComment(ctx context.Context, documentID, paragraphID int, author, text string) (*Comment, error) {
	payload := map[string]interface{}{
		"document_id":  documentID,
		"paragraph_id": paragraphID,
		"author":       author,
		"text":         text,
	}

	var result Comment
	if err := c.doJSON(ctx, "POST", "/add_comment/", payload, &result); err != nil {
		return nil, wrapError(err, "AddComment")
	}

	return &result, nil
}

// DeleteComment removes a comment from a document.
func (c *Client) DeleteComment(ctx context.Context, documentID, commentID int) error {
	payload := map[string]interface{}{
		"document_id": documentID,
		"comment_id":  commentID,
	}

	if err := c.doJSON(ctx, "DELETE", "/delete_comment/", payload, nil); err != nil {
		return wrapError(err, "DeleteComment")
	}

	return nil
}
