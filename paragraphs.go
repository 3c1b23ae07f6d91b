package redline

import (
	"context"
	"fmt"
)

// EditParagraph replaces the text of a paragraph. The response may carry
// a version-promotion signal when the backend rolled the document over to
// a new version; callers must then continue under EditResult.NewVersionID.
func (c *Client) EditParagraph(ctx context.Context, documentID, paragraphID int, text string) (*EditResult, error) {
	if err := c.requireEdit("EditParagraph"); err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"document_id":  documentID,
		"paragraph_id": paragraphID,
		"text":         text,
	}

	var result EditResult
	if err := c.doJSON(ctx, "PUT", "/edit_paragraph/", payload, &result); err != nil {
		return nil, wrapError(err, "EditParagraph")
	}

	return &result, nil
}

// AddParagraph inserts a paragraph. position is the 1-based id the new
// paragraph should take, shifting existing paragraphs at or after it;
// position 0 appends at the end.
func (c *Client) AddParagraph(ctx context.Context, documentID int, text string, position int) (*AddParagraphResult, error) {
	if err := c.requireEdit("AddParagraph"); err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"document_id": documentID,
		"text":        text,
	}
	if position > 0 {
		payload["position"] = position
	}

	var result AddParagraphResult
	if err := c.doJSON(ctx, "POST", "/add_paragraph/", payload, &result); err != nil {
		return nil, wrapError(err, "AddParagraph")
	}

	return &result, nil
}

// DeleteParagraph removes a paragraph and, server-side, every comment
// attached to it. The backend refuses to delete the last remaining
// paragraph of a document.
func (c *Client) DeleteParagraph(ctx context.Context, documentID, paragraphID int) (*DeleteParagraphResult, error) {
	if err := c.requireEdit("DeleteParagraph"); err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"document_id":  documentID,
		"paragraph_id": paragraphID,
	}

	var result DeleteParagraphResult
	if err := c.doJSON(ctx, "DELETE", "/delete_paragraph/", payload, &result); err != nil {
		return nil, wrapError(err, "DeleteParagraph")
	}

	return &result, nil
}

// requireEdit rejects editing operations on the commenter surface before
// any network call.
func (c *Client) requireEdit(op string) error {
	if !c.mode.Capabilities().Edit {
		return fmt.Errorf("%s: %w", op, ErrReadOnly)
	}
	return nil
}
