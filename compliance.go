package redline

import (
	"context"
)

// CheckCompliance scores how well a paragraph's current (possibly
// unsaved) text addresses each comment attached to it. The response also
// carries an aggregate verdict and, when the backend decides every
// commented paragraph has been addressed, a version-promotion signal.
func (c *Client) CheckCompliance(ctx context.Context, documentID, paragraphID int, currentText string) (*ComplianceCheck, error) {
	payload := map[string]interface{}{
		"document_id":  documentID,
		"paragraph_id": paragraphID,
		"current_text": currentText,
	}

	var result ComplianceCheck
	if err := c.doJSON(ctx, "POST", "/ml/check-compliance-realtime/", payload, &result); err != nil {
		return nil, wrapError(err, "CheckCompliance")
	}
	if result.ParagraphID == 0 {
		result.ParagraphID = paragraphID
	}

	return &result, nil
}

// CancelScheduledDeletion keeps a comment that the backend had scheduled
// for automatic removal.
func (c *Client) CancelScheduledDeletion(ctx context.Context, documentID, commentID int) (*CancelDeletionResult, error) {
	payload := map[string]interface{}{
		"document_id": documentID,
		"comment_id":  commentID,
	}

	var result CancelDeletionResult
	if err := c.doJSON(ctx, "POST", "/ml/cancel-scheduled-deletion/", payload, &result); err != nil {
		return nil, wrapError(err, "CancelScheduledDeletion")
	}

	return &result, nil
}
