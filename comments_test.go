package redline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_AddComment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/commenter/api/add_comment/" {
			t.Errorf("path = %v, want /commenter/api/add_comment/", r.URL.Path)
		}
		var payload map[string]interface{}
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["author"] != "Ana" || payload["text"] != "tighten this up" {
			t.Errorf("payload = %v, want author Ana with text", payload)
		}
		w.Write([]byte(`{
			"id": 4,
			"author": "Ana",
			"text": "tighten this up",
			"paragraph_id": 2,
			"created_at": "2024-03-01T10:00:00Z"
		}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, ModeCommenter)
	comment, err := c.AddComment(context.Background(), 1, 2, "Ana", "tighten this up")
	if err != nil {
		t.Fatalf("AddComment failed: %v", err)
	}
	if comment.ID != 4 {
		t.Errorf("comment ID = %d, want 4", comment.ID)
	}
	if comment.ParagraphID != 2 {
		t.Errorf("paragraph ID = %d, want 2", comment.ParagraphID)
	}
}

func TestClient_DeleteComment(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != "DELETE" {
				t.Errorf("method = %v, want DELETE", r.Method)
			}
			var payload map[string]interface{}
			json.NewDecoder(r.Body).Decode(&payload)
			if payload["comment_id"].(float64) != 4 {
				t.Errorf("comment_id = %v, want 4", payload["comment_id"])
			}
			w.Write([]byte(`{"message": "Comment deleted successfully", "comment_id": 4}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, ModeEditor)
		if err := c.DeleteComment(context.Background(), 1, 4); err != nil {
			t.Fatalf("DeleteComment failed: %v", err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": "Comment not found"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, ModeEditor)
		err := c.DeleteComment(context.Background(), 1, 99)
		if !IsNotFound(err) {
			t.Errorf("IsNotFound(err) = false, want true (err = %v)", err)
		}
	})
}
