package e2e

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/makeasinger/autoedit/internal/model"
)

func TestAssetRegister_Success(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/assets",
		`{"sourceRef":"/media/talk.mp4","durationSeconds":95.5,"width":1280,"height":720}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusCreated)

	result := parseJSON(t, resp)
	if result["id"] == nil || result["id"] == "" {
		t.Error("expected a generated 'id'")
	}
	if result["sourceRef"] != "/media/talk.mp4" {
		t.Errorf("expected sourceRef '/media/talk.mp4', got %v", result["sourceRef"])
	}
	if result["status"] != "ready" {
		t.Errorf("expected status 'ready', got %v", result["status"])
	}
}

func TestAssetRegister_MissingSourceRef(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/assets", `{"durationSeconds":10}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestAssetRegister_NegativeDuration(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/assets", `{"sourceRef":"/media/a.mp4","durationSeconds":-1}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestAssetGet(t *testing.T) {
	ta := setupApp(t)
	registerAsset(t, ta.app, "clip-1")

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/assets/clip-1", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["transcript"] != "so um today we talk about cats" {
		t.Errorf("expected transcript to round trip, got %v", result["transcript"])
	}
}

func TestAssetGet_NotFound(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/assets/missing", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)
}

func TestAssetUpload_Success(t *testing.T) {
	ta := setupApp(t)

	resp, err := doUpload(t, ta.app, "take1.mp4", "video/mp4", []byte("not really a movie"), "hello world")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusCreated)

	result := parseJSON(t, resp)
	id, _ := result["id"].(string)
	if id == "" {
		t.Fatal("expected 'id' in response")
	}
	if result["sourceRef"] != "uploads/"+id+"/source.mp4" {
		t.Errorf("unexpected sourceRef %v", result["sourceRef"])
	}
	if result["durationSeconds"] != float64(30) {
		t.Errorf("expected probed duration 30, got %v", result["durationSeconds"])
	}
	if result["transcript"] != "hello world" {
		t.Errorf("expected transcript 'hello world', got %v", result["transcript"])
	}
}

func TestAssetUpload_WrongContentType(t *testing.T) {
	ta := setupApp(t)

	resp, err := doUpload(t, ta.app, "notes.txt", "text/plain", []byte("hello"), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnsupportedMediaType)
	if code := errorCode(t, resp); code != "UNSUPPORTED_MEDIA" {
		t.Errorf("expected UNSUPPORTED_MEDIA, got %s", code)
	}
}

func TestAssetUpload_TranscriptTooLong(t *testing.T) {
	ta := setupApp(t)

	resp, err := doUpload(t, ta.app, "take1.mp4", "video/mp4", []byte("x"), strings.Repeat("a", 200001))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestAssetUpload_NoFile(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/assets/upload", `{"transcript":"x"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestAssetVersionsAndRestore(t *testing.T) {
	ta := setupApp(t)
	registerAsset(t, ta.app, "clip-1")

	ctx := context.Background()
	for _, ref := range []string{"renders/clip-1/a.mp4", "renders/clip-1/b.mp4"} {
		err := ta.history.SaveVersion(ctx, &model.EditVersion{
			ID:           strings.TrimSuffix(strings.TrimPrefix(ref, "renders/clip-1/"), ".mp4"),
			AssetID:      "clip-1",
			RenderedRef:  ref,
			EditsApplied: []string{"silence_removal"},
		})
		if err != nil {
			t.Fatalf("failed to save version: %v", err)
		}
	}

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/assets/clip-1/versions", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	versions, _ := result["versions"].([]interface{})
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %v", result["versions"])
	}
	newest := versions[0].(map[string]interface{})
	if newest["id"] != "b" {
		t.Errorf("expected newest version 'b' first, got %v", newest["id"])
	}

	resp, err = doAuthRequest(t, ta.app, http.MethodPost, "/api/assets/clip-1/versions/a/restore", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	restored := parseJSON(t, resp)
	if restored["sourceRef"] != "renders/clip-1/a.mp4" {
		t.Errorf("expected sourceRef of version a, got %v", restored["sourceRef"])
	}

	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/assets/clip-1", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if asset := parseJSON(t, resp); asset["sourceRef"] != "renders/clip-1/a.mp4" {
		t.Errorf("expected asset to point at version a, got %v", asset["sourceRef"])
	}
}

func TestAssetRestore_UnknownVersion(t *testing.T) {
	ta := setupApp(t)
	registerAsset(t, ta.app, "clip-1")

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/assets/clip-1/versions/nope/restore", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)
}

func TestAssetHistory(t *testing.T) {
	ta := setupApp(t)
	registerAsset(t, ta.app, "clip-1")

	err := ta.history.AppendHistory(context.Background(), "clip-1", []model.EditHistoryEntry{
		{CutTimestamp: 3.5, DurationCut: 1.2, AppliedAt: time.Now().UTC()},
		{CutTimestamp: 10, DurationCut: 0.8, AppliedAt: time.Now().UTC()},
	})
	if err != nil {
		t.Fatalf("failed to append history: %v", err)
	}

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/assets/clip-1/history", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	entries, _ := result["entries"].([]interface{})
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %v", result["entries"])
	}
	first := entries[0].(map[string]interface{})
	if first["cutTimestamp"] != 3.5 {
		t.Errorf("expected oldest cut first, got %v", first["cutTimestamp"])
	}
}

func TestAssetHistory_UnknownAsset(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/assets/missing/history", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)
}
