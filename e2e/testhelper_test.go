package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/makeasinger/autoedit/internal/assets"
	"github.com/makeasinger/autoedit/internal/auth"
	"github.com/makeasinger/autoedit/internal/client"
	"github.com/makeasinger/autoedit/internal/config"
	"github.com/makeasinger/autoedit/internal/ffmpeg"
	"github.com/makeasinger/autoedit/internal/handler"
	"github.com/makeasinger/autoedit/internal/history"
	"github.com/makeasinger/autoedit/internal/middleware"
	"github.com/makeasinger/autoedit/internal/service"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing
type testApp struct {
	app     *fiber.App
	jobs    *service.JobService
	history *history.Store
	queue   *recordingQueue
}

// recordingQueue stands in for the asynq client; nothing consumes the tasks.
type recordingQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (q *recordingQueue) Enqueue(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{Type: task.Type(), Queue: service.QueueEdit}, nil
}

func (q *recordingQueue) count(taskType string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, t := range q.tasks {
		if t.Type() == taskType {
			n++
		}
	}
	return n
}

// stubProber reports every upload as a 30 second 1080p clip.
type stubProber struct{}

func (stubProber) ProbeVideo(_ context.Context, path string) (*ffmpeg.VideoInfo, error) {
	return &ffmpeg.VideoInfo{FilePath: path, DurationSeconds: 30, Width: 1920, Height: 1080, HasAudio: true}, nil
}

// setupApp builds the same routes as the server over in-memory Redis, a
// temporary SQLite file and local blob storage. No worker runs.
func setupApp(t *testing.T) *testApp {
	t.Helper()
	dir := t.TempDir()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	assetStore, err := assets.Open(filepath.Join(dir, "assets.db"))
	if err != nil {
		t.Fatalf("failed to open asset store: %v", err)
	}
	t.Cleanup(func() { assetStore.Close() })

	historyStore := history.NewStore(redisClient)
	storage, err := client.NewLocalStorage(filepath.Join(dir, "blobs"), "")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	validate := validator.New()
	queue := &recordingQueue{}

	// Services
	jobService := service.NewJobService(redisClient, queue, nil)
	assetService := service.NewAssetService(assetStore, historyStore, storage, stubProber{}, filepath.Join(dir, "tmp"))

	// Auth middleware: legacy HMAC only
	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)

	routes := &handler.Routes{
		Auth:        authMiddleware.Authenticate(),
		RateLimiter: middleware.NewRateLimiter(redisClient, zerolog.Nop()),
		// Use very high rate limits so tests don't get blocked
		Limits: config.RateLimitConfig{
			SubmitPerHour: 10000,
			BatchPerHour:  10000,
			UploadPerHour: 10000,
		},
		Jobs:    handler.NewJobHandler(jobService, assetService, validate),
		Batches: handler.NewBatchHandler(jobService, assetService, validate),
		Assets:  handler.NewAssetHandler(assetService, validate),
		Health: handler.NewHealthHandler(
			map[string]handler.Pinger{
				"redis":    handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
				"database": assetStore,
			},
			map[string]bool{"groq": false, "r2": false, "auth": true},
		),
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024,
	})
	routes.Register(app)

	return &testApp{
		app:     app,
		jobs:    jobService,
		history: historyStore,
		queue:   queue,
	}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	signed, err := auth.NewLegacyToken("test-user-123", "test@example.com", testJWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// doUpload posts a multipart upload with the given file part content type.
func doUpload(t *testing.T, app *fiber.App, filename, contentType string, data []byte, transcript string) (*http.Response, error) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("failed to create form part: %v", err)
	}
	part.Write(data)
	if transcript != "" {
		w.WriteField("transcript", transcript)
	}
	w.Close()

	req, err := http.NewRequest(http.MethodPost, "/api/assets/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+generateToken(t))
	return app.Test(req, -1)
}

// registerAsset registers an asset over the API and returns its id.
func registerAsset(t *testing.T, app *fiber.App, id string) string {
	t.Helper()
	body := `{"id":"` + id + `","sourceRef":"/media/` + id + `.mp4","durationSeconds":60,"transcript":"so um today we talk about cats"}`
	resp, err := doAuthRequest(t, app, http.MethodPost, "/api/assets", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("failed to register asset %s: status %d: %s", id, resp.StatusCode, readBody(t, resp))
	}
	result := parseJSON(t, resp)
	return result["id"].(string)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// errorCode extracts error.code from an error response.
func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	body := parseJSON(t, resp)
	detail, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected 'error' object in response, got %v", body)
	}
	code, _ := detail["code"].(string)
	return code
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
