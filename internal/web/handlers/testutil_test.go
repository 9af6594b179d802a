package handlers

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/photo-timeline/internal/database"
	"github.com/kozaktomas/photo-timeline/internal/database/postgres"
	"github.com/kozaktomas/photo-timeline/internal/ingest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// requestWithChiParams creates a request with chi URL parameters.
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// multipartUpload builds a multipart body with a single "file" part carrying
// the given content type.
func multipartUpload(t *testing.T, content []byte, contentType string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="photo.jpg"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("failed to write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func uploadRequest(t *testing.T, groupID string, content []byte, contentType string) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()
	body, formType := multipartUpload(t, content, contentType)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/groups/"+groupID+"/photos", body)
	req.Header.Set("Content-Type", formType)
	req.Header.Set("X-Uploader-ID", "user-1")
	req = requestWithChiParams(req, map[string]string{"groupID": groupID})
	return httptest.NewRecorder(), req
}

type fakeIngestor struct {
	result *ingest.Result
	err    error
	mime   string
}

func (f *fakeIngestor) IngestPhoto(ctx context.Context, groupID, uploaderID string, r io.Reader, declaredMime string) (*ingest.Result, error) {
	f.mime = declaredMime
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeRepo struct {
	photos   map[uuid.UUID]*database.Photo
	grouped  []database.Photo
	meetings []database.Meeting
}

func (f *fakeRepo) GetPhoto(ctx context.Context, id uuid.UUID) (*database.Photo, error) {
	p, ok := f.photos[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) ListGroupPhotosOrdered(ctx context.Context, groupID string) ([]database.Photo, error) {
	return f.grouped, nil
}

func (f *fakeRepo) ListGroupMeetings(ctx context.Context, groupID string) ([]database.Meeting, error) {
	return f.meetings, nil
}
