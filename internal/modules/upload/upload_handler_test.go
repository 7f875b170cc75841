package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type fakeStore struct {
	got         []byte
	contentType string
	err         error
}

func (f *fakeStore) Upload(ctx context.Context, contentType string, r io.Reader, size int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.got, f.contentType = b, contentType
	return "https://cdn.example/abc.png", nil
}

func multipartBody(t *testing.T, field, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="photo.png"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	part.Write(data)
	w.Close()
	return body, w.FormDataContentType()
}

func doUpload(t *testing.T, h *Handler, field, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, field, contentType, []byte("\x89PNG fake"))
	req := httptest.NewRequest(http.MethodPost, "/uploads", body)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.Set("userID", "u1")
	if err := h.UploadImage(c); err != nil {
		t.Fatalf("UploadImage returned error: %v", err)
	}
	return rec
}

func TestUploadImage(t *testing.T) {
	store := &fakeStore{}
	rec := doUpload(t, NewHandler(store, zap.NewNop()), "image", "image/png")

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d; want 201 (%s)", rec.Code, rec.Body.String())
	}
	var out map[string]string
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out["url"] != "https://cdn.example/abc.png" {
		t.Errorf("url = %q", out["url"])
	}
	if store.contentType != "image/png" || string(store.got) != "\x89PNG fake" {
		t.Errorf("store got %q as %s", store.got, store.contentType)
	}
}

func TestUploadImageRejects(t *testing.T) {
	cases := []struct {
		name        string
		field       string
		contentType string
		storeErr    error
		want        int
	}{
		{"missing field", "file", "image/png", nil, http.StatusBadRequest},
		{"not an image", "image", "application/pdf", nil, http.StatusBadRequest},
		{"store down", "image", "image/png", errors.New("connection refused"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doUpload(t, NewHandler(&fakeStore{err: tc.storeErr}, zap.NewNop()), tc.field, tc.contentType)
			if rec.Code != tc.want {
				t.Errorf("status = %d; want %d", rec.Code, tc.want)
			}
		})
	}
}
