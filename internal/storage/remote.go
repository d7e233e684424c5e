package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// MediaStore implements RemoteStore against the media service's HTTP API.
type MediaStore struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewMediaStore(baseURL, apiKey string) *MediaStore {
	return &MediaStore{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Upload pushes the file at localPath to the media service and returns the
// public URL and identifier assigned to it.
func (s *MediaStore) Upload(ctx context.Context, localPath string) (RemoteObject, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return RemoteObject{}, fmt.Errorf("open local file: %w", err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", filepath.Base(localPath))
	if err != nil {
		return RemoteObject{}, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return RemoteObject{}, fmt.Errorf("read local file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return RemoteObject{}, fmt.Errorf("finish upload form: %w", err)
	}

	url := s.baseURL + "/v1/media"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return RemoteObject{}, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return RemoteObject{}, fmt.Errorf("upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return RemoteObject{}, fmt.Errorf("upload failed (%d): %s", resp.StatusCode, string(b))
	}

	var out struct {
		URL      string `json:"url"`
		PublicID string `json:"public_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return RemoteObject{}, fmt.Errorf("decode upload response: %w", err)
	}
	return RemoteObject{URL: out.URL, PublicID: out.PublicID}, nil
}

// Delete removes a previously uploaded object by its public identifier.
func (s *MediaStore) Delete(ctx context.Context, publicID string) error {
	url := s.baseURL + "/v1/media/" + publicID
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete remote object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete failed (%d)", resp.StatusCode)
	}
	return nil
}
