package storage

import (
	"context"
	"io"
)

// SavedFile describes a file persisted to local storage.
type SavedFile struct {
	Path      string
	SizeBytes int64
	MimeType  string
}

// LocalStore persists uploaded files on the node running the API.
type LocalStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (SavedFile, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Remove(path string) error
}

// RemoteObject identifies a file mirrored to remote media storage.
type RemoteObject struct {
	URL      string
	PublicID string
}

// RemoteStore mirrors local files to a remote media service.
type RemoteStore interface {
	Upload(ctx context.Context, localPath string) (RemoteObject, error)
	Delete(ctx context.Context, publicID string) error
}
