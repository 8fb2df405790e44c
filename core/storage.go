package core

import (
	"context"
	"io"
)

type (
	// StoredFile identifies an uploaded document and where it can be fetched.
	StoredFile struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}

	// FileStorage is any service that can persist uploaded documents
	// (owner photos, signatures...) and serve them back by URL.
	FileStorage interface {
		Save(ctx context.Context, filename, contentType string, r io.Reader) (StoredFile, error)
		Delete(ctx context.Context, id string) error
	}
)
