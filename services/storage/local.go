package storagesvc

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/skedutech/portal/core"
)

// localService stores uploaded files on the local disk under MediaRoot and
// serves them under MediaBaseURL. Suitable for single-host deployments.
type localService struct {
	root    string
	baseURL string
}

var _ core.FileStorage = (*localService)(nil)

func NewLocalService(conf *core.Config) (*localService, error) {
	if err := os.MkdirAll(conf.MediaRoot, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating media root")
	}
	return &localService{
		root:    conf.MediaRoot,
		baseURL: strings.TrimSuffix(conf.MediaBaseURL, "/"),
	}, nil
}

func (svc *localService) Save(ctx context.Context, filename, contentType string, r io.Reader) (core.StoredFile, error) {
	id := uuid.New().String() + strings.ToLower(filepath.Ext(filename))

	dst, err := os.Create(filepath.Join(svc.root, id))
	if err != nil {
		return core.StoredFile{}, errors.Wrap(err, "creating media file")
	}
	defer func() { _ = dst.Close() }()

	if _, err = io.Copy(dst, r); err != nil {
		_ = os.Remove(dst.Name())
		return core.StoredFile{}, errors.Wrap(err, "writing media file")
	}

	return core.StoredFile{ID: id, URL: svc.baseURL + "/" + path.Clean(id)}, nil
}

func (svc *localService) Delete(ctx context.Context, id string) error {
	// refuse anything that escapes the media root
	id = filepath.Base(id)
	if err := os.Remove(filepath.Join(svc.root, id)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting media file")
	}
	return nil
}
