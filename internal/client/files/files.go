// Package files stores binary content next to regular entities. File
// metadata is an entity of the _blob collection; the backend answers a
// create with a presigned upload URL, and the content itself never passes
// through the appdata API.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/kinveysync/internal/client/datastore"
	"github.com/dmitrijs2005/kinveysync/internal/client/models"
	"github.com/dmitrijs2005/kinveysync/internal/client/network"
	"github.com/dmitrijs2005/kinveysync/internal/common"
	"github.com/dmitrijs2005/kinveysync/internal/netx"
)

const fieldMimeType = "mimeType"

var ErrNoTransferURL = errors.New("backend returned no transfer url")

type File struct {
	ID          string
	Filename    string
	MimeType    string
	Size        int64
	DownloadURL string
}

func fileFrom(e models.Entity) *File {
	f := &File{ID: e.ID()}
	f.Filename, _ = e[common.FieldFilename].(string)
	f.MimeType, _ = e[fieldMimeType].(string)
	f.DownloadURL, _ = e[common.FieldDownloadURL].(string)
	if n, ok := e[common.FieldSize].(float64); ok {
		f.Size = int64(n)
	}
	return f
}

type Store struct {
	net    network.Manager
	client *http.Client
}

type Option func(*Store)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.client = c }
}

func New(net network.Manager, opts ...Option) *Store {
	s := &Store{net: net, client: &http.Client{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Upload records the file metadata and sends size bytes from r to the
// upload URL the backend hands out.
func (s *Store) Upload(ctx context.Context, name, mimeType string, r io.Reader, size int64) (*File, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: file name is empty", datastore.ErrInvalidArgument)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	meta := models.Entity{
		common.FieldFilename: name,
		fieldMimeType:        mimeType,
		common.FieldSize:     size,
	}
	created, err := s.net.Create(ctx, common.BlobCollection, meta)
	if err != nil {
		return nil, fmt.Errorf("failed to create file metadata: %w", err)
	}
	uploadURL, _ := created[common.FieldUploadURL].(string)
	if uploadURL == "" {
		return nil, fmt.Errorf("upload %s: %w", name, ErrNoTransferURL)
	}

	if err := netx.PutPresigned(ctx, s.client, uploadURL, mimeType, r, size); err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	return fileFrom(created), nil
}

// Get returns the metadata of id along with a fresh download URL.
func (s *Store) Get(ctx context.Context, id string) (*File, error) {
	e, err := s.net.GetByID(ctx, common.BlobCollection, id)
	if errors.Is(err, network.ErrNotFound) {
		return nil, fmt.Errorf("file %s: %w", id, datastore.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", id, err)
	}
	return fileFrom(e), nil
}

func (s *Store) DownloadURL(ctx context.Context, id string) (string, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if f.DownloadURL == "" {
		return "", fmt.Errorf("download %s: %w", id, ErrNoTransferURL)
	}
	return f.DownloadURL, nil
}

// Download copies the content of id to w and returns the byte count.
func (s *Store) Download(ctx context.Context, id string, w io.Writer) (int64, error) {
	u, err := s.DownloadURL(ctx, id)
	if err != nil {
		return 0, err
	}
	n, err := netx.GetPresigned(ctx, s.client, u, w)
	if err != nil {
		return n, fmt.Errorf("download %s: %w", id, err)
	}
	return n, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.net.Delete(ctx, common.BlobCollection, id); err != nil {
		if errors.Is(err, network.ErrNotFound) {
			return fmt.Errorf("file %s: %w", id, datastore.ErrNotFound)
		}
		return fmt.Errorf("failed to delete file %s: %w", id, err)
	}
	return nil
}
