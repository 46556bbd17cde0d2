package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/kinveysync/internal/filex"
)

// Upload stores a local file: upload <path> [mime-type].
func (a *App) Upload(ctx context.Context, args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return usage("upload <path> [mime-type]")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	mimeType := mime.TypeByExtension(filepath.Ext(args[0]))
	if len(args) == 2 {
		mimeType = args[1]
	}
	uploaded, err := a.client.Files().Upload(ctx, filepath.Base(args[0]), mimeType, f, info.Size())
	if err != nil {
		return err
	}
	a.printf("Uploaded %s as %s (%d bytes)\n", uploaded.Filename, uploaded.ID, uploaded.Size)
	return nil
}

// Download writes a stored file to a local path: download <id> <path>.
func (a *App) Download(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("download <id> <path>")
	}
	if _, err := filex.EnsureParentDir(args[1]); err != nil {
		return err
	}
	f, err := os.Create(args[1])
	if err != nil {
		return err
	}
	n, err := a.client.Files().Download(ctx, args[0], f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(args[1])
		return fmt.Errorf("download %s: %w", args[0], err)
	}
	a.printf("Wrote %d bytes to %s\n", n, args[1])
	return nil
}
