// Package netx moves content to and from presigned object storage URLs.
package netx

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody bounds how much of a failure response is quoted in errors.
const maxErrorBody = 4 << 10

func statusError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if len(b) == 0 {
		return fmt.Errorf("%s failed: %s", op, resp.Status)
	}
	return fmt.Errorf("%s failed: %s; body: %s", op, resp.Status, string(b))
}

// PutPresigned sends size bytes from r to url. contentType must match the
// type the URL was signed for, if any.
func PutPresigned(ctx context.Context, client *http.Client, url, contentType string, r io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, r)
	if err != nil {
		return err
	}
	req.ContentLength = size
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return statusError("upload", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// GetPresigned copies the object at url to w and returns the byte count.
func GetPresigned(ctx context.Context, client *http.Client, url string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, statusError("download", resp)
	}
	return io.Copy(w, resp.Body)
}
