package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	imagePrefix    = "letter-images"
	maxImageBytes  = 20 << 20
	presignExpiry  = 7 * 24 * time.Hour
	downloadWindow = 60 * time.Second
)

// ImageArchiver downloads an image from a provider URL and re-hosts it in
// object storage under letter-images/{userID}/{uuid}.png.
type ImageArchiver struct {
	store      ObjectStore
	httpClient *http.Client
}

// NewImageArchiver builds an archiver over the given object store.
func NewImageArchiver(store ObjectStore) *ImageArchiver {
	return &ImageArchiver{
		store: store,
		httpClient: &http.Client{
			Timeout: downloadWindow,
		},
	}
}

// Archive fetches srcURL and stores a copy, returning a URL served from our
// bucket. Callers treat failures as non-fatal and keep the original URL.
func (a *ImageArchiver) Archive(ctx context.Context, userID, srcURL string) (string, error) {
	srcURL = strings.TrimSpace(srcURL)
	if srcURL == "" {
		return "", fmt.Errorf("empty image url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download image: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(body) > maxImageBytes {
		return "", fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	key := path.Join(imagePrefix, userID, uuid.NewString()+".png")
	if err := a.store.Put(ctx, key, bytes.NewReader(body), int64(len(body)), contentType); err != nil {
		return "", err
	}
	return a.store.PresignGet(ctx, key, presignExpiry)
}
