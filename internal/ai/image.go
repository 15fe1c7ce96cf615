package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultMaxImageBytes bounds image downloads when no limit is configured.
	DefaultMaxImageBytes int64 = 10 << 20
	// DefaultImageTimeout bounds a single image download when no timeout is configured.
	DefaultImageTimeout = 15 * time.Second
)

var (
	// ErrImageFetch indicates the submission image could not be downloaded.
	ErrImageFetch = errors.New("image download failed")
	// ErrImageTooLarge indicates the submission image exceeds the download limit.
	ErrImageTooLarge = fmt.Errorf("%w: image too large", ErrImageFetch)
	// ErrNotAnImage indicates the downloaded content is not an image.
	ErrNotAnImage = fmt.Errorf("%w: content is not an image", ErrImageFetch)
)

// Image holds downloaded image bytes and their detected media type.
type Image struct {
	Data     []byte
	MIMEType string
}

// ImageFetcher downloads submission images with a bounded body size.
type ImageFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewImageFetcher creates a fetcher. A nil client gets a client with DefaultImageTimeout.
func NewImageFetcher(client *http.Client, maxBytes int64) *ImageFetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultImageTimeout}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}

	return &ImageFetcher{client: client, maxBytes: maxBytes}
}

// Fetch downloads the image at rawURL.
func (f *ImageFetcher) Fetch(ctx context.Context, rawURL string) (*Image, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: unsupported image URL %q", ErrImageFetch, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageFetch, err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrImageFetch, resp.StatusCode)
	}

	if resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrImageTooLarge, resp.ContentLength, f.maxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageFetch, err)
	}

	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrImageTooLarge, f.maxBytes)
	}

	mimeType, ok := detectImageType(data, resp.Header.Get("Content-Type"))
	if !ok {
		return nil, ErrNotAnImage
	}

	return &Image{Data: data, MIMEType: mimeType}, nil
}

// detectImageType sniffs the body first. The declared header is only trusted
// for binary content the sniffer does not know, such as HEIC.
func detectImageType(data []byte, declared string) (string, bool) {
	if len(data) == 0 {
		return "", false
	}

	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed, true
	}
	if sniffed != "application/octet-stream" {
		return "", false
	}

	if declared, _, err := mime.ParseMediaType(declared); err == nil && strings.HasPrefix(declared, "image/") {
		return declared, true
	}

	return "", false
}
