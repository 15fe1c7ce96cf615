package ai_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mangrovewatch/mangrove/internal/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestImageFetcherFetch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		header   string
		body     []byte
		maxBytes int64
		wantType string
		wantErr  error
	}{
		{
			name:     "png body",
			status:   http.StatusOK,
			body:     pngHeader,
			maxBytes: 1024,
			wantType: "image/png",
		},
		{
			name:     "unknown binary trusts declared image type",
			status:   http.StatusOK,
			header:   "image/heic",
			body:     []byte{0x00, 0x00, 0x00, 0x18, 0x66, 0x74, 0x79, 0x70, 0x68, 0x65, 0x69, 0x63},
			maxBytes: 1024,
			wantType: "image/heic",
		},
		{
			name:     "html declared as image",
			status:   http.StatusOK,
			header:   "image/jpeg",
			body:     []byte("<html><body>not found</body></html>"),
			maxBytes: 1024,
			wantErr:  ai.ErrNotAnImage,
		},
		{
			name:     "empty body",
			status:   http.StatusOK,
			header:   "image/jpeg",
			maxBytes: 1024,
			wantErr:  ai.ErrNotAnImage,
		},
		{
			name:     "body over limit",
			status:   http.StatusOK,
			body:     append(bytes.Clone(pngHeader), bytes.Repeat([]byte{0}, 64)...),
			maxBytes: 32,
			wantErr:  ai.ErrImageTooLarge,
		},
		{
			name:     "missing image",
			status:   http.StatusNotFound,
			body:     []byte("gone"),
			maxBytes: 1024,
			wantErr:  ai.ErrImageFetch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if tt.header != "" {
					w.Header().Set("Content-Type", tt.header)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write(tt.body)
			}))
			t.Cleanup(server.Close)

			fetcher := ai.NewImageFetcher(server.Client(), tt.maxBytes)
			image, err := fetcher.Fetch(t.Context(), server.URL+"/photo")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, image)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantType, image.MIMEType)
			assert.Equal(t, tt.body, image.Data)
		})
	}
}

func TestImageFetcherRejectsUnsupportedURL(t *testing.T) {
	t.Parallel()

	fetcher := ai.NewImageFetcher(nil, 0)

	for _, rawURL := range []string{"", "gs://bucket/photo.jpg", "file:///etc/passwd", "/relative/photo.jpg"} {
		_, err := fetcher.Fetch(t.Context(), rawURL)
		require.ErrorIs(t, err, ai.ErrImageFetch, rawURL)
	}
}

func TestClassifyErrorKeepsImageFetchErrors(t *testing.T) {
	t.Parallel()

	err := ai.ClassifyError(ai.ErrImageTooLarge)
	require.ErrorIs(t, err, ai.ErrImageFetch)
	assert.NotErrorIs(t, err, ai.ErrNetwork)
}
