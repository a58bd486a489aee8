package storage

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisesdn-io/wisesdn/pkg/options"
)

func TestGeneratePresignedURL(t *testing.T) {
	opts := options.NewS3Options()
	opts.Endpoint = "minio.local:9000"
	opts.AccessKeyID = "access"
	opts.SecretAccessKey = "secret"
	opts.UseSSL = false

	p, err := NewMinIOProvider(opts)
	require.NoError(t, err)

	// Region is fixed, so presigning does not contact the store.
	raw, err := p.GeneratePresignedURL(context.Background(), "esp32/firmware-1.2.0.bin", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, "minio.local:9000", u.Host)
	assert.Equal(t, "/firmware/esp32/firmware-1.2.0.bin", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	assert.Contains(t, u.Query().Get("response-content-disposition"), "firmware-1.2.0.bin")
}
