package s3_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sagarc03/satchel"
	"github.com/sagarc03/satchel/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	minioUser     = "satchel"
	minioPassword = "satchel-secret"
	testBucket    = "downloads"
)

func setupMinio(t *testing.T) (*minio.Client, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping minio integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     minioUser,
				"MINIO_ROOT_PASSWORD": minioPassword,
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate minio container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4(minioUser, minioPassword, ""),
	})
	require.NoError(t, err)

	require.NoError(t, client.MakeBucket(ctx, testBucket, minio.MakeBucketOptions{}))

	return client, endpoint
}

func putObject(t *testing.T, client *minio.Client, key, content, contentType string) {
	t.Helper()

	_, err := client.PutObject(context.Background(), testBucket, key,
		bytes.NewReader([]byte(content)), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType})
	require.NoError(t, err)
}

func TestTree_Integration(t *testing.T) {
	client, endpoint := setupMinio(t)
	ctx := context.Background()

	putObject(t, client, "tenant/docs/report.pdf", "%PDF-1.4", "application/pdf")
	putObject(t, client, "tenant/docs/b/c.txt", "c", "")
	putObject(t, client, "tenant/docs/empty/", "", "")
	putObject(t, client, "other/x.txt", "x", "")

	tree, err := s3.New(ctx, s3.Config{
		Endpoint:  endpoint,
		AccessKey: minioUser,
		SecretKey: minioPassword,
		Bucket:    testBucket,
		Prefix:    "tenant",
	})
	require.NoError(t, err)

	t.Run("stat file", func(t *testing.T) {
		entry, err := tree.Stat(ctx, "docs/report.pdf")

		assert.NoError(t, err)
		assert.Equal(t, "report.pdf", entry.Name)
		assert.Equal(t, int64(8), entry.Size)
		assert.False(t, entry.IsDir)
	})

	t.Run("stat implicit directory", func(t *testing.T) {
		entry, err := tree.Stat(ctx, "docs/b")

		assert.NoError(t, err)
		assert.True(t, entry.IsDir)
	})

	t.Run("stat missing", func(t *testing.T) {
		_, err := tree.Stat(ctx, "docs/missing")

		assert.ErrorIs(t, err, satchel.ErrNotFound)
	})

	t.Run("list", func(t *testing.T) {
		entries, err := tree.List(ctx, "docs")

		assert.NoError(t, err)
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Path)
		}
		assert.Equal(t, []string{"docs/b", "docs/empty", "docs/report.pdf"}, names)
	})

	t.Run("list marker only directory", func(t *testing.T) {
		entries, err := tree.List(ctx, "docs/empty")

		assert.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("readable and mime type", func(t *testing.T) {
		assert.True(t, tree.Readable(ctx, "docs/report.pdf"))
		assert.False(t, tree.Readable(ctx, "docs/missing"))
		assert.Equal(t, "application/pdf", tree.MimeType(ctx, "docs/report.pdf"))
	})

	t.Run("open and send", func(t *testing.T) {
		rc, err := tree.Open(ctx, "docs/b/c.txt")
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		assert.NoError(t, err)
		assert.Equal(t, "c", string(data))
		assert.NoError(t, rc.Close())

		var buf bytes.Buffer
		n, err := tree.Send(ctx, "docs/report.pdf", &buf)
		assert.NoError(t, err)
		assert.Equal(t, int64(8), n)

		_, err = tree.Open(ctx, "docs/missing")
		assert.ErrorIs(t, err, satchel.ErrNotFound)
	})
}

func TestNew_MissingBucket(t *testing.T) {
	_, endpoint := setupMinio(t)

	_, err := s3.New(context.Background(), s3.Config{
		Endpoint:  endpoint,
		AccessKey: minioUser,
		SecretKey: minioPassword,
		Bucket:    "nope",
	})

	assert.Error(t, err)
}
