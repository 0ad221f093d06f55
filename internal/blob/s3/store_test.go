package s3

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/gt2plink/internal/blob"
)

// mockRoundTripper keeps PUT bodies in memory keyed by "bucket/key".
type mockRoundTripper struct {
	mu      sync.Mutex
	objects map[string][]byte
	status  int
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	empty := io.NopCloser(bytes.NewReader(nil))
	if m.status != 0 {
		return &http.Response{StatusCode: m.status, Body: empty, Header: http.Header{}}, nil
	}
	if req.Method != http.MethodPut {
		return &http.Response{StatusCode: http.StatusNotImplemented, Body: empty, Header: http.Header{}}, nil
	}
	body, _ := io.ReadAll(req.Body)
	if strings.Contains(req.Header.Get("Content-Encoding"), "aws-chunked") {
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
	}
	m.mu.Lock()
	m.objects[strings.TrimPrefix(req.URL.Path, "/")] = body
	m.mu.Unlock()
	return &http.Response{StatusCode: http.StatusOK, Body: empty, Header: http.Header{"ETag": {"\"etag\""}}}, nil
}

// decodeChunked unwraps a single-chunk aws-chunked payload: <hex>\r\n<body>\r\n0\r\n...
func decodeChunked(b []byte) ([]byte, bool) {
	i := bytes.Index(b, []byte("\r\n"))
	if i < 0 {
		return nil, false
	}
	sz, err := strconv.ParseInt(string(bytes.SplitN(b[:i], []byte(";"), 2)[0]), 16, 64)
	if err != nil || int64(len(b)) < int64(i+2)+sz {
		return nil, false
	}
	return b[i+2 : int64(i+2)+sz], true
}

func newMockStore(t *testing.T, rt http.RoundTripper) *Store {
	t.Helper()
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	require.NoError(t, err)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
	})
	return &Store{client: client, bucket: "mock-bucket"}
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.ErrorContains(t, err, "bucket required")
}

func TestNew(t *testing.T) {
	s, err := New(context.Background(), Config{
		Bucket:          "b",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "id",
		SecretAccessKey: "secret",
		PathStyle:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, "b", s.Bucket())
	assert.NoError(t, s.Close())
}

func TestUploadFiles(t *testing.T) {
	rt := &mockRoundTripper{objects: map[string][]byte{}}
	s := newMockStore(t, rt)

	dir := t.TempDir()
	fam := filepath.Join(dir, "out.fam")
	bed := filepath.Join(dir, "out.bed")
	require.NoError(t, os.WriteFile(fam, []byte("S1 S1 0 0 2 -9\n"), 0o644))
	require.NoError(t, os.WriteFile(bed, []byte{0x6c, 0x1b, 0x01, 0x54}, 0o644))

	target := blob.Target{Scheme: blob.SchemeS3, Bucket: "mock-bucket", Prefix: "runs/s1"}
	urls, err := blob.UploadFiles(context.Background(), s, target, []string{fam, bed})
	require.NoError(t, err)
	assert.Equal(t, []string{"s3://mock-bucket/runs/s1/out.fam", "s3://mock-bucket/runs/s1/out.bed"}, urls)

	assert.Equal(t, []byte("S1 S1 0 0 2 -9\n"), rt.objects["mock-bucket/runs/s1/out.fam"])
	assert.Equal(t, []byte{0x6c, 0x1b, 0x01, 0x54}, rt.objects["mock-bucket/runs/s1/out.bed"])
}

func TestUpload_ServerError(t *testing.T) {
	s := newMockStore(t, &mockRoundTripper{objects: map[string][]byte{}, status: http.StatusForbidden})

	path := filepath.Join(t.TempDir(), "out.bim")
	require.NoError(t, os.WriteFile(path, []byte("1 rs1 0 1 A T\n"), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	err = s.Upload(context.Background(), "out.bim", f, 14)
	assert.ErrorContains(t, err, "put s3://mock-bucket/out.bim")
}
