package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pdfData = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n")
	pngData = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 16)...)
)

func newLocal(t *testing.T) (*Local, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return NewLocal(fs, Config{
		Root:             "/data",
		PublicBaseURL:    "http://localhost:8080/files/",
		MaxImageBytes:    1 << 20,
		MaxDocumentBytes: 2 << 20,
	}), fs
}

func TestValidate(t *testing.T) {
	limits := Limits{MaxImageBytes: 24, MaxDocumentBytes: 1 << 20}
	cases := []struct {
		name    string
		obj     Object
		wantExt string
		wantErr string
	}{
		{"pdf", Object{Name: "cv.PDF", ContentType: "application/pdf", Data: pdfData}, ".pdf", ""},
		{"empty", Object{Name: "cv.pdf", ContentType: "application/pdf"}, "", "empty"},
		{"mime not allowed", Object{Name: "cv.txt", ContentType: "text/plain", Data: []byte("hi")}, "", "not allowed"},
		{"extension mismatch", Object{Name: "cv.png", ContentType: "application/pdf", Data: pdfData}, "", "does not match"},
		{"spoofed content", Object{Name: "cv.pdf", ContentType: "application/pdf", Data: []byte("just some text")}, "", "content looks like"},
		{"image too large", Object{Name: "me.png", ContentType: "image/png", Data: pngData}, "", "too large"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ext, err := Validate(tc.obj, limits)
			if tc.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, tc.wantExt, ext)
				return
			}
			var invalid InvalidObjectError
			require.True(t, errors.As(err, &invalid), "got %v", err)
			assert.Contains(t, invalid.Error(), tc.wantErr)
		})
	}
}

func TestLocalUploadDeleteRoundTrip(t *testing.T) {
	store, fs := newLocal(t)
	ctx := context.Background()

	stored, err := store.Upload(ctx, Object{Name: "cv.pdf", ContentType: "application/pdf", Data: pdfData}, "applications")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.Key, "applications/"))
	assert.Equal(t, "http://localhost:8080/files/"+stored.Key+".pdf", stored.URL)

	data, err := afero.ReadFile(fs, "/data/"+stored.Key+".pdf")
	require.NoError(t, err)
	assert.Equal(t, pdfData, data)

	ok, err := store.Exists(ctx, stored.Key)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := store.List(ctx, "applications")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, stored.Key, list[0].Key)

	require.NoError(t, store.Delete(ctx, stored.Key))
	ok, err = store.Exists(ctx, stored.Key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, store.Delete(ctx, stored.Key), ErrNotFound)
}

func TestLocalRejectsInvalidWithoutWriting(t *testing.T) {
	store, _ := newLocal(t)
	ctx := context.Background()
	_, err := store.Upload(ctx, Object{Name: "cv.exe", ContentType: "application/x-msdownload", Data: []byte("MZ")}, "applications")
	require.Error(t, err)
	list, err := store.List(ctx, "applications")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLocalHonorsCancelledContext(t *testing.T) {
	store, _ := newLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.Upload(ctx, Object{Name: "cv.pdf", ContentType: "application/pdf", Data: pdfData}, "applications")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalMalformedKeysAreNotFound(t *testing.T) {
	store, _ := newLocal(t)
	ctx := context.Background()
	for _, key := range []string{"", "applications/*", "../etc/passwd"} {
		ok, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
		assert.ErrorIs(t, store.Delete(ctx, key), ErrNotFound, key)
	}
}

func TestLocalFileSystemServesUploads(t *testing.T) {
	store, _ := newLocal(t)
	stored, err := store.Upload(context.Background(), Object{Name: "cv.pdf", ContentType: "application/pdf", Data: pdfData}, "applications")
	require.NoError(t, err)

	f, err := store.FileSystem().Open("/" + stored.Key + ".pdf")
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, pdfData, data)
}
