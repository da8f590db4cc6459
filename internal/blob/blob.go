package blob

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

var ErrNotFound = errors.New("blob not found")

// Object is an uploaded file as received from the client.
type Object struct {
	Name        string
	ContentType string
	Data        []byte
}

// Stored describes an object after upload.
type Stored struct {
	URL         string
	Key         string
	ContentType string
	Size        int64
}

// Info is a listing entry.
type Info struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Store persists opaque objects under folder-scoped keys. Keys never carry the file extension.
type Store interface {
	Upload(ctx context.Context, obj Object, folder string) (Stored, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, folder string) ([]Info, error)
}

// InvalidObjectError rejects an upload before anything is written.
type InvalidObjectError struct {
	Reason string
}

func (e InvalidObjectError) Error() string {
	return "invalid file: " + e.Reason
}

// Limits bounds upload sizes per kind.
type Limits struct {
	MaxImageBytes    int64
	MaxDocumentBytes int64
}

const (
	mimeJPEG = "image/jpeg"
	mimePNG  = "image/png"
	mimeWEBP = "image/webp"
	mimePDF  = "application/pdf"
	mimeDOC  = "application/msword"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var allowedExtensions = map[string][]string{
	mimeJPEG: {".jpg", ".jpeg"},
	mimePNG:  {".png"},
	mimeWEBP: {".webp"},
	mimePDF:  {".pdf"},
	mimeDOC:  {".doc"},
	mimeDOCX: {".docx"},
}

// Office documents sniff as their container format with some detectors.
var containers = map[string]string{
	mimeDOC:  "application/x-ole-storage",
	mimeDOCX: "application/zip",
}

// Validate checks the declared type, the extension, the sniffed content and
// the size of obj. It returns the normalized extension to store under.
func Validate(obj Object, limits Limits) (string, error) {
	if len(obj.Data) == 0 {
		return "", InvalidObjectError{Reason: "file is empty"}
	}
	declared := strings.ToLower(strings.TrimSpace(strings.SplitN(obj.ContentType, ";", 2)[0]))
	exts, ok := allowedExtensions[declared]
	if !ok {
		return "", InvalidObjectError{Reason: fmt.Sprintf("content type %q not allowed", obj.ContentType)}
	}
	ext := strings.ToLower(filepath.Ext(obj.Name))
	if !contains(exts, ext) {
		return "", InvalidObjectError{Reason: fmt.Sprintf("extension %q does not match content type %s", ext, declared)}
	}
	sniffed := mimetype.Detect(obj.Data)
	if !sniffed.Is(declared) && !sniffed.Is(containers[declared]) {
		return "", InvalidObjectError{Reason: fmt.Sprintf("content looks like %s, not %s", sniffed.String(), declared)}
	}
	limit := limits.MaxDocumentBytes
	if strings.HasPrefix(declared, "image/") {
		limit = limits.MaxImageBytes
	}
	if limit > 0 && int64(len(obj.Data)) > limit {
		return "", InvalidObjectError{Reason: fmt.Sprintf("file too large: maximum size is %d MiB", limit>>20)}
	}
	return ext, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
