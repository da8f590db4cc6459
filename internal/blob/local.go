package blob

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

type Config struct {
	Root             string
	PublicBaseURL    string
	MaxImageBytes    int64
	MaxDocumentBytes int64
}

// Local stores objects as files under Root on an afero filesystem and
// addresses them as PublicBaseURL/<folder>/<name><ext>.
type Local struct {
	fs  afero.Fs
	cfg Config
}

func NewLocal(fs afero.Fs, cfg Config) *Local {
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &Local{fs: fs, cfg: cfg}
}

func (l *Local) Upload(ctx context.Context, obj Object, folder string) (Stored, error) {
	if err := ctx.Err(); err != nil {
		return Stored{}, err
	}
	ext, err := Validate(obj, Limits{MaxImageBytes: l.cfg.MaxImageBytes, MaxDocumentBytes: l.cfg.MaxDocumentBytes})
	if err != nil {
		return Stored{}, err
	}
	folder = strings.Trim(folder, "/")
	key := path.Join(folder, uuid.NewString())
	dir := filepath.Join(l.cfg.Root, filepath.FromSlash(folder))
	if err := l.fs.MkdirAll(dir, 0o755); err != nil {
		return Stored{}, fmt.Errorf("create folder %s: %w", folder, err)
	}
	if err := afero.WriteFile(l.fs, l.file(key)+ext, obj.Data, 0o644); err != nil {
		return Stored{}, fmt.Errorf("write %s: %w", key, err)
	}
	return Stored{
		URL:         l.cfg.PublicBaseURL + "/" + key + ext,
		Key:         key,
		ContentType: obj.ContentType,
		Size:        int64(len(obj.Data)),
	}, nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	matches, err := l.matches(key)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return ErrNotFound
	}
	for _, m := range matches {
		if err := l.fs.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", key, err)
		}
	}
	return nil
}

func (l *Local) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	matches, err := l.matches(key)
	if err != nil {
		return false, err
	}
	return len(matches) > 0, nil
}

func (l *Local) List(ctx context.Context, folder string) ([]Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	folder = strings.Trim(folder, "/")
	entries, err := afero.ReadDir(l.fs, filepath.Join(l.cfg.Root, filepath.FromSlash(folder)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Info
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		out = append(out, Info{Key: path.Join(folder, name), Size: e.Size(), ModTime: e.ModTime()})
	}
	return out, nil
}

// FileSystem exposes the stored files for serving under PublicBaseURL.
func (l *Local) FileSystem() http.FileSystem {
	return afero.NewHttpFs(afero.NewBasePathFs(l.fs, l.cfg.Root)).Dir("/")
}

func (l *Local) file(key string) string {
	return filepath.Join(l.cfg.Root, filepath.FromSlash(key))
}

func (l *Local) matches(key string) ([]string, error) {
	key = strings.Trim(key, "/")
	if key == "" || strings.ContainsAny(key, "*?[\\") || strings.Contains(key, "..") {
		return nil, nil
	}
	return afero.Glob(l.fs, l.file(key)+".*")
}
