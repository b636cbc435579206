package user

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// FileExt is the extension of every user document.
const FileExt = ".json"

const tmpSuffix = ".tmp"

// FileRepo implements Repository over a directory tree:
//
//	<root>/admin/<id>.json
//	<root>/patient/<id>.json
type FileRepo struct {
	fs     afero.Fs
	logger zerolog.Logger
}

// NewFileRepo stores documents on fs, rooted at its top level.
func NewFileRepo(fs afero.Fs, logger zerolog.Logger) *FileRepo {
	return &FileRepo{fs: fs, logger: logger}
}

// NewOSFileRepo stores documents under dataDir on the local disk.
func NewOSFileRepo(dataDir string, logger zerolog.Logger) *FileRepo {
	return NewFileRepo(afero.NewBasePathFs(afero.NewOsFs(), dataDir), logger)
}

// validID rejects ids that would escape their partition.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}

func docPath(role Role, id string) string {
	return filepath.Join(role.Partition(), id+FileExt)
}

// Save encodes u and writes it.
func (r *FileRepo) Save(ctx context.Context, u User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, err := NewRecord(u)
	if err != nil {
		return err
	}
	return r.Write(ctx, rec)
}

func (r *FileRepo) Write(ctx context.Context, rec RawRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validID(rec.ID) {
		return fmt.Errorf("%w: invalid id %q", ErrStorageIO, rec.ID)
	}

	dir := rec.Role.Partition()
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrStorageIO, dir, err)
	}

	// Write a sibling file and rename it over the target so readers never
	// see a partially written document.
	path := docPath(rec.Role, rec.ID)
	tmp := path + tmpSuffix
	if err := afero.WriteFile(r.fs, tmp, rec.Data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrStorageIO, tmp, err)
	}
	if err := r.fs.Rename(tmp, path); err != nil {
		_ = r.fs.Remove(tmp)
		return fmt.Errorf("%w: rename %s: %v", ErrStorageIO, path, err)
	}
	return nil
}

func (r *FileRepo) Load(ctx context.Context, id string, role Role) (User, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if !validID(id) {
		return nil, false, nil
	}
	path := docPath(role, id)
	ok, err := afero.Exists(r.fs, path)
	if err != nil {
		return nil, false, fmt.Errorf("%w: stat %s: %v", ErrStorageIO, path, err)
	}
	if !ok {
		return nil, false, nil
	}
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, false, fmt.Errorf("%w: read %s: %v", ErrStorageIO, path, err)
	}
	u, err := Decode(role, data)
	if err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", path, err)
	}
	return u, true, nil
}

func (r *FileRepo) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !validID(id) {
		return false, nil
	}
	for _, role := range StoredRoles {
		path := docPath(role, id)
		ok, err := afero.Exists(r.fs, path)
		if err != nil {
			return false, fmt.Errorf("%w: stat %s: %v", ErrStorageIO, path, err)
		}
		if !ok {
			continue
		}
		if err := r.fs.Remove(path); err != nil {
			return false, fmt.Errorf("%w: remove %s: %v", ErrStorageIO, path, err)
		}
		return true, nil
	}
	return false, nil
}

func (r *FileRepo) ListAll(ctx context.Context, role Role) ([]RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := role.Partition()
	ok, err := afero.DirExists(r.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrStorageIO, dir, err)
	}
	if !ok {
		r.logger.Debug().Str("dir", dir).Msg("partition directory missing")
		return nil, nil
	}

	entries, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrStorageIO, dir, err)
	}
	records := make([]RawRecord, 0, len(entries))
	for _, fi := range entries {
		if !fi.Mode().IsRegular() || filepath.Ext(fi.Name()) != FileExt {
			continue
		}
		path := filepath.Join(dir, fi.Name())
		data, err := afero.ReadFile(r.fs, path)
		if err != nil {
			r.logger.Warn().Err(err).Str("path", path).Msg("skipping unreadable user file")
			continue
		}
		records = append(records, RawRecord{
			ID:   strings.TrimSuffix(fi.Name(), FileExt),
			Role: role,
			Path: path,
			Data: data,
		})
	}
	return records, nil
}

func (r *FileRepo) Count(ctx context.Context, role Role) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	dir := role.Partition()
	ok, err := afero.DirExists(r.fs, dir)
	if err != nil || !ok {
		return 0, nil
	}
	entries, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		return 0, fmt.Errorf("%w: list %s: %v", ErrStorageIO, dir, err)
	}
	n := 0
	for _, fi := range entries {
		if fi.Mode().IsRegular() {
			n++
		}
	}
	return n, nil
}
