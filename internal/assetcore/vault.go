package assetcore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Vault is the collaborator contract the core needs from the on-disk
// storage layer (§4.2, §6). Any directory strategy satisfies it provided
// both methods return consistent paths for the same alias.
type Vault interface {
	AssetsPath(alias string) string
	EnsureProjectDir(alias string) error
}

// LocalVault lays assets out at <root>/projects/<alias>/assets/<hash><ext>,
// adapted from the teacher's year/month LocalStorage layout, replaced here
// with the content-addressed directory structure §6 fixes.
type LocalVault struct {
	Root string
}

// NewLocalVault creates the vault root if missing.
func NewLocalVault(root string) (*LocalVault, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create vault root: %v", ErrIOError, err)
	}
	return &LocalVault{Root: root}, nil
}

func (v *LocalVault) AssetsPath(alias string) string {
	return filepath.Join(v.Root, "projects", alias, "assets")
}

func (v *LocalVault) EnsureProjectDir(alias string) error {
	if err := os.MkdirAll(v.AssetsPath(alias), 0o755); err != nil {
		return fmt.Errorf("%w: ensure project dir: %v", ErrIOError, err)
	}
	return nil
}

// WriteAsset hashes data, ensures alias's directory exists, and writes the
// content at <dir>/<hash><ext> iff it is not already present. The write is
// crash-safe: content lands in a sibling temp file first, then is promoted
// with a single os.Rename within the same directory.
func WriteAsset(vault Vault, alias string, data []byte, ext string) (AssetInfo, error) {
	if len(data) == 0 {
		return AssetInfo{}, ErrEmptyData
	}
	if err := ValidateExtension(ext); err != nil {
		return AssetInfo{}, err
	}
	ext = NormalizeExtension(ext)

	hash := ComputeHash(data)
	mime := DetectMIME(ext)

	if err := vault.EnsureProjectDir(alias); err != nil {
		return AssetInfo{}, err
	}

	dir := vault.AssetsPath(alias)
	dst := filepath.Join(dir, fileName(hash, ext))

	if _, err := os.Stat(dst); err == nil {
		return AssetInfo{Hash: hash, Ext: ext, Bytes: int64(len(data)), Mime: mime, AlreadyExist: true}, nil
	} else if !os.IsNotExist(err) {
		return AssetInfo{}, fmt.Errorf("%w: stat asset: %v", ErrIOError, err)
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".tmp-%s-%s", hash, uuid.NewString()))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return AssetInfo{}, fmt.Errorf("%w: write temp file: %v", ErrIOError, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return AssetInfo{}, fmt.Errorf("%w: promote temp file: %v", ErrIOError, err)
	}

	return AssetInfo{Hash: hash, Ext: ext, Bytes: int64(len(data)), Mime: mime, AlreadyExist: false}, nil
}

// ReadAsset reads the file at <dir>/<hash><ext> and re-hashes its content,
// failing ErrHashMismatch if the bytes on disk no longer match hash. This
// re-hash is the integrity contract: ReadAsset never returns content it has
// not itself verified.
func ReadAsset(vault Vault, alias, hash, ext string) ([]byte, error) {
	if err := validateHashAndExtension(hash, ext); err != nil {
		return nil, err
	}

	path := filepath.Join(vault.AssetsPath(alias), fileName(hash, ext))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: read asset: %v", ErrIOError, err)
	}

	if ComputeHash(data) != hash {
		return nil, ErrHashMismatch
	}
	return data, nil
}

// DeleteAsset removes <dir>/<hash><ext>, failing ErrNotFound if absent.
func DeleteAsset(vault Vault, alias, hash, ext string) error {
	if err := validateHashAndExtension(hash, ext); err != nil {
		return err
	}

	path := filepath.Join(vault.AssetsPath(alias), fileName(hash, ext))
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: delete asset: %v", ErrIOError, err)
	}
	return nil
}

// AssetExists reports whether <dir>/<hash><ext> exists.
func AssetExists(vault Vault, alias, hash, ext string) (bool, error) {
	if err := validateHashAndExtension(hash, ext); err != nil {
		return false, err
	}

	path := filepath.Join(vault.AssetsPath(alias), fileName(hash, ext))
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("%w: stat asset: %v", ErrIOError, err)
}
