package assetcore

import "time"

// Asset is an immutable binary blob identified by its SHA-256 digest.
// Only ext, bytes and mime may be rewritten by a re-upload of the same
// content under a different filename; hash and created_at never change.
type Asset struct {
	Hash      string
	Ext       string
	Bytes     int64
	Mime      string
	CreatedAt time.Time
}

// Validate checks the conjunction of the C1 field rules plus the
// structural constraints Asset itself adds (positive size, non-empty
// mime, a real created_at).
func (a Asset) Validate() error {
	if err := ValidateHash(a.Hash); err != nil {
		return err
	}
	if err := ValidateExtension(a.Ext); err != nil {
		return err
	}
	if a.Bytes <= 0 {
		return ErrEmptyData
	}
	if a.Mime == "" {
		return ErrMissingField
	}
	if a.CreatedAt.IsZero() {
		return ErrMissingField
	}
	return nil
}

// AssetInfo is the result of a successful write, reporting whether the
// content already existed under its hash.
type AssetInfo struct {
	Hash         string
	Ext          string
	Bytes        int64
	Mime         string
	AlreadyExist bool
}

// DocAssetLink asserts that doc_path references the asset identified by
// Hash. Unique per (DocPath, Hash).
type DocAssetLink struct {
	DocPath string
	Hash    string
}
