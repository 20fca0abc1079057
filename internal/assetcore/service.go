package assetcore

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// IndexStorer is the subset of *IndexStore the service depends on. Tests
// substitute a fake satisfying this interface instead of standing up a
// real Postgres instance, the same "depend on an interface the concrete
// driver also satisfies" shape the teacher uses for AssetRepository.
type IndexStorer interface {
	Upsert(ctx context.Context, asset Asset) (existed bool, err error)
	GetByHash(ctx context.Context, hash string) (Asset, error)
	Delete(ctx context.Context, hash string) error
	LinkToDocument(ctx context.Context, hash, docPath string) error
	UnlinkFromDocument(ctx context.Context, hash, docPath string) error
	UnlinkAllFromDocument(ctx context.Context, docPath string) error
	GetDocumentAssets(ctx context.Context, docPath string) ([]Asset, error)
	GetOrphanedAssets(ctx context.Context) ([]Asset, error)
}

// Service is the public facade composing C1-C4: it orchestrates
// single-shot upload, chunked upload finalisation, document linking and
// orphan cleanup, grounded on the teacher's AssetService pipeline
// (validate -> hash -> dedupe-check -> storage-write -> index-write ->
// notify).
type Service struct {
	Vault    Vault
	Store    IndexStorer
	Sessions *UploadSessionManager
	Notifier ChangeNotifier
}

// NewService wires the four collaborators together. notifier may be nil,
// in which case notifications are silently dropped.
func NewService(vault Vault, store IndexStorer, sessions *UploadSessionManager, notifier ChangeNotifier) *Service {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Service{Vault: vault, Store: store, Sessions: sessions, Notifier: notifier}
}

// Upload validates alias and bytes, resolves an extension (filename
// suffix, falling back to magic-number sniffing for the image allow-list),
// writes the content-addressed file, upserts its index row, and notifies
// the sync collaborator. See §4.5 for the full decision table.
func (s *Service) Upload(ctx context.Context, alias string, data []byte, filename string) (AssetInfo, error) {
	if alias == "" {
		return AssetInfo{}, ErrMissingField
	}
	if len(data) == 0 {
		return AssetInfo{}, ErrEmptyData
	}
	if len(data) > MaxUploadSize {
		return AssetInfo{}, ErrFileTooLarge
	}

	ext, err := s.resolveUploadExtension(data, filename)
	if err != nil {
		return AssetInfo{}, err
	}

	info, err := WriteAsset(s.Vault, alias, data, ext)
	if err != nil {
		return AssetInfo{}, err
	}

	now := time.Now()
	asset := Asset{Hash: info.Hash, Ext: info.Ext, Bytes: info.Bytes, Mime: info.Mime, CreatedAt: now}
	if _, err := s.Store.Upsert(ctx, asset); err != nil {
		return AssetInfo{}, err
	}

	safeNotify(s.Notifier, fmt.Sprintf("uploaded asset %s%s", info.Hash, info.Ext))
	return info, nil
}

// resolveUploadExtension implements §4.5's extension decision: trust a
// recognised filename suffix first, else sniff magic numbers against the
// image allow-list, else fail UnsupportedType. mimetype.Detect is a second
// opinion after the hand-rolled sniffer: its result is accepted only when
// it equals the MIME type of an allow-listed extension, so it never
// widens the allow-list.
func (s *Service) resolveUploadExtension(data []byte, filename string) (string, error) {
	ext := NormalizeExtension(extOf(filename))
	if imageExtensionAllowList[ext] {
		return ext, nil
	}

	if sniffed, ok := sniffImageExtension(data); ok {
		return sniffed, nil
	}

	if detected := mimetype.Detect(data); detected != nil {
		for candidate := range imageExtensionAllowList {
			if DetectMIME(candidate) == detected.String() {
				return candidate, nil
			}
		}
	}

	return "", ErrUnsupportedType
}

// BuildURL returns the stable public URL for an asset, validating all
// three components first.
func (s *Service) BuildURL(alias, hash, ext string) (string, error) {
	if alias == "" {
		return "", ErrMissingField
	}
	if err := validateHashAndExtension(hash, ext); err != nil {
		return "", err
	}
	return fmt.Sprintf("/assets/%s/%s%s", alias, hash, ext), nil
}

// LinkToDocument is a thin, input-validated wrapper over the store.
func (s *Service) LinkToDocument(ctx context.Context, docPath, hash string) error {
	if err := ValidateHash(hash); err != nil {
		return err
	}
	if docPath == "" {
		return ErrMissingField
	}
	return s.Store.LinkToDocument(ctx, hash, docPath)
}

// UnlinkFromDocument is a thin, input-validated wrapper over the store.
func (s *Service) UnlinkFromDocument(ctx context.Context, docPath, hash string) error {
	if err := ValidateHash(hash); err != nil {
		return err
	}
	if docPath == "" {
		return ErrMissingField
	}
	return s.Store.UnlinkFromDocument(ctx, hash, docPath)
}

// UnlinkAllFromDocument is a thin, input-validated wrapper over the store.
func (s *Service) UnlinkAllFromDocument(ctx context.Context, docPath string) error {
	if docPath == "" {
		return ErrMissingField
	}
	return s.Store.UnlinkAllFromDocument(ctx, docPath)
}

// StartChunkedUpload delegates to the session manager and records a debug
// log event, mirroring the teacher's logging around upload session
// creation.
func (s *Service) StartChunkedUpload(req StartChunkedUploadRequest) (string, error) {
	id, err := s.Sessions.CreateSession(req)
	if err != nil {
		return "", err
	}
	log.Printf("[AssetService] started chunked upload %s for %s (%d chunks)", id, req.ProjectAlias, req.TotalChunks)
	return id, nil
}

// UploadChunk delegates to the session manager.
func (s *Service) UploadChunk(uploadID string, index int, base64Data string) (received int, complete bool, err error) {
	return s.Sessions.AddChunk(uploadID, index, base64Data)
}

// FinalizedUpload is the result of a successful chunked-upload finalisation.
type FinalizedUpload struct {
	URL   string `json:"url"`
	Hash  string `json:"hash"`
	Ext   string `json:"ext"`
	Bytes int64  `json:"bytes"`
}

// FinalizeChunkedUpload assembles the session's chunks and finishes the
// upload through the same Upload path a single-shot request takes. The
// vault is content-addressed, so if the index write fails after the file
// write succeeds, a retry of the exact bytes is idempotent and heals the
// index on its next success; no automatic retry happens here.
func (s *Service) FinalizeChunkedUpload(ctx context.Context, uploadID string) (FinalizedUpload, error) {
	data, info, err := s.Sessions.AssembleAndRemove(uploadID)
	if err != nil {
		return FinalizedUpload{}, err
	}

	filename := info.Filename
	if filename == "" {
		filename = "upload" + sessionExtension(info)
	}

	assetInfo, err := s.Upload(ctx, info.ProjectAlias, data, filename)
	if err != nil {
		return FinalizedUpload{}, err
	}

	url, err := s.BuildURL(info.ProjectAlias, assetInfo.Hash, assetInfo.Ext)
	if err != nil {
		return FinalizedUpload{}, err
	}

	return FinalizedUpload{URL: url, Hash: assetInfo.Hash, Ext: assetInfo.Ext, Bytes: assetInfo.Bytes}, nil
}

// AbortChunkedUpload delegates to the session manager.
func (s *Service) AbortChunkedUpload(uploadID string) error {
	return s.Sessions.RemoveSession(uploadID)
}

// RecommendedChunkConfig supplements the spec with the teacher's
// chunk-size hinting (see SPEC_FULL.md §C); the chunk size is fixed and
// only MaxConcurrent is scaled by available memory, in the HTTP handler.
// It is advertised at
// GET /api/uploads/config so clients size chunks sanely against the
// session ceiling.
type RecommendedChunkConfig struct {
	ChunkSizeBytes  int64 `json:"chunk_size_bytes"`
	MaxConcurrent   int   `json:"max_concurrent"`
	MaxSessionBytes int64 `json:"max_session_bytes"`
}

// RecommendedChunkConfig returns a static recommendation derived from the
// fixed session ceiling; a memory-aware variant lives in
// internal/assetcore/memory.go and is wired in by cmd/assetd.
func (s *Service) RecommendedChunkConfig() RecommendedChunkConfig {
	return RecommendedChunkConfig{
		ChunkSizeBytes:  1 * 1024 * 1024,
		MaxConcurrent:   4,
		MaxSessionBytes: MaxUploadSize,
	}
}

// Progress reports chunked-upload progress, supplementing the spec with
// the teacher's GetUploadProgress feature.
func (s *Service) Progress(uploadID string) (received, total int, err error) {
	return s.Sessions.Progress(uploadID)
}

// CleanupOrphans fetches the orphan list (§4.3's grace window applies),
// deletes each row and best-effort removes its file from the vault.
// Filesystem errors are swallowed after the DB delete succeeds per the
// Open Question decision in DESIGN.md: the index is the source of truth.
func (s *Service) CleanupOrphans(ctx context.Context, alias string) (int, error) {
	orphans, err := s.Store.GetOrphanedAssets(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, asset := range orphans {
		if err := s.Store.Delete(ctx, asset.Hash); err != nil {
			return deleted, err
		}
		deleted++

		if err := DeleteAsset(s.Vault, alias, asset.Hash, asset.Ext); err != nil {
			log.Printf("[AssetService] orphan file removal failed for %s%s: %v", asset.Hash, asset.Ext, err)
		}
	}

	if deleted > 0 {
		safeNotify(s.Notifier, fmt.Sprintf("cleaned up %d orphaned asset(s)", deleted))
	}
	return deleted, nil
}
