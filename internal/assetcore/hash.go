package assetcore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

var mimeByExtension = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".pdf":  "application/pdf",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".json": "application/json",
	".xml":  "application/xml",
	".zip":  "application/zip",
	".tar":  "application/x-tar",
	".gz":   "application/gzip",
}

// imageExtensionAllowList is consulted by Service.Upload before it falls
// back to magic-number sniffing (§4.5). SVG is deliberately absent — see
// DESIGN.md's Open Question decisions.
var imageExtensionAllowList = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
}

// ComputeHash returns the lowercase hex SHA-256 digest of data. This is the
// sole identity hash for the vault; it is deterministic and content-only.
func ComputeHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidateHash fails with ErrInvalidHash unless s is exactly 64 lowercase
// hex characters.
func ValidateHash(s string) error {
	if len(s) != 64 {
		return ErrInvalidHash
	}
	for _, c := range s {
		if !(c >= '0' && c <= '9') && !(c >= 'a' && c <= 'f') {
			return ErrInvalidHash
		}
	}
	return nil
}

// ValidateExtension accepts the empty string, or a string starting with
// '.', total length 2-10, with alphanumeric characters after the dot.
func ValidateExtension(s string) error {
	if s == "" {
		return nil
	}
	if len(s) < 2 || len(s) > 10 {
		return ErrInvalidExtension
	}
	if s[0] != '.' {
		return ErrInvalidExtension
	}
	for _, c := range s[1:] {
		if !(c >= '0' && c <= '9') && !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') {
			return ErrInvalidExtension
		}
	}
	return nil
}

// NormalizeExtension lowercases s and prepends '.' when s is non-empty and
// missing it. Pure; does not validate.
func NormalizeExtension(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	if s[0] != '.' {
		s = "." + s
	}
	return s
}

// DetectMIME looks ext up in the fixed MIME table, falling back to
// application/octet-stream for anything unknown.
func DetectMIME(ext string) string {
	if mime, ok := mimeByExtension[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// sniffImageExtension inspects the leading bytes of data against the known
// magic numbers for PNG, JPEG, GIF and WEBP. It returns the normalized
// extension and true on a match.
func sniffImageExtension(data []byte) (string, bool) {
	switch {
	case len(data) >= 4 && data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
		return ".png", true
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return ".jpg", true
	case len(data) >= 4 && string(data[0:4]) == "GIF8":
		return ".gif", true
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return ".webp", true
	default:
		return "", false
	}
}

func validateHashAndExtension(hash, ext string) error {
	if err := ValidateHash(hash); err != nil {
		return err
	}
	if err := ValidateExtension(ext); err != nil {
		return err
	}
	return nil
}

func fileName(hash, ext string) string {
	return fmt.Sprintf("%s%s", hash, ext)
}
