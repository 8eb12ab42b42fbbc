package profiles

import (
	"path"
	"strings"

	apperrors "github.com/jrsteele09/go-legid-client/internal/errors"
)

const maxAvatarFilenameLength = 100

var allowedAvatarTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
	"image/webp": {},
}

// UploadTarget is the short lived write location handed out by the backend.
type UploadTarget struct {
	SignedURL string `json:"signed_url"`
	FilePath  string `json:"file_path"`
	PublicURL string `json:"public_url"`
}

// ValidateAvatar applies the same checks the backend does so a bad file is
// rejected before any network round trip.
func ValidateAvatar(filename, contentType string) error {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "" || name == "." || name == "/" || len(filename) > maxAvatarFilenameLength {
		return apperrors.Validationf("invalid avatar filename %q", filename)
	}
	if _, ok := allowedAvatarTypes[strings.ToLower(contentType)]; !ok {
		return apperrors.Validationf("content type %s not allowed", contentType)
	}
	return nil
}
