// Package intake validates user supplied image files and stages a single one
// for analysis.
package intake

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	// ErrUnsupportedType is returned when the declared type is not an allowed raster format.
	ErrUnsupportedType = errors.New("unsupported image type")
	// ErrEmptyFile is returned for files without content.
	ErrEmptyFile = errors.New("image file is empty")
	// ErrFileTooLarge is returned for files above the configured size limit.
	ErrFileTooLarge = errors.New("image file too large")
)

// allowedTypes are the raster formats the analysis service accepts.
var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// typeAliases maps non-canonical MIME names seen in the wild.
var typeAliases = map[string]string{
	"image/jpg":   "image/jpeg",
	"image/pjpeg": "image/jpeg",
	"image/x-png": "image/png",
}

// File is a candidate image as received from the user.
type File struct {
	Name     string
	MimeType string // declared type
	Data     []byte
}

// StagedImage is the single image currently held for analysis.
type StagedImage struct {
	ID       string
	FileName string
	MimeType string
	Data     []byte
	Preview  PreviewRef
}

// Intake stages at most one image at a time.
type Intake struct {
	previews *PreviewStore
	maxBytes int64
	current  *StagedImage
}

// New creates an Intake. A maxBytes of zero disables the size limit.
func New(previews *PreviewStore, maxBytes int64) *Intake {
	return &Intake{previews: previews, maxBytes: maxBytes}
}

// NormalizeMimeType lowercases t, strips parameters and resolves aliases.
func NormalizeMimeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	if alias, ok := typeAliases[t]; ok {
		return alias
	}
	return t
}

// MimeTypeFromName guesses the MIME type from a file extension.
// Returns an empty string for unknown extensions.
func MimeTypeFromName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	}
	return NormalizeMimeType(mime.TypeByExtension(ext))
}

// IsSupported reports whether the declared type is in the allow-list.
func IsSupported(mimeType string) bool {
	return allowedTypes[NormalizeMimeType(mimeType)]
}

// Validate checks f without staging it.
func (in *Intake) Validate(f File) error {
	if !IsSupported(f.MimeType) {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, f.MimeType)
	}
	if len(f.Data) == 0 {
		return ErrEmptyFile
	}
	if in.maxBytes > 0 && int64(len(f.Data)) > in.maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d bytes", ErrFileTooLarge, len(f.Data), in.maxBytes)
	}
	return nil
}

// Stage validates f and makes it the current staged image. The previous
// image's preview is released before the new one is created. On error
// nothing changes.
func (in *Intake) Stage(f File) (*StagedImage, error) {
	if err := in.Validate(f); err != nil {
		return nil, err
	}

	in.release()

	id := uuid.NewString()
	name := f.Name
	if name == "" {
		name = "image" + extensionFor(NormalizeMimeType(f.MimeType))
	}
	img := &StagedImage{
		ID:       id,
		FileName: name,
		MimeType: NormalizeMimeType(f.MimeType),
		Data:     f.Data,
		Preview:  in.previews.Create(id, f.Data),
	}
	in.current = img

	log.Info().Str("id", id).Str("name", name).Str("mimeType", img.MimeType).Int("bytes", len(f.Data)).Msg("image staged")
	return img, nil
}

// Current returns the staged image, or nil.
func (in *Intake) Current() *StagedImage {
	return in.current
}

// Clear releases the staged image and its preview.
func (in *Intake) Clear() {
	in.release()
}

// PreviewOf returns the preview bytes of the current image.
func (in *Intake) PreviewOf(img *StagedImage) ([]byte, bool) {
	if img == nil {
		return nil, false
	}
	return in.previews.Get(img.Preview)
}

func (in *Intake) release() {
	if in.current == nil {
		return
	}
	in.previews.Release(in.current.Preview)
	in.current = nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
