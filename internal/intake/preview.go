package intake

import (
	"bytes"
	"time"

	"github.com/disintegration/imaging"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp" // registers the webp decoder used by imaging.Decode
)

const (
	// DefaultPreviewSide is the bounding box for preview thumbnails.
	DefaultPreviewSide = 512
	previewQuality     = 80
)

// PreviewRef identifies a preview held in a PreviewStore.
type PreviewRef string

// PreviewStore holds displayable preview thumbnails for staged images.
//
// Previews are released explicitly when an image is replaced or the workflow
// resets. The TTL only purges previews of sessions that went away without
// either happening.
type PreviewStore struct {
	cache   *cache.Cache
	maxSide int
}

// NewPreviewStore creates a store whose entries expire after ttl.
func NewPreviewStore(ttl time.Duration) *PreviewStore {
	return &PreviewStore{
		cache:   cache.New(ttl, ttl/2),
		maxSide: DefaultPreviewSide,
	}
}

// WithMaxSide sets the preview bounding box.
func (p *PreviewStore) WithMaxSide(side int) *PreviewStore {
	p.maxSide = side
	return p
}

// Create renders a JPEG thumbnail of data and stores it under id.
// When the image cannot be decoded, the original bytes are kept as the preview.
func (p *PreviewStore) Create(id string, data []byte) PreviewRef {
	ref := PreviewRef(id)
	preview, err := p.thumbnail(data)
	if err != nil {
		log.Debug().Err(err).Str("id", id).Msg("could not render preview thumbnail, keeping original")
		preview = data
	}
	p.cache.SetDefault(string(ref), preview)
	return ref
}

// Get returns the preview bytes for ref.
func (p *PreviewStore) Get(ref PreviewRef) ([]byte, bool) {
	v, ok := p.cache.Get(string(ref))
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

// Release drops the preview for ref. Releasing an unknown ref is a no-op.
func (p *PreviewStore) Release(ref PreviewRef) {
	if ref == "" {
		return
	}
	p.cache.Delete(string(ref))
}

// Len returns the number of live previews.
func (p *PreviewStore) Len() int {
	return p.cache.ItemCount()
}

func (p *PreviewStore) thumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	thumb := imaging.Fit(img, p.maxSide, p.maxSide, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(previewQuality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
