package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImageStatus tracks an image's monotonic progress through the pipeline.
type ImageStatus string

const (
	ImagePending    ImageStatus = "pending"
	ImageProcessing ImageStatus = "processing"
	ImageTagging    ImageStatus = "tagging"
	ImageReady      ImageStatus = "ready"
	ImageApproved   ImageStatus = "approved"
	ImageRejected   ImageStatus = "rejected"
)

// Preset is one of the closed set of size presets a ready image must have
// exactly one variant for. Additions require a schema change (§3).
type Preset string

const (
	PresetThumbnail   Preset = "thumbnail"
	PresetProductCard Preset = "product_card"
	PresetFullProduct Preset = "full_product"
	PresetHeroImage   Preset = "hero_image"
	PresetFullRes     Preset = "full_res"
)

// PresetDimensions is the closed preset→size table from §3.
var PresetDimensions = map[Preset][2]int{
	PresetThumbnail:   {150, 150},
	PresetProductCard: {400, 300},
	PresetFullProduct: {800, 600},
	PresetHeroImage:   {1920, 600},
	PresetFullRes:     {2048, 2048},
}

// AllPresets lists the closed preset enum in stable order.
var AllPresets = []Preset{
	PresetThumbnail, PresetProductCard, PresetFullProduct, PresetHeroImage, PresetFullRes,
}

// TagSource classifies where a tag originated.
type TagSource string

const (
	TagSourceAuto     TagSource = "auto"
	TagSourceManual   TagSource = "manual"
	TagSourceTemplate TagSource = "template"
)

// Image is the product of a successfully completed task. It owns a set of
// Variants, Tags, at most one Description, a set of Colors, and at most one
// Embedding.
type Image struct {
	ID                uuid.UUID
	Prompt            string
	Style             Style
	Status            ImageStatus
	TaggingConfidence *float64
	GenerationCost    *float64
	TaggingCost       *float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Variant is a resized encoding of an image at one of the fixed presets.
type Variant struct {
	ImageID uuid.UUID
	Preset  Preset
	Path    string
	Size    int
	Width   int
	Height  int
}

// Tag is a single (deduped per image) descriptive tag.
type Tag struct {
	ImageID    uuid.UUID
	Tag        string
	Confidence float64
	Source     TagSource
}

// Description is the at-most-one free-text description of an image.
type Description struct {
	ImageID     uuid.UUID
	Description string
	Analysis    string
	Model       string
}

// Color is one dominant or secondary color extracted from the image.
type Color struct {
	ImageID    uuid.UUID
	Hex        string
	Percentage float64
	IsDominant bool
}

// Embedding is the at-most-one fixed-dimension semantic-search vector.
type Embedding struct {
	ImageID uuid.UUID
	Vector  []float32
	Model   string
}
