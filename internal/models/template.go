package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Text position presets for the compositing engine.
const (
	PositionTopLeft      = "top_left"
	PositionCenterLeft   = "center_left"
	PositionBottomLeft   = "bottom_left"
	PositionTopRight     = "top_right"
	PositionCenterRight  = "center_right"
	PositionBottomRight  = "bottom_right"
	PositionTopCenter    = "top_center"
	PositionBottomCenter = "bottom_center"
	PositionCenterCenter = "center_center"
)

// Font size classes.
const (
	FontSizeSmall  = "small"
	FontSizeMedium = "medium"
	FontSizeLarge  = "large"
)

// BookTemplate is a versioned content blueprint. Once an order references a
// template it is treated as immutable.
type BookTemplate struct {
	bun.BaseModel `bun:"table:book_templates"`

	TemplateID  string    `bun:"template_id,pk" json:"template_id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Price       float64   `bun:"price,notnull" json:"price"`
	PublishedAt time.Time `bun:"published_at,notnull" json:"published_at"`

	Pages []TemplatePage `bun:"-" json:"pages,omitempty"`
}

// TemplatePage holds the per-page blueprint: gendered base text, layout
// hints, and base illustrations keyed by (gender, skin tone).
type TemplatePage struct {
	bun.BaseModel `bun:"table:template_pages"`

	TemplateID string `bun:"template_id,pk" json:"template_id"`
	PageIndex  int    `bun:"page_index,pk" json:"page_index"`

	TextBoy  string `bun:"text_boy" json:"text_boy"`
	TextGirl string `bun:"text_girl" json:"text_girl"`

	TextPosition string `bun:"text_position,notnull" json:"text_position"`
	FontSize     string `bun:"font_size,notnull" json:"font_size"`

	SkipPersonalization bool `bun:"skip_personalization" json:"skip_personalization"`

	IllustrationBoyLight  string `bun:"illustration_boy_light,nullzero" json:"illustration_boy_light,omitempty"`
	IllustrationBoyDark   string `bun:"illustration_boy_dark,nullzero" json:"illustration_boy_dark,omitempty"`
	IllustrationGirlLight string `bun:"illustration_girl_light,nullzero" json:"illustration_girl_light,omitempty"`
	IllustrationGirlDark  string `bun:"illustration_girl_dark,nullzero" json:"illustration_girl_dark,omitempty"`
}

// BaseText returns the gender-specific base text for the page.
func (p *TemplatePage) BaseText(gender string) string {
	if gender == GenderGirl {
		return p.TextGirl
	}
	return p.TextBoy
}

// BaseIllustration returns the base illustration reference for the given
// (gender, skin tone) key, or "" when no illustration is configured.
func (p *TemplatePage) BaseIllustration(gender, skinTone string) string {
	switch {
	case gender == GenderBoy && skinTone == SkinToneLight:
		return p.IllustrationBoyLight
	case gender == GenderBoy && skinTone == SkinToneDark:
		return p.IllustrationBoyDark
	case gender == GenderGirl && skinTone == SkinToneLight:
		return p.IllustrationGirlLight
	case gender == GenderGirl && skinTone == SkinToneDark:
		return p.IllustrationGirlDark
	}
	return ""
}

// ValidPosition reports whether s is one of the supported position presets.
func ValidPosition(s string) bool {
	switch s {
	case PositionTopLeft, PositionCenterLeft, PositionBottomLeft,
		PositionTopRight, PositionCenterRight, PositionBottomRight,
		PositionTopCenter, PositionBottomCenter, PositionCenterCenter:
		return true
	}
	return false
}

// ValidFontSize reports whether s is one of the supported size classes.
func ValidFontSize(s string) bool {
	return s == FontSizeSmall || s == FontSizeMedium || s == FontSizeLarge
}
