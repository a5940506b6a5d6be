package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	GenderBoy  = "boy"
	GenderGirl = "girl"

	SkinToneLight = "light"
	SkinToneDark  = "dark"
)

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	OrderID string      `bun:"order_id,pk" json:"order_id"`
	Status  OrderStatus `bun:"status,notnull" json:"status"`

	ChildName    string `bun:"child_name" json:"child_name"`
	ChildAge     int    `bun:"child_age" json:"child_age"`
	Gender       string `bun:"gender" json:"gender"`
	SkinTone     string `bun:"skin_tone" json:"skin_tone"`
	FacePhotoRef string `bun:"face_photo_ref" json:"face_photo_ref"`

	BuyerName  string `bun:"buyer_name" json:"buyer_name"`
	BuyerEmail string `bun:"buyer_email" json:"buyer_email"`
	BuyerPhone string `bun:"buyer_phone" json:"buyer_phone"`

	CouponCode    string    `bun:"coupon_code,nullzero" json:"coupon_code,omitempty"`
	BookPrice     float64   `bun:"book_price" json:"book_price"`
	FinalPrice    float64   `bun:"final_price" json:"final_price"`
	TransactionID string    `bun:"transaction_id,nullzero" json:"transaction_id,omitempty"`
	PaidAt        time.Time `bun:"paid_at,nullzero" json:"paid_at,omitempty"`

	TemplateID string `bun:"template_id,notnull" json:"template_id"`

	PersonalizationInitiated bool `bun:"personalization_initiated" json:"personalization_initiated"`

	DocumentRef string `bun:"document_ref,nullzero" json:"document_ref,omitempty"`
	DocumentURL string `bun:"document_url,nullzero" json:"document_url,omitempty"`

	CreatedAt       time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
	StatusChangedAt time.Time `bun:"status_changed_at,notnull" json:"status_changed_at"`

	// Pages is populated by the store, index-aligned with the template.
	Pages []GeneratedPage `bun:"-" json:"pages,omitempty"`
}

// GeneratedPage is the per-page working data for one order. Rows are created
// at the text stage and mutated in place by successive runners, never deleted.
type GeneratedPage struct {
	bun.BaseModel `bun:"table:generated_pages"`

	OrderID   string `bun:"order_id,pk" json:"order_id"`
	PageIndex int    `bun:"page_index,pk" json:"page_index"`

	Text                string `bun:"text" json:"text"`
	TaskHandle          string `bun:"task_handle,nullzero" json:"task_handle,omitempty"`
	IllustrationRef     string `bun:"illustration_ref,nullzero" json:"illustration_ref,omitempty"`
	SkipPersonalization bool   `bun:"skip_personalization" json:"skip_personalization"`
	FinalImageRef       string `bun:"final_image_ref,nullzero" json:"final_image_ref,omitempty"`
	FailureCount        int    `bun:"failure_count" json:"failure_count"`
}

type OrderRequest struct {
	ChildName    string `json:"child_name"`
	ChildAge     int    `json:"child_age"`
	Gender       string `json:"gender"`
	SkinTone     string `json:"skin_tone"`
	FacePhotoRef string `json:"face_photo_ref"`
	BuyerName    string `json:"buyer_name"`
	BuyerEmail   string `json:"buyer_email"`
	BuyerPhone   string `json:"buyer_phone"`
	CouponCode   string `json:"coupon_code,omitempty"`
}

type OrderResponse struct {
	OrderID    string      `json:"order_id"`
	Status     OrderStatus `json:"status"`
	TemplateID string      `json:"template_id"`
	BookPrice  float64     `json:"book_price"`
	FinalPrice float64     `json:"final_price"`
}
