package models

import (
	"time"

	"github.com/google/uuid"
)

// Surface identifies which Naver result page a capture targets.
type Surface string

const (
	SurfaceSearch   Surface = "search"
	SurfaceShopping Surface = "shopping"
)

// SectionKind identifies the page section being captured.
type SectionKind string

const (
	SectionPowerLink    SectionKind = "powerlink"
	SectionPriceCompare SectionKind = "price-compare"
	SectionShopping     SectionKind = "shopping"
)

type CaptureStatus string

const (
	StatusPending   CaptureStatus = "pending"
	StatusCompleted CaptureStatus = "completed"
	StatusFailed    CaptureStatus = "failed"
)

// Region is a rectangle in CSS page coordinates.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CaptureRecord is the stored outcome of one section capture attempt.
type CaptureRecord struct {
	ID            string        `json:"id" db:"id"`
	Keyword       string        `json:"keyword" db:"keyword"`
	Surface       Surface       `json:"surface" db:"surface"`
	SectionKind   SectionKind   `json:"section_kind" db:"section_kind"`
	PageURL       string        `json:"page_url" db:"page_url"`
	Selector      string        `json:"selector,omitempty" db:"selector"`
	Strategy      string        `json:"strategy,omitempty" db:"strategy"`
	CaptureMethod string        `json:"capture_method,omitempty" db:"capture_method"`
	ObjectKey     string        `json:"object_key,omitempty" db:"object_key"`
	ImageURL      string        `json:"image_url,omitempty" db:"image_url"`
	ImageBytes    int           `json:"image_bytes" db:"image_bytes"`
	Region        Region        `json:"region" db:"region"`
	Status        CaptureStatus `json:"status" db:"status"`
	Error         string        `json:"error,omitempty" db:"error_message"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

func NewCaptureRecord(keyword string, surface Surface, kind SectionKind) *CaptureRecord {
	now := time.Now().UTC()
	return &CaptureRecord{
		ID:          uuid.NewString(),
		Keyword:     keyword,
		Surface:     surface,
		SectionKind: kind,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Complete marks the record as successfully captured and uploaded.
func (r *CaptureRecord) Complete(objectKey, imageURL string, size int) {
	r.ObjectKey = objectKey
	r.ImageURL = imageURL
	r.ImageBytes = size
	r.Status = StatusCompleted
	r.Error = ""
	r.UpdatedAt = time.Now().UTC()
}

// Fail marks the record as failed with the given reason.
func (r *CaptureRecord) Fail(reason string) {
	r.Status = StatusFailed
	r.Error = reason
	r.UpdatedAt = time.Now().UTC()
}

func ParseSurface(s string) (Surface, bool) {
	switch Surface(s) {
	case SurfaceSearch, SurfaceShopping:
		return Surface(s), true
	}
	return "", false
}

func ParseSectionKind(s string) (SectionKind, bool) {
	switch SectionKind(s) {
	case SectionPowerLink, SectionPriceCompare, SectionShopping:
		return SectionKind(s), true
	}
	return "", false
}
