package model

import (
	"fmt"
	"strings"
)

const (
	ResourceHeroSlides ResourceKey = "hero-slides"
	ResourceCTACards   ResourceKey = "cta-cards"
	ResourceBranches   ResourceKey = "branches"
	ResourceRates      ResourceKey = "rates"
	ResourceTeam       ResourceKey = "team"
	ResourceServices   ResourceKey = "services"
)

// Validator is implemented by item fields that have required-field rules.
type Validator interface {
	Validate() error
}

type HeroSlide struct {
	Title    string `json:"title" yaml:"title"`
	Subtitle string `json:"subtitle,omitempty" yaml:"subtitle"`
	ImageURL string `json:"imageUrl" yaml:"image_url"`
	CTALabel string `json:"ctaLabel,omitempty" yaml:"cta_label"`
	CTAHref  string `json:"ctaHref,omitempty" yaml:"cta_href"`
	Active   bool   `json:"active" yaml:"active"`
}

func (h HeroSlide) Validate() error {
	if err := required("title", h.Title); err != nil {
		return err
	}
	return required("imageUrl", h.ImageURL)
}

type CTACard struct {
	Title string `json:"title" yaml:"title"`
	Body  string `json:"body,omitempty" yaml:"body"`
	Href  string `json:"href" yaml:"href"`
	Icon  string `json:"icon,omitempty" yaml:"icon"`
}

func (c CTACard) Validate() error {
	if err := required("title", c.Title); err != nil {
		return err
	}
	return required("href", c.Href)
}

type Branch struct {
	Name      string  `json:"name" yaml:"name"`
	Address   string  `json:"address" yaml:"address"`
	City      string  `json:"city,omitempty" yaml:"city"`
	Phone     string  `json:"phone,omitempty" yaml:"phone"`
	Hours     string  `json:"hours,omitempty" yaml:"hours"`
	Latitude  float64 `json:"latitude,omitempty" yaml:"latitude"`
	Longitude float64 `json:"longitude,omitempty" yaml:"longitude"`
}

func (b Branch) Validate() error {
	if err := required("name", b.Name); err != nil {
		return err
	}
	return required("address", b.Address)
}

type Rate struct {
	Product    string  `json:"product" yaml:"product"`
	APR        float64 `json:"apr" yaml:"apr"`
	TermMonths int     `json:"termMonths" yaml:"term_months"`
	Note       string  `json:"note,omitempty" yaml:"note"`
}

func (r Rate) Validate() error {
	if err := required("product", r.Product); err != nil {
		return err
	}
	if r.APR < 0 {
		return &ValidationError{Field: "apr", Message: "must not be negative"}
	}
	if r.TermMonths <= 0 {
		return &ValidationError{Field: "termMonths", Message: "must be positive"}
	}
	return nil
}

type TeamMember struct {
	Name     string `json:"name" yaml:"name"`
	Role     string `json:"role" yaml:"role"`
	PhotoURL string `json:"photoUrl,omitempty" yaml:"photo_url"`
	Bio      string `json:"bio,omitempty" yaml:"bio"`
}

func (m TeamMember) Validate() error {
	if err := required("name", m.Name); err != nil {
		return err
	}
	return required("role", m.Role)
}

// ServiceBlock is a text block of the services page. Body is markdown.
type ServiceBlock struct {
	Heading string `json:"heading" yaml:"heading"`
	Body    string `json:"body" yaml:"body"`
}

func (s ServiceBlock) Validate() error {
	return required("heading", s.Heading)
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

// ValidateCollection returns the first ValidationError found in c, or nil.
func ValidateCollection[T any](c Collection[T]) error {
	seen := make(map[ItemID]bool, len(c))
	for _, it := range c {
		if it.ID == "" {
			return &ValidationError{Field: "id", Message: "is required"}
		}
		if seen[it.ID] {
			return &ValidationError{ItemID: it.ID, Field: "id", Message: "is duplicated"}
		}
		seen[it.ID] = true

		v, ok := any(it.Fields).(Validator)
		if !ok {
			continue
		}
		if err := v.Validate(); err != nil {
			if ve, ok := err.(*ValidationError); ok {
				out := *ve
				out.ItemID = it.ID
				return &out
			}
			return &ValidationError{ItemID: it.ID, Message: fmt.Sprint(err)}
		}
	}
	return nil
}
