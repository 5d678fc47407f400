package equipment

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("equipment not found")
	ErrDuplicateTag = errors.New("equipment tag already exists")
)

const (
	MinCriticality = 1
	MaxCriticality = 5

	maxTagLen  = 64
	maxTextLen = 255
)

// Equipment is a registered equipment instance
type Equipment struct {
	ID             uuid.UUID  `json:"id"`
	Tag            string     `json:"tag"`
	Name           string     `json:"name"`
	EquipmentClass string     `json:"equipmentClass"`
	EquipmentType  string     `json:"equipmentType"`
	Location       string     `json:"location,omitempty"`
	Criticality    int        `json:"criticality"`
	CreatedBy      *uuid.UUID `json:"createdBy,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Input is the body of POST and PUT /equipment
type Input struct {
	Tag            string `json:"tag" example:"P-101A"`
	Name           string `json:"name" example:"Feed pump A"`
	EquipmentClass string `json:"equipmentClass" example:"Pumps"`
	EquipmentType  string `json:"equipmentType" example:"Centrifugal"`
	Location       string `json:"location,omitempty" example:"Unit 100"`
	Criticality    int    `json:"criticality" example:"3"`
}

// FieldError reports the first invalid field of an Input
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Normalize trims the text fields and validates the result
func (in Input) Normalize() (Input, error) {
	out := Input{
		Tag:            strings.ToUpper(strings.TrimSpace(in.Tag)),
		Name:           strings.TrimSpace(in.Name),
		EquipmentClass: strings.TrimSpace(in.EquipmentClass),
		EquipmentType:  strings.TrimSpace(in.EquipmentType),
		Location:       strings.TrimSpace(in.Location),
		Criticality:    in.Criticality,
	}

	required := []struct {
		field, value string
		max          int
	}{
		{"tag", out.Tag, maxTagLen},
		{"name", out.Name, maxTextLen},
		{"equipmentClass", out.EquipmentClass, maxTextLen},
		{"equipmentType", out.EquipmentType, maxTextLen},
	}
	for _, f := range required {
		if f.value == "" {
			return Input{}, &FieldError{Field: f.field, Message: f.field + " is required"}
		}
		if utf8.RuneCountInString(f.value) > f.max {
			return Input{}, &FieldError{Field: f.field, Message: fmt.Sprintf("%s must be at most %d characters", f.field, f.max)}
		}
	}

	if utf8.RuneCountInString(out.Location) > maxTextLen {
		return Input{}, &FieldError{Field: "location", Message: fmt.Sprintf("location must be at most %d characters", maxTextLen)}
	}

	if out.Criticality < MinCriticality || out.Criticality > MaxCriticality {
		return Input{}, &FieldError{
			Field:   "criticality",
			Message: fmt.Sprintf("criticality must be between %d and %d", MinCriticality, MaxCriticality),
		}
	}

	return out, nil
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Search         string
	EquipmentClass string
	Limit          int
	Offset         int
}
