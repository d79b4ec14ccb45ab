package models

import (
	"strings"
	"time"
)

// RiskLevel is the closed set of clinical risk levels.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Valid reports whether l is one of the known levels.
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// Urgent reports whether the level warrants notifying the clinician.
func (l RiskLevel) Urgent() bool {
	return l == RiskHigh || l == RiskCritical
}

// RiskCategory is the closed set of clinical risk categories.
type RiskCategory string

const (
	CategoryAnxiety    RiskCategory = "anxiety"
	CategoryDepression RiskCategory = "depression"
	CategorySuicide    RiskCategory = "suicide"
	CategorySelfHarm   RiskCategory = "self-harm"
	CategoryStress     RiskCategory = "stress"
	CategoryOther      RiskCategory = "other"
)

// Valid reports whether c is one of the known categories.
func (c RiskCategory) Valid() bool {
	switch c {
	case CategoryAnxiety, CategoryDepression, CategorySuicide, CategorySelfHarm, CategoryStress, CategoryOther:
		return true
	}
	return false
}

// ParseRiskLevel normalizes s and reports whether it names a known level.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	l := RiskLevel(strings.ToLower(strings.TrimSpace(s)))
	return l, l.Valid()
}

// ParseRiskCategory normalizes s and reports whether it names a known category.
func ParseRiskCategory(s string) (RiskCategory, bool) {
	c := RiskCategory(strings.ToLower(strings.TrimSpace(s)))
	return c, c.Valid()
}

// ClinicalNote is the narrative report produced for a client.
type ClinicalNote struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"client_id"`
	ClinicianID string    `json:"clinician_id"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// RiskFlag is the risk classification attached to a ClinicalNote.
type RiskFlag struct {
	ID          string       `json:"id"`
	NoteID      string       `json:"note_id"`
	ClientID    string       `json:"client_id"`
	ClinicianID string       `json:"clinician_id"`
	Level       RiskLevel    `json:"level"`
	Category    RiskCategory `json:"category"`
	CreatedAt   time.Time    `json:"created_at"`
}
