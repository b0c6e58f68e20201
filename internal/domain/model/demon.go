// Package model contains domain models passed between layers.
package model

import "strings"

// MaxProgress is the progress value of a completed record.
const MaxProgress = 100

// Demon is an entry on the ranked list. Position is 1-based and dense
// across all demons.
type Demon struct {
	ID          int64  `json:"id"`
	Position    int    `json:"position"`
	Name        string `json:"name"`
	Requirement int    `json:"requirement"`
	Publisher   string `json:"publisher"`
	Verifier    string `json:"verifier"`
	Video       string `json:"video,omitempty"`
}

// DemonPatch describes attribute changes that leave the position untouched.
// Nil fields are not modified.
type DemonPatch struct {
	Name        *string
	Requirement *int
	Publisher   *string
	Verifier    *string
	Video       *string
}

// Empty reports whether the patch changes nothing.
func (p DemonPatch) Empty() bool {
	return p.Name == nil && p.Requirement == nil && p.Publisher == nil && p.Verifier == nil && p.Video == nil
}

// Apply returns d with the patch applied.
func (p DemonPatch) Apply(d Demon) Demon {
	if p.Name != nil {
		d.Name = strings.TrimSpace(*p.Name)
	}
	if p.Requirement != nil {
		d.Requirement = *p.Requirement
	}
	if p.Publisher != nil {
		d.Publisher = strings.TrimSpace(*p.Publisher)
	}
	if p.Verifier != nil {
		d.Verifier = strings.TrimSpace(*p.Verifier)
	}
	if p.Video != nil {
		d.Video = strings.TrimSpace(*p.Video)
	}
	return d
}

// ValidRequirement reports whether r is a usable progress requirement.
func ValidRequirement(r int) bool {
	return r >= 0 && r <= MaxProgress
}
