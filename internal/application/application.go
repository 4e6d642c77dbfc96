// Package application assembles, tracks and renders bid application
// packages. An application's approval status may only move from pending to
// approved or rejected, and approval requires every section to have been
// generated successfully.
package application

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the approval state of an application.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// SectionNames is the fixed section set of every application, in render
// order.
var SectionNames = []string{
	"cover_letter",
	"technical_approach",
	"past_performance",
	"team_qualifications",
	"executive_summary",
}

// FailedSectionPlaceholder stands in for the text of a section whose
// generation failed.
const FailedSectionPlaceholder = "[section generation failed]"

// Section is one generated application section.
type Section struct {
	Name string `json:"name"`
	Text string `json:"text"`
	// Note carries the failure reason when generation failed.
	Note   string `json:"note,omitempty"`
	Failed bool   `json:"failed,omitempty"`
}

// Application is one generated bid package for an opportunity.
type Application struct {
	OpportunityID  string    `json:"opportunity_id"`
	ProfileVersion string    `json:"profile_version"`
	Sections       []Section `json:"sections"`
	GeneratedAt    time.Time `json:"generated_at"`

	status Status
}

// New creates a pending application.
func New(opportunityID, profileVersion string, sections []Section, generatedAt time.Time) *Application {
	return &Application{
		OpportunityID:  opportunityID,
		ProfileVersion: profileVersion,
		Sections:       sections,
		GeneratedAt:    generatedAt,
		status:         StatusPending,
	}
}

// Status returns the approval state.
func (a *Application) Status() Status {
	if a.status == "" {
		return StatusPending
	}
	return a.status
}

// Complete reports whether every section was generated successfully.
func (a *Application) Complete() bool {
	if len(a.Sections) != len(SectionNames) {
		return false
	}
	for _, section := range a.Sections {
		if section.Failed {
			return false
		}
	}
	return true
}

// FailedSections returns the names of sections whose generation failed.
func (a *Application) FailedSections() []string {
	var failed []string
	for _, section := range a.Sections {
		if section.Failed {
			failed = append(failed, section.Name)
		}
	}
	return failed
}

// Approve transitions pending to approved. It refuses applications with
// failed sections.
func (a *Application) Approve() error {
	if a.Status() != StatusPending {
		return fmt.Errorf("application is already %s", a.Status())
	}
	if !a.Complete() {
		return fmt.Errorf("application has failed sections: %s", strings.Join(a.FailedSections(), ", "))
	}
	a.status = StatusApproved
	return nil
}

// Reject transitions pending to rejected. Incomplete applications may be
// rejected.
func (a *Application) Reject() error {
	if a.Status() != StatusPending {
		return fmt.Errorf("application is already %s", a.Status())
	}
	a.status = StatusRejected
	return nil
}

// Section returns the named section, or nil.
func (a *Application) Section(name string) *Section {
	for i := range a.Sections {
		if a.Sections[i].Name == name {
			return &a.Sections[i]
		}
	}
	return nil
}

// Render joins all sections into one submission-ready document.
func (a *Application) Render() string {
	var builder strings.Builder
	for i, section := range a.Sections {
		if i > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(sectionTitle(section.Name))
		builder.WriteString("\n\n")
		builder.WriteString(section.Text)
		if section.Failed && section.Note != "" {
			builder.WriteString("\n[note: ")
			builder.WriteString(section.Note)
			builder.WriteString("]")
		}
	}
	return builder.String()
}

func sectionTitle(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "_", " "))
}

// MarshalJSON includes the approval status alongside the exported fields.
func (a *Application) MarshalJSON() ([]byte, error) {
	type alias Application
	return json.Marshal(struct {
		*alias
		Status Status `json:"status"`
	}{
		alias:  (*alias)(a),
		Status: a.Status(),
	})
}
