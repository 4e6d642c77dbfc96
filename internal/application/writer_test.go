package application

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWritePackage(t *testing.T) {
	app := New("sam.gov/A-1", "abc123", completeSections(), generatedAt)
	opp := genOpportunity()

	dir, err := WritePackage(t.TempDir(), app, opp)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	base := filepath.Base(dir)
	if !strings.HasPrefix(base, "sam.gov-A-1_") {
		t.Fatalf("unexpected package directory name: %q", base)
	}

	for _, name := range SectionNames {
		payload, err := os.ReadFile(filepath.Join(dir, name+".txt"))
		if err != nil {
			t.Fatalf("missing section file %s: %v", name, err)
		}
		if !strings.Contains(string(payload), "text for "+name) {
			t.Fatalf("unexpected section file contents: %q", payload)
		}
	}

	complete, err := os.ReadFile(filepath.Join(dir, "complete_application.txt"))
	if err != nil {
		t.Fatalf("missing complete application: %v", err)
	}
	if !strings.Contains(string(complete), "COVER LETTER") {
		t.Fatalf("unexpected complete application contents: %q", complete)
	}

	payload, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		t.Fatalf("missing metadata: %v", err)
	}

	var meta struct {
		Opportunity struct {
			Title string `json:"title"`
		} `json:"opportunity"`
		Application struct {
			Status         string `json:"status"`
			ProfileVersion string `json:"profile_version"`
		} `json:"application"`
	}
	if err := json.Unmarshal(payload, &meta); err != nil {
		t.Fatalf("failed to decode metadata: %v", err)
	}
	if meta.Opportunity.Title != "SOC Support" {
		t.Fatalf("unexpected metadata opportunity: %+v", meta.Opportunity)
	}
	if meta.Application.Status != "pending" || meta.Application.ProfileVersion != "abc123" {
		t.Fatalf("unexpected metadata application: %+v", meta.Application)
	}
}

func TestWritePackageIncludesFailureNotes(t *testing.T) {
	sections := completeSections()
	sections[0] = Section{Name: sections[0].Name, Text: FailedSectionPlaceholder, Note: "model timeout", Failed: true}
	app := New("sam.gov/A-1", "abc123", sections, generatedAt)

	dir, err := WritePackage(t.TempDir(), app, genOpportunity())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	payload, err := os.ReadFile(filepath.Join(dir, "cover_letter.txt"))
	if err != nil {
		t.Fatalf("missing section file: %v", err)
	}
	if !strings.Contains(string(payload), "model timeout") {
		t.Fatalf("expected failure note in section file, got %q", payload)
	}
}
