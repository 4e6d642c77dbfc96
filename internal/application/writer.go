package application

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spigell/govcon-responder/internal/opportunity"
)

// packageMetadata is the metadata.json payload of a written package.
type packageMetadata struct {
	Opportunity *opportunity.Opportunity `json:"opportunity"`
	Application *Application             `json:"application"`
}

// WritePackage materializes the application under baseDir as one directory
// per package: a .txt file per section, the joined document, and a
// metadata.json carrying the listing and the approval state. It returns the
// package directory path.
func WritePackage(baseDir string, app *Application, opp *opportunity.Opportunity) (string, error) {
	if app == nil {
		return "", fmt.Errorf("application is required")
	}

	dir := filepath.Join(baseDir, packageDirName(app))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create package directory: %w", err)
	}

	for _, section := range app.Sections {
		text := section.Text
		if section.Failed && section.Note != "" {
			text += "\n[note: " + section.Note + "]"
		}
		path := filepath.Join(dir, section.Name+".txt")
		if err := os.WriteFile(path, []byte(text+"\n"), 0o644); err != nil {
			return "", fmt.Errorf("write section %s: %w", section.Name, err)
		}
	}

	complete := filepath.Join(dir, "complete_application.txt")
	if err := os.WriteFile(complete, []byte(app.Render()+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write complete application: %w", err)
	}

	payload, err := json.MarshalIndent(&packageMetadata{Opportunity: opp, Application: app}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal package metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), payload, 0o644); err != nil {
		return "", fmt.Errorf("write package metadata: %w", err)
	}

	return dir, nil
}

func packageDirName(app *Application) string {
	return sanitize(app.OpportunityID) + "_" + app.GeneratedAt.Format("20060102-150405")
}

// sanitize keeps directory names filesystem-safe across platforms.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}
