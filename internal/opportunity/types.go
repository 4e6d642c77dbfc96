// Package opportunity defines the canonical contract opportunity record and
// the per-source normalization that produces it from raw listings.
package opportunity

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

// Opportunity is one normalized contract listing. All downstream stages
// (matching, decision, generation, submission) consume this shape regardless
// of which source produced it.
type Opportunity struct {
	SourceID     string    `json:"source_id"`
	Source       string    `json:"source"`
	Title        string    `json:"title"`
	Agency       string    `json:"agency,omitempty"`
	Requirements string    `json:"requirements"`
	NAICS        []string  `json:"naics,omitempty"`
	SetAside     string    `json:"set_aside,omitempty"`
	DueDate      time.Time `json:"due_date"`
	PostedDate   time.Time `json:"posted_date,omitempty"`
	URL          string    `json:"url,omitempty"`
}

// ID returns the cross-source identifier used for history tracking and
// deduplication. Source identifiers are only unique within one source.
func (o *Opportunity) ID() string {
	return o.Source + "/" + o.SourceID
}

// HasNAICS reports whether the listing carries the given code.
func (o *Opportunity) HasNAICS(code string) bool {
	for _, c := range o.NAICS {
		if c == code {
			return true
		}
	}
	return false
}

// Opportunities is a collection of normalized listings.
type Opportunities []*Opportunity

func (o Opportunities) Len() int {
	return len(o)
}

// FindByID returns the listing with the given cross-source ID, or nil.
func (o Opportunities) FindByID(id string) *Opportunity {
	for _, opp := range o {
		if opp.ID() == id {
			return opp
		}
	}
	return nil
}

// IDs returns the cross-source IDs in collection order.
func (o Opportunities) IDs() []string {
	ids := make([]string, 0, len(o))
	for _, opp := range o {
		ids = append(ids, opp.ID())
	}
	return ids
}

// ExcludeIDs returns the listings whose ID is not in the given set,
// preserving order.
func (o Opportunities) ExcludeIDs(ids map[string]bool) Opportunities {
	if len(ids) == 0 {
		return o
	}
	kept := make(Opportunities, 0, len(o))
	for _, opp := range o {
		if !ids[opp.ID()] {
			kept = append(kept, opp)
		}
	}
	return kept
}

// CountBySource returns the number of listings per source name.
func (o Opportunities) CountBySource() map[string]int {
	counts := make(map[string]int)
	for _, opp := range o {
		counts[opp.Source]++
	}
	return counts
}

// Sort orders the collection by due date ascending, breaking ties by ID so
// the order is stable across runs.
func (o Opportunities) Sort() {
	sort.SliceStable(o, func(i, j int) bool {
		if !o[i].DueDate.Equal(o[j].DueDate) {
			return o[i].DueDate.Before(o[j].DueDate)
		}
		return o[i].ID() < o[j].ID()
	})
}

// WriteFile dumps the collection as indented JSON, mainly for run artifacts
// and debugging.
func (o Opportunities) WriteFile(path string) error {
	payload, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling opportunities: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
