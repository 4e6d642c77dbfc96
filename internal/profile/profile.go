// Package profile builds and holds the normalized company capability record
// that every opportunity is scored against. A profile is built once per run
// and treated as immutable afterwards.
package profile

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Capability is one capability statement with its inferred tags.
type Capability struct {
	Text string   `json:"text"`
	Tags []string `json:"tags,omitempty"`
}

// PastPerformance summarizes one prior engagement.
type PastPerformance struct {
	Client  string `json:"client"`
	Scope   string `json:"scope"`
	Outcome string `json:"outcome,omitempty"`
}

// CapabilityProfile is the company capability record consumed by the matcher
// and the application generator.
type CapabilityProfile struct {
	CompanyName     string            `json:"company_name"`
	DUNS            string            `json:"duns,omitempty"`
	NAICS           []string          `json:"naics"`
	Capabilities    []Capability      `json:"capabilities"`
	Certifications  []string          `json:"certifications,omitempty"`
	PastPerformance []PastPerformance `json:"past_performance,omitempty"`

	version string
}

// Version returns a stable content hash identifying this profile. Regenerating
// an application for the same (opportunity, profile version) pair is expected
// to be cacheable.
func (p *CapabilityProfile) Version() string {
	if p.version != "" {
		return p.version
	}
	return computeVersion(p)
}

func computeVersion(p *CapabilityProfile) string {
	payload, err := json.Marshal(p)
	if err != nil {
		payload = []byte(fmt.Sprintf("%+v", p))
	}
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("%x", sum[:6])
}

// HasNAICS reports whether the profile carries the given code.
func (p *CapabilityProfile) HasNAICS(code string) bool {
	for _, c := range p.NAICS {
		if c == code {
			return true
		}
	}
	return false
}

// Relevant returns a bounded copy of the profile for prompt grounding: the
// full identity and certifications plus the capability statements and past
// performance entries that overlap the given requirement text or codes. The
// full statement list is used when nothing overlaps so the prompt is never
// grounded on an empty capability set.
func (p *CapabilityProfile) Relevant(requirements string, codes []string, maxStatements int) *CapabilityProfile {
	if maxStatements <= 0 {
		maxStatements = len(p.Capabilities)
	}

	terms := Tokenize(requirements)
	for _, code := range codes {
		terms[strings.ToLower(code)] = true
	}

	type ranked struct {
		cap   Capability
		score int
		pos   int
	}

	rankedCaps := make([]ranked, 0, len(p.Capabilities))
	for i, c := range p.Capabilities {
		score := 0
		for term := range Tokenize(c.Text) {
			if terms[term] {
				score++
			}
		}
		for _, tag := range c.Tags {
			if terms[strings.ToLower(tag)] {
				score += 2
			}
		}
		rankedCaps = append(rankedCaps, ranked{cap: c, score: score, pos: i})
	}

	sort.SliceStable(rankedCaps, func(i, j int) bool {
		if rankedCaps[i].score != rankedCaps[j].score {
			return rankedCaps[i].score > rankedCaps[j].score
		}
		return rankedCaps[i].pos < rankedCaps[j].pos
	})

	subset := &CapabilityProfile{
		CompanyName:    p.CompanyName,
		DUNS:           p.DUNS,
		NAICS:          append([]string(nil), p.NAICS...),
		Certifications: append([]string(nil), p.Certifications...),
	}

	for i, rc := range rankedCaps {
		if i >= maxStatements {
			break
		}
		subset.Capabilities = append(subset.Capabilities, rc.cap)
	}

	for _, pp := range p.PastPerformance {
		overlap := 0
		for term := range Tokenize(pp.Scope + " " + pp.Outcome) {
			if terms[term] {
				overlap++
			}
		}
		if overlap > 0 {
			subset.PastPerformance = append(subset.PastPerformance, pp)
		}
	}
	if len(subset.PastPerformance) == 0 {
		subset.PastPerformance = append([]PastPerformance(nil), p.PastPerformance...)
	}

	return subset
}

// Tokenize lowercases the text and returns the set of searchable terms,
// dropping stop words and short tokens.
func Tokenize(text string) map[string]bool {
	terms := make(map[string]bool)
	token := strings.Builder{}

	flush := func() {
		if token.Len() == 0 {
			return
		}
		word := token.String()
		token.Reset()
		if len(word) < 3 || stopWords[word] {
			return
		}
		terms[word] = true
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			token.WriteRune(r)
		default:
			flush()
		}
	}
	flush()

	return terms
}
