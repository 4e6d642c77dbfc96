package profile

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/govcon-responder/internal/extract"
)

var testIdentity = Identity{
	Name:  "Meridian Cyber Solutions",
	DUNS:  "078912345",
	NAICS: []string{"541512"},
}

func TestBuildAssemblesProfile(t *testing.T) {
	docs := []*extract.Document{
		{
			Path: "docs/capability_statement.txt",
			Hint: extract.DocumentProfile,
			Text: "- Zero trust architecture design and continuous monitoring for federal agencies\n" +
				"- Cloud migration of legacy workloads to FedRAMP authorized environments\n\n" +
				"We also hold NAICS 541519 and 541690 registrations.",
		},
		{
			Path: "docs/past_performance.txt",
			Hint: extract.DocumentPastPerformance,
			Text: "Client: Department of Energy\nSecured 12 SCADA networks across 4 sites.\nOutcome: zero findings on the follow-up audit.",
		},
		{
			Path: "docs/certifications.txt",
			Hint: extract.DocumentCertification,
			Text: "- ISO 27001\n- iso 27001\n- CISSP (4 staff)",
		},
	}

	p, err := NewBuilder(testIdentity, zap.NewNop()).Build(docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.CompanyName != "Meridian Cyber Solutions" {
		t.Fatalf("unexpected company name: %q", p.CompanyName)
	}

	wantNAICS := []string{"541512", "541519", "541690"}
	if len(p.NAICS) != len(wantNAICS) {
		t.Fatalf("expected NAICS %v, got %v", wantNAICS, p.NAICS)
	}
	for i, code := range wantNAICS {
		if p.NAICS[i] != code {
			t.Fatalf("expected NAICS %v, got %v", wantNAICS, p.NAICS)
		}
	}

	if len(p.Capabilities) != 3 {
		t.Fatalf("expected 3 capability statements, got %d: %+v", len(p.Capabilities), p.Capabilities)
	}
	if got := p.Capabilities[0].Text; got != "Zero trust architecture design and continuous monitoring for federal agencies" {
		t.Fatalf("unexpected first capability: %q", got)
	}

	foundTag := false
	for _, tag := range p.Capabilities[0].Tags {
		if tag == "zero trust" {
			foundTag = true
		}
	}
	if !foundTag {
		t.Fatalf("expected zero trust tag, got %v", p.Capabilities[0].Tags)
	}

	if len(p.PastPerformance) != 1 {
		t.Fatalf("expected 1 past performance entry, got %d", len(p.PastPerformance))
	}
	pp := p.PastPerformance[0]
	if pp.Client != "Department of Energy" {
		t.Fatalf("unexpected client: %q", pp.Client)
	}
	if pp.Outcome != "zero findings on the follow-up audit." {
		t.Fatalf("unexpected outcome: %q", pp.Outcome)
	}
	if pp.Scope == "" {
		t.Fatal("expected scope to be populated")
	}
}

func TestBuildDeduplicatesCertificationsCaseInsensitively(t *testing.T) {
	docs := []*extract.Document{
		{
			Path: "docs/certs.txt",
			Hint: extract.DocumentCertification,
			Text: "ISO 27001\nISO 27001\niso 27001\nCISSP",
		},
	}

	p, err := NewBuilder(testIdentity, zap.NewNop()).Build(docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count := 0
	for _, cert := range p.Certifications {
		if cert == "ISO 27001" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected single ISO 27001 entry, got certifications %v", p.Certifications)
	}
}

func TestBuildEmptyProfileIsFatal(t *testing.T) {
	tests := []struct {
		name string
		docs []*extract.Document
	}{
		{name: "no documents", docs: nil},
		{name: "only blank documents", docs: []*extract.Document{{Path: "a.txt", Text: "   "}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuilder(testIdentity, zap.NewNop()).Build(tt.docs)
			if !errors.Is(err, ErrEmptyProfile) {
				t.Fatalf("expected ErrEmptyProfile, got %v", err)
			}
		})
	}
}

func TestBuildClassifiesUnhintedDocuments(t *testing.T) {
	docs := []*extract.Document{
		{
			Path: "docs/unknown1.txt",
			Hint: extract.DocumentOther,
			Text: "Client: DHS\nPeriod of performance 2022-2024, delivered SOC modernization.\nOutcome: cut response time in half.",
		},
		{
			Path: "docs/unknown2.txt",
			Hint: extract.DocumentOther,
			Text: "Our engineers provide penetration testing and incident response services nationwide.",
		},
	}

	p, err := NewBuilder(testIdentity, zap.NewNop()).Build(docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(p.PastPerformance) != 1 {
		t.Fatalf("expected heuristic to classify past performance, got %d entries", len(p.PastPerformance))
	}
	if len(p.Capabilities) == 0 {
		t.Fatal("expected heuristic to classify capability text")
	}
}

func TestVersionIsStableAndContentSensitive(t *testing.T) {
	docs := []*extract.Document{
		{Path: "p.txt", Hint: extract.DocumentProfile, Text: "Network monitoring and vulnerability management services for agencies."},
	}

	builder := NewBuilder(testIdentity, zap.NewNop())

	p1, err := builder.Build(docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p2, err := builder.Build(docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p1.Version() == "" {
		t.Fatal("expected non-empty version")
	}
	if p1.Version() != p2.Version() {
		t.Fatalf("expected stable version, got %q vs %q", p1.Version(), p2.Version())
	}

	docs[0].Text += " Now with SIEM integration."
	p3, err := builder.Build(docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p3.Version() == p1.Version() {
		t.Fatal("expected version to change with content")
	}
}

func TestRelevantBoundsStatements(t *testing.T) {
	p := &CapabilityProfile{
		CompanyName: "Meridian Cyber Solutions",
		NAICS:       []string{"541512"},
		Capabilities: []Capability{
			{Text: "Mainframe COBOL maintenance for financial systems"},
			{Text: "Security operations center staffing and SIEM tuning", Tags: []string{"siem"}},
			{Text: "Penetration testing and vulnerability assessments", Tags: []string{"penetration testing", "vulnerability"}},
		},
		PastPerformance: []PastPerformance{
			{Client: "DOE", Scope: "SIEM deployment for national labs"},
			{Client: "USDA", Scope: "Farm subsidy portal maintenance"},
		},
	}

	subset := p.Relevant("Provide SIEM monitoring and penetration testing support", nil, 2)

	if len(subset.Capabilities) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(subset.Capabilities))
	}
	for _, c := range subset.Capabilities {
		if c.Text == "Mainframe COBOL maintenance for financial systems" {
			t.Fatalf("expected irrelevant statement to be dropped, got %+v", subset.Capabilities)
		}
	}

	if len(subset.PastPerformance) != 1 || subset.PastPerformance[0].Client != "DOE" {
		t.Fatalf("expected overlapping past performance only, got %+v", subset.PastPerformance)
	}
}

func TestExtractNAICSFiltersBogusSectors(t *testing.T) {
	codes := extractNAICS("codes 541512 and 999999 and 500000 and 541519, budget 100000 USD")
	want := map[string]bool{"541512": true, "541519": true}

	if len(codes) != len(want) {
		t.Fatalf("unexpected codes: %v", codes)
	}
	for _, code := range codes {
		if !want[code] {
			t.Fatalf("unexpected code %q in %v", code, codes)
		}
	}
}
