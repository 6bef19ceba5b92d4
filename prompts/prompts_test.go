package prompts

import (
	"strings"
	"testing"
)

func TestLoadEmbedded(t *testing.T) {
	if err := Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for _, name := range []string{"compatibility", "alternatives"} {
		if _, ok := templates[name]; !ok {
			t.Errorf("prompt %q missing from embedded templates", name)
		}
	}
}

func TestCompatibilityPrompt(t *testing.T) {
	system, user, err := Compatibility(CompatibilityData{
		Drug:       "aspirin",
		Conditions: []string{"Scoliosis", "Asthma"},
		LabelJSON:  `{"id":"x"}`,
	})
	if err != nil {
		t.Fatalf("Compatibility() error = %v", err)
	}

	for _, want := range []string{"STRONGLY ADVISE AGAINST", "PROCEED WITH CAUTION", "SAFE TO PROCEED", "2-4 concise reasons"} {
		if !strings.Contains(system, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}

	for _, want := range []string{
		"ProposedDrug: aspirin",
		"PatientAllergies: (none)",
		"PatientConditions: Scoliosis, Asthma",
		"PatientOngoingMeds: (none)",
		`{"id":"x"}`,
	} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q\n%s", want, user)
		}
	}
}

func TestAlternativesPrompt(t *testing.T) {
	system, user, err := Alternatives(AlternativesData{
		Issue:         "ACE inhibitor contraindicated in pregnancy",
		Count:         0,
		ArticlesBlock: "(no articles found)",
		Min:           1,
		Max:           4,
	})
	if err != nil {
		t.Fatalf("Alternatives() error = %v", err)
	}

	if !strings.Contains(system, "Output between 1 and 4 alternatives.") {
		t.Errorf("system prompt does not carry the bounds:\n%s", system)
	}
	if !strings.Contains(user, "Current/contraindicated option (if any):\n(none)") {
		t.Errorf("missing current option placeholder:\n%s", user)
	}
	if !strings.Contains(user, "Here are 0 PubMed articles") {
		t.Errorf("missing article count:\n%s", user)
	}
	if !strings.Contains(user, `"alternatives": [`) {
		t.Errorf("missing JSON shape:\n%s", user)
	}
}

func TestRenderUnknownPrompt(t *testing.T) {
	if _, _, err := Render("nope", nil); err == nil {
		t.Error("expected error for unknown prompt")
	}
}

func TestParseRejectsBadTemplate(t *testing.T) {
	_, err := parse([]byte("broken:\n  system: \"{{.Oops\"\n  user: ok\n"))
	if err == nil {
		t.Error("expected template parse error")
	}
}

func TestJoinList(t *testing.T) {
	if got := JoinList(nil); got != None {
		t.Errorf("JoinList(nil) = %q", got)
	}
	if got := JoinList([]string{"a", "b"}); got != "a, b" {
		t.Errorf("JoinList = %q", got)
	}
}
