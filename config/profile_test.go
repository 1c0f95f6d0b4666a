package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeProfile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frontdesk.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeProfile(t, `
name: Kowalski Plumbing
trade: plumber
contact: "07700 900123, open 8-6 Mon-Sat"
services: |
  - Boiler repair
  - Leak detection
pricing: |
  - Callout: £60
website: https://kowalski-plumbing.example
`)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Name != "Kowalski Plumbing" {
		t.Errorf("Name = %q", p.Name)
	}
	if p.Trade != "plumber" {
		t.Errorf("Trade = %q", p.Trade)
	}
	if !strings.Contains(p.Services, "Boiler repair") {
		t.Errorf("Services = %q", p.Services)
	}
	if !p.GroundingEnabled() {
		t.Error("website set but grounding disabled")
	}
}

func TestLoadRequiresName(t *testing.T) {
	path := writeProfile(t, "trade: electrician\n")
	if _, err := Load(path); err == nil {
		t.Fatal("profile without name accepted")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeProfile(t, "name: [unclosed\n")
	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml accepted")
	}
}

func TestGreetingIsFixedForm(t *testing.T) {
	p := &BusinessProfile{Name: "Ace Roofing"}
	want := "Thank you for calling Ace Roofing. How can I help you today?"
	if got := p.Greeting(); got != want {
		t.Errorf("Greeting = %q, want %q", got, want)
	}
}

func TestSystemInstruction(t *testing.T) {
	p := &BusinessProfile{
		Name:    "Ace Roofing",
		Trade:   "roofer",
		Pricing: "- Gutter clean: £80",
		Website: "https://ace-roofing.example",
	}
	instr := p.SystemInstruction()

	for _, want := range []string{
		"phone receptionist for Ace Roofing",
		"roofer",
		"Gutter clean: £80",
		"https://ace-roofing.example",
		p.Greeting(),
	} {
		if !strings.Contains(instr, want) {
			t.Errorf("instruction missing %q", want)
		}
	}
}

func TestSystemInstructionWithoutPricingForbidsQuotes(t *testing.T) {
	p := &BusinessProfile{Name: "Ace Roofing"}
	instr := p.SystemInstruction()
	if !strings.Contains(instr, "Never invent prices") {
		t.Error("no price guard in instruction without pricing")
	}
}

func TestGroundingDisabledWithoutWebsite(t *testing.T) {
	p := &BusinessProfile{Name: "Ace Roofing", Website: "   "}
	if p.GroundingEnabled() {
		t.Error("blank website enabled grounding")
	}
}
