package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// BusinessProfile is the read-only business configuration the session is
// built from. It is edited and persisted elsewhere; this package only loads
// it and assembles the session instruction text.
type BusinessProfile struct {
	Name         string `yaml:"name"`
	Trade        string `yaml:"trade"`
	Contact      string `yaml:"contact"`
	Services     string `yaml:"services"`
	Pricing      string `yaml:"pricing"`
	Availability string `yaml:"availability"`
	Knowledge    string `yaml:"knowledge"`
	Website      string `yaml:"website"`
}

func Load(path string) (*BusinessProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}
	var p BusinessProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("profile %s: business name is required", path)
	}
	return &p, nil
}

// GroundingEnabled reports whether web-search grounding should be offered to
// the remote service. It is tied to having a website to ground against.
func (p *BusinessProfile) GroundingEnabled() bool {
	return strings.TrimSpace(p.Website) != ""
}

// Greeting returns the fixed opening line the assistant must speak verbatim
// before processing any caller input.
func (p *BusinessProfile) Greeting() string {
	return fmt.Sprintf("Thank you for calling %s. How can I help you today?", p.Name)
}

// SystemInstruction assembles the session instruction from the profile.
func (p *BusinessProfile) SystemInstruction() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the phone receptionist for %s", p.Name)
	if p.Trade != "" {
		fmt.Fprintf(&b, ", a %s business", p.Trade)
	}
	b.WriteString(". Speak naturally and keep answers short; the caller hears you, they do not read you.\n")

	if p.Contact != "" {
		fmt.Fprintf(&b, "Contact details: %s\n", p.Contact)
	}
	if p.Services != "" {
		fmt.Fprintf(&b, "Services offered:\n%s\n", p.Services)
	}
	if p.Pricing != "" {
		fmt.Fprintf(&b, "Pricing guidance:\n%s\n", p.Pricing)
		b.WriteString("Only quote prices listed above. If a job is not listed, say an exact quote needs a callback from the team.\n")
	} else {
		b.WriteString("Never invent prices. If asked about cost, say the team will follow up with a quote.\n")
	}
	if p.Availability != "" {
		fmt.Fprintf(&b, "Availability:\n%s\n", p.Availability)
	}
	if p.Knowledge != "" {
		fmt.Fprintf(&b, "Additional knowledge base:\n%s\n", p.Knowledge)
	}
	if p.GroundingEnabled() {
		fmt.Fprintf(&b, "You may consult %s through the search tool when a question is not covered above.\n", p.Website)
	}

	fmt.Fprintf(&b, "Open every call with exactly: %q", p.Greeting())
	return b.String()
}
