// Package agents resolves which persona answers a turn: the built-in triage
// agent with its specialists, or a one-turn persona described by the caller.
package agents

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/ainexus/ainexus/gateway/pkg/models"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is the YAML description of the built-in agents.
type Catalog struct {
	Triage      AgentDef   `yaml:"triage"`
	Specialists []AgentDef `yaml:"specialists"`
}

// AgentDef is one built-in agent.
type AgentDef struct {
	Name         string `yaml:"name"`
	Handoff      string `yaml:"handoff"`
	Instructions string `yaml:"instructions"`
}

// ParseCatalog decodes a catalog and checks that every agent is usable.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse agent catalog: %w", err)
	}
	if c.Triage.Name == "" || strings.TrimSpace(c.Triage.Instructions) == "" {
		return nil, fmt.Errorf("agent catalog: triage agent needs a name and instructions")
	}
	seen := map[string]bool{}
	for i, s := range c.Specialists {
		if s.Name == "" || strings.TrimSpace(s.Instructions) == "" {
			return nil, fmt.Errorf("agent catalog: specialist %d needs a name and instructions", i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("agent catalog: duplicate specialist %q", s.Name)
		}
		seen[s.Name] = true
	}
	return &c, nil
}

// Selector implements contracts.AgentSelector.
type Selector struct {
	triage *models.ResolvedAgent
}

// NewSelector builds the triage agent from the embedded catalog.
func NewSelector() (*Selector, error) {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		return nil, err
	}
	return NewSelectorFromCatalog(c), nil
}

// NewSelectorFromCatalog builds the triage agent from c.
func NewSelectorFromCatalog(c *Catalog) *Selector {
	triage := &models.ResolvedAgent{
		Kind:         models.AgentBuiltin,
		Name:         c.Triage.Name,
		Instructions: strings.TrimSpace(c.Triage.Instructions),
	}
	for _, s := range c.Specialists {
		triage.Handoffs = append(triage.Handoffs, &models.ResolvedAgent{
			Kind:               models.AgentBuiltin,
			Name:               s.Name,
			Instructions:       strings.TrimSpace(s.Instructions),
			HandoffDescription: s.Handoff,
		})
	}
	return &Selector{triage: triage}
}

// Triage returns the built-in routing agent.
func (s *Selector) Triage() *models.ResolvedAgent {
	return s.triage
}

// Select returns the triage agent unless spec asks for a custom persona.
func (s *Selector) Select(spec *models.AgentSpec) *models.ResolvedAgent {
	if spec == nil || !spec.IsCustom {
		return s.triage
	}

	name := strings.TrimSpace(spec.Title)
	if name == "" {
		name = "Custom Agent"
	}
	return &models.ResolvedAgent{
		Kind:         models.AgentCustom,
		Name:         name,
		Instructions: CustomInstructions(spec),
	}
}

// CustomInstructions renders a custom persona. Lines for empty optional
// fields are left out entirely.
func CustomInstructions(spec *models.AgentSpec) string {
	title := strings.TrimSpace(spec.Title)
	if title == "" {
		title = "Custom Agent"
	}

	lines := []string{fmt.Sprintf("You are %s, a specialized AI assistant.", title)}
	if p := strings.TrimSpace(spec.Personality); p != "" {
		lines = append(lines, "Personality: "+p)
	}
	if e := strings.TrimSpace(spec.Expertise); e != "" {
		lines = append(lines, fmt.Sprintf("Expertise: You specialize in %s.", e))
	}
	if sp := strings.TrimSpace(spec.SystemPrompt); sp != "" {
		lines = append(lines, "Additional Instructions: "+sp)
	}
	lines = append(lines, "Please respond in character and use your specialized knowledge to help the user.")

	return strings.Join(lines, "\n\n")
}
