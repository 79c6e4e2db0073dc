package scenario

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/comigor/mrlift-console/internal/domain"
)

var ErrUnknownScenario = errors.New("scenario: unknown scenario")

// QuickPrompts are the single-turn probes offered next to the input box.
var QuickPrompts = []string{
	"¿Inspeccionan grúas torre?",
	"Necesito curso de autoelevador",
	"¿Hacen ensayos no destructivos?",
	"Quiero coordinar por WhatsApp",
	"Estoy en Mendoza, ¿a quién contacto?",
}

// Scenario is a named, ordered script of tester prompts.
type Scenario struct {
	Name    string
	Mode    domain.TestMode // empty for configured scenarios
	Prompts []string
}

// BuiltIn returns one scripted scenario per test mode.
func BuiltIn() []Scenario {
	return []Scenario{
		{
			Name: string(domain.ModeNewClient),
			Mode: domain.ModeNewClient,
			Prompts: []string{
				"Hola, ¿qué servicios ofrecen?",
				"¿Inspeccionan grúas torre?",
				"Estoy en Córdoba, ¿cómo sigo?",
			},
		},
		{
			Name: string(domain.ModeTechClient),
			Mode: domain.ModeTechClient,
			Prompts: []string{
				"Necesito certificar un autoelevador según norma IRAM 3923",
				"¿Qué ensayos no destructivos hacen sobre ganchos y cadenas?",
				"¿El certificado sale con número de registro?",
			},
		},
		{
			Name: string(domain.ModeUndecidedClient),
			Mode: domain.ModeUndecidedClient,
			Prompts: []string{
				"Estoy viendo opciones, no sé bien qué necesito",
				"Tengo una hidrogrúa, ¿qué me conviene?",
				"¿Cuánto sale más o menos?",
			},
		},
		{
			Name: string(domain.ModeWhatsAppClient),
			Mode: domain.ModeWhatsAppClient,
			Prompts: []string{
				"Quiero coordinar por WhatsApp",
				"Pasame el número directamente",
				"Estoy en Mendoza",
			},
		},
		{
			Name: string(domain.ModeOutOfScope),
			Mode: domain.ModeOutOfScope,
			Prompts: []string{
				"¿Venden repuestos para autoelevadores?",
				"¿Hacen mantenimiento de ascensores?",
				"¿Alquilan grúas?",
			},
		},
	}
}

// Catalog indexes scenarios by name.
type Catalog struct {
	byName map[string]Scenario
}

// NewCatalog merges configured scripts over the built-in ones; a configured
// name replaces a built-in scenario of the same name.
func NewCatalog(configured map[string][]string) *Catalog {
	c := &Catalog{byName: make(map[string]Scenario)}
	for _, s := range BuiltIn() {
		c.byName[s.Name] = s
	}
	for name, prompts := range configured {
		name = strings.TrimSpace(name)
		if name == "" || len(prompts) == 0 {
			continue
		}
		c.byName[name] = Scenario{Name: name, Prompts: append([]string(nil), prompts...)}
	}
	return c
}

// Get looks a scenario up by name.
func (c *Catalog) Get(name string) (Scenario, error) {
	s, ok := c.byName[strings.TrimSpace(name)]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	return s, nil
}

// List returns every scenario sorted by name.
func (c *Catalog) List() []Scenario {
	out := make([]Scenario, 0, len(c.byName))
	for _, s := range c.byName {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b Scenario) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// QuickPrompt returns the n-th quick prompt, counting from 1.
func QuickPrompt(n int) (string, error) {
	if n < 1 || n > len(QuickPrompts) {
		return "", fmt.Errorf("scenario: quick prompt %d out of range 1-%d", n, len(QuickPrompts))
	}
	return QuickPrompts[n-1], nil
}
