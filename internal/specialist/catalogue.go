package specialist

// CatalogueEntry is descriptive metadata for one specialist.
type CatalogueEntry struct {
	ID           int      `json:"id"`
	Type         Kind     `json:"type"`
	Name         string   `json:"name"`
	Icon         string   `json:"icon"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
	Output       string   `json:"output"`
}

// Catalogue lists every specialist and the workflow summary.
type Catalogue struct {
	TotalAgents int              `json:"total_agents"`
	Agents      []CatalogueEntry `json:"agents"`
	Workflow    []string         `json:"workflow"`
}

var workflowSummary = []string{
	"Database Design → API Architecture → Backend Development",
	"UI/UX Design → Image Assets → Frontend Development",
	"Security Audit → Performance Optimization → Testing",
	"DevOps Setup → Documentation → Code Review",
}

// Catalogue builds the catalogue in registration order.
func (r *Registry) Catalogue() Catalogue {
	defs := r.All()
	c := Catalogue{
		TotalAgents: len(defs),
		Agents:      make([]CatalogueEntry, 0, len(defs)),
		Workflow:    append([]string(nil), workflowSummary...),
	}
	for i, d := range defs {
		c.Agents = append(c.Agents, CatalogueEntry{
			ID:           i + 1,
			Type:         d.Kind,
			Name:         d.DisplayName,
			Icon:         d.Icon,
			Description:  d.Description,
			Capabilities: append([]string(nil), d.Capabilities...),
			Output:       d.Output,
		})
	}
	return c
}
