package manifest

// Contract is the parsed representation of an agent.md manifest: the app's
// identity, auth metadata, and the ordered list of declared actions.
// A Contract is built once per successful parse and never mutated afterwards;
// origin changes and cache invalidation discard it wholesale.
type Contract struct {
	AppName     string            `json:"app_name"`
	Description string            `json:"description"`
	Auth        map[string]string `json:"auth,omitempty"`
	Actions     []Action          `json:"actions"`
}

// Action is one declared, remotely invocable capability.
type Action struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Params      []Param `json:"params"`
	Returns     string  `json:"returns,omitempty"`
	Example     string  `json:"example,omitempty"`
}

// Param is a single typed action parameter.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// Action looks up a declared action by name. Duplicate names are allowed in a
// manifest; the last declaration wins.
func (c *Contract) Action(name string) (Action, bool) {
	for i := len(c.Actions) - 1; i >= 0; i-- {
		if c.Actions[i].Name == name {
			return c.Actions[i], true
		}
	}
	return Action{}, false
}

// ActionNames returns the declared action names in declaration order.
func (c *Contract) ActionNames() []string {
	names := make([]string, 0, len(c.Actions))
	for _, a := range c.Actions {
		names = append(names, a.Name)
	}
	return names
}
