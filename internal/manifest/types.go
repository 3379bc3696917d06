package manifest

// Manifest is the validated dependency graph of roles for one run.
type Manifest struct {
	ProjectName string            `yaml:"project_name" json:"project_name"`
	TechStack   map[string]string `yaml:"tech_stack,omitempty" json:"tech_stack,omitempty"`
	Roles       []Role            `yaml:"roles" json:"roles"`
	SharedFiles []string          `yaml:"shared_files,omitempty" json:"shared_files,omitempty"`
	Constraints []string          `yaml:"constraints,omitempty" json:"constraints,omitempty"`
}

// Role is a unit of generation work with declared file ownership and
// dependencies.
type Role struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Outputs     []string `yaml:"outputs" json:"outputs"`
	DependsOn   []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
}

// DisplayName returns the role name, falling back to its id.
func (r Role) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// Owns reports whether the role declares path as one of its outputs.
func (r Role) Owns(path string) bool {
	for _, out := range r.Outputs {
		if out == path {
			return true
		}
	}
	return false
}

// Role looks up a role by id.
func (m *Manifest) Role(id string) (Role, bool) {
	for _, r := range m.Roles {
		if r.ID == id {
			return r, true
		}
	}
	return Role{}, false
}

// RoleIDs returns role ids in declaration order.
func (m *Manifest) RoleIDs() []string {
	ids := make([]string, len(m.Roles))
	for i, r := range m.Roles {
		ids[i] = r.ID
	}
	return ids
}

// Owner returns the id of the role that owns path, if any.
func (m *Manifest) Owner(path string) (string, bool) {
	for _, r := range m.Roles {
		if r.Owns(path) {
			return r.ID, true
		}
	}
	return "", false
}

// Dependents returns, in declaration order, the ids of roles that list id in
// their depends_on.
func (m *Manifest) Dependents(id string) []string {
	var out []string
	for _, r := range m.Roles {
		for _, dep := range r.DependsOn {
			if dep == id {
				out = append(out, r.ID)
				break
			}
		}
	}
	return out
}
