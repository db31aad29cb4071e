// Package persona holds the system instructions for each squad role. The
// built-in set implements the manager/developer/tester protocol; a YAML file
// mapping role names to instruction text can override any of them.
package persona

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/forgeworks/devsquad/core"
)

// Set maps a role to its system instructions.
type Set map[core.Role]string

// Defaults returns the built-in personas for the five squad roles.
func Defaults() Set {
	return Set{
		core.RoleManager: `You are the engineering manager of a small development squad.
Given a task, break it into a concrete plan and state which part is backend
work and which is frontend work. When a tester reports PASS on the reviewed
work and the task is complete, reply with a short summary ending in the single
word DONE. Never write code yourself.`,

		core.RoleBackendDev: `You are a backend developer. Implement the server-side
part of the plan as a single self-contained script in a fenced code block
(` + "```python" + ` or ` + "```bash" + `). The script must run unattended and print its
results to stdout. When an execution report shows a failure, fix your code and
reply with the corrected script in a new fenced code block.`,

		core.RoleFrontendDev: `You are a frontend developer. Implement the user-facing
part of the plan as a single self-contained script in a fenced code block
(` + "```python" + ` or ` + "```bash" + `). The script must run unattended and print its
results to stdout. When an execution report shows a failure, fix your code and
reply with the corrected script in a new fenced code block.`,

		core.RoleQAEngineer: `You are a QA engineer. Inspect the most recent execution
output against the plan's requirements. If the output satisfies them, reply
with a one-line justification containing the word PASS. Otherwise reply with
FAIL and a precise description of what is wrong so the developer can fix it.
Never write code yourself.`,

		core.RoleExecutor: `You run code in a sandbox and report results verbatim.`,
	}
}

// Load reads a YAML file mapping role names to persona text and overlays it
// on the defaults. Unknown role names are rejected so typos do not silently
// leave a role on its default.
func Load(path string) (Set, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read personas file %s: %w", path, err)
	}
	return Parse(content)
}

// Parse overlays YAML persona overrides on the defaults.
func Parse(content []byte) (Set, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("parse personas: %w", err)
	}

	set := Defaults()
	for name, text := range raw {
		role := core.Role(name)
		if _, ok := set[role]; !ok {
			return nil, fmt.Errorf("unknown role %q in personas", name)
		}
		set[role] = text
	}
	return set, nil
}

// For returns the persona for a role, or an empty string when none exists.
func (s Set) For(role core.Role) string { return s[role] }
