package deps

import (
	"os/exec"
	"strings"
)

// Requirement names an external binary the converters run.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is a Requirement after a PATH lookup. Command holds the resolved
// path when the binary was found.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// Check looks the requirement up on PATH.
func (r Requirement) Check() Status {
	st := Status{
		Name:        r.Name,
		Command:     strings.TrimSpace(r.Command),
		Description: strings.TrimSpace(r.Description),
		Optional:    r.Optional,
	}
	if st.Command == "" {
		st.Detail = "command not configured"
		return st
	}
	resolved, err := exec.LookPath(st.Command)
	if err != nil {
		st.Detail = st.Command + " not found on PATH"
		return st
	}
	st.Command, st.Available = resolved, true
	return st
}

// CheckBinaries checks each requirement, keeping order.
func CheckBinaries(requirements []Requirement) []Status {
	out := make([]Status, len(requirements))
	for i, req := range requirements {
		out[i] = req.Check()
	}
	return out
}

// MissingRequired filters statuses down to required binaries that were not
// found. The daemon refuses to start while this is non-empty.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, st := range statuses {
		if st.Optional || st.Available {
			continue
		}
		missing = append(missing, st)
	}
	return missing
}
