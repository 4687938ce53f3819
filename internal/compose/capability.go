package compose

import (
	"fmt"
	"os/exec"
	"strings"
)

// CapabilityStatus tags the outcome of a capability probe.
type CapabilityStatus int

const (
	Unsupported CapabilityStatus = iota
	Supported
)

func (s CapabilityStatus) String() string {
	if s == Supported {
		return "supported"
	}
	return "unsupported"
}

// Capability is the result of probing for the capture toolchain.
type Capability struct {
	Status CapabilityStatus
	// Binary is the resolved toolchain path when supported.
	Binary string
	// Tried lists the names probed, in order.
	Tried []string
}

// Supported reports whether a toolchain was found.
func (c Capability) Supported() bool {
	return c.Status == Supported
}

// Err returns ErrUnsupported with the probed names when unsupported, nil otherwise.
func (c Capability) Err() error {
	if c.Supported() {
		return nil
	}
	return fmt.Errorf("%w (tried %s)", ErrUnsupported, strings.Join(c.Tried, ", "))
}

// LookPathFunc resolves an executable name to a path.
type LookPathFunc func(name string) (string, error)

// DefaultCandidates returns the probe order for a configured binary: the
// configured name, then ffmpeg, then the avconv fork.
func DefaultCandidates(configured string) []string {
	names := []string{configured, "ffmpeg", "avconv"}
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// Probe looks for the capture toolchain under each candidate name in order and
// returns the first one found.
func Probe(lookPath LookPathFunc, candidates ...string) Capability {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	capability := Capability{Status: Unsupported}
	for _, name := range candidates {
		capability.Tried = append(capability.Tried, name)
		path, err := lookPath(name)
		if err != nil {
			continue
		}
		capability.Status = Supported
		capability.Binary = path
		return capability
	}
	return capability
}
