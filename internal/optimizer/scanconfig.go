package optimizer

import "github.com/bmatcuk/doublestar/v4"

// ScanConfig controls which bare imports the dependency scanner is allowed
// to register with the optimizer, mirroring the include/exclude knobs spec
// §9 adds to config.Optimizer.
type ScanConfig struct {
	Include []string
	Exclude []string
}

// Allows reports whether id should be scanned: it must match an Include
// pattern (when any are set) and must not match any Exclude pattern.
func (c ScanConfig) Allows(id string) bool {
	for _, pattern := range c.Exclude {
		if ok, _ := doublestar.Match(pattern, id); ok {
			return false
		}
	}
	if len(c.Include) == 0 {
		return true
	}
	for _, pattern := range c.Include {
		if ok, _ := doublestar.Match(pattern, id); ok {
			return true
		}
	}
	return false
}
