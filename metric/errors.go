package metric

import "fmt"

// ConfigError reports an invalid instrument registration, such as reusing a
// name with a different kind or passing malformed bucket boundaries. It is
// returned at setup time and never from the record path.
type ConfigError struct {
	Name   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("metric: invalid configuration for %q: %s", e.Name, e.Reason)
}
