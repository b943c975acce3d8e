package dto

import "strings"

// Environment is the execution environment the service runs in.
type Environment string

const (
	EnvironmentPro Environment = "pro"
	EnvironmentPre Environment = "pre"
	EnvironmentDev Environment = "dev"
)

// ParseEnvironment maps a name to an Environment. Unknown and empty names
// resolve to EnvironmentPre.
func ParseEnvironment(name string) Environment {
	switch Environment(strings.ToLower(strings.TrimSpace(name))) {
	case EnvironmentPro:
		return EnvironmentPro
	case EnvironmentDev:
		return EnvironmentDev
	default:
		return EnvironmentPre
	}
}

func (e Environment) IsPro() bool { return e == EnvironmentPro }
func (e Environment) IsPre() bool { return e == EnvironmentPre }
func (e Environment) IsDev() bool { return e == EnvironmentDev }

func (e Environment) String() string {
	return string(e)
}
