package types

import "github.com/m-mizutani/goerr/v2"

// EntityKind names an entity that receives a sequential code
type EntityKind string

const (
	EntityRisk      EntityKind = "risk"
	EntityControl   EntityKind = "control"
	EntityIndicator EntityKind = "indicator"
)

// IsValid checks if the entity kind is valid
func (k EntityKind) IsValid() bool {
	switch k {
	case EntityRisk, EntityControl, EntityIndicator:
		return true
	default:
		return false
	}
}

func (k EntityKind) String() string {
	return string(k)
}

// ParseEntityKind parses a string into an EntityKind
func ParseEntityKind(s string) (EntityKind, error) {
	k := EntityKind(s)
	if !k.IsValid() {
		return "", goerr.New("invalid entity kind", goerr.V("kind", s))
	}
	return k, nil
}
