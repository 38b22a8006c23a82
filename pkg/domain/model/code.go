package model

import (
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

// CodeWidth is the minimum zero-padded width of the sequence number
const CodeWidth = 3

// BuildPrefix normalizes and joins prefix parts with "-"
func BuildPrefix(parts ...types.CodePart) (string, error) {
	if len(parts) == 0 {
		return "", invalid("at least one prefix part is required")
	}
	normalized := make([]string, 0, len(parts))
	for _, p := range parts {
		if err := p.Validate(); err != nil {
			return "", goerr.Wrap(ErrValidation, "invalid prefix part", goerr.V("part", string(p)), goerr.V("reason", err.Error()))
		}
		normalized = append(normalized, p.Normalize().String())
	}
	return strings.Join(normalized, "-"), nil
}

// FormatCode renders prefix and sequence as PREFIX-NNN. Sequences above
// 999 keep all their digits.
func FormatCode(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%0*d", prefix, CodeWidth, seq)
}
