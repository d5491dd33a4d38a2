package registry

import "strings"

// Kind is the classification of a user-supplied instance identifier.
type Kind int

const (
	KindNumber Kind = iota // 1-based directory index
	KindUUID               // 32 hex chars once hyphens are stripped
	KindName               // anything else
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindUUID:
		return "uuid"
	default:
		return "name"
	}
}

// Classify determines how an identifier should be resolved. The number check
// runs first: a 32-digit numeric token is a number, never a UUID.
func Classify(token string) Kind {
	if isDigits(token) {
		return KindNumber
	}
	stripped := strings.ReplaceAll(token, "-", "")
	if len(stripped) == 32 && isHex(stripped) {
		return KindUUID
	}
	return KindName
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
