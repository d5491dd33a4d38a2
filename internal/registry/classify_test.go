package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  Kind
	}{
		{"single digit", "1", KindNumber},
		{"multi digit", "42", KindNumber},
		{"32 digits is a number, not a uuid", "12345678901234567890123456789012", KindNumber},
		{"hyphenated uuid", "550e8400-e29b-41d4-a716-446655440000", KindUUID},
		{"bare uuid", "550e8400e29b41d4a716446655440000", KindUUID},
		{"uppercase hex uuid", "550E8400E29B41D4A716446655440EFF", KindUUID},
		{"31 hex chars", "550e8400e29b41d4a71644655440000", KindName},
		{"33 hex chars", "550e8400e29b41d4a7164466554400001", KindName},
		{"32 chars with non-hex", "550e8400e29b41d4a71644665544000g", KindName},
		{"plain name", "Survival", KindName},
		{"name with digits", "world2", KindName},
		{"decimal number", "1.5", KindName},
		{"negative number", "-3", KindName},
		{"empty", "", KindName},
		{"whitespace only", " ", KindName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.token))
		})
	}
}
