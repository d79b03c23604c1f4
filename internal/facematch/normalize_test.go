package facematch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Honza", "Honza"},
		{"Jiří", "Jiri"},
		{"Zoë", "Zoe"},
		{"Žluťoučký kůň", "Zlutoucky kun"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, RemoveDiacritics(tt.input))
		})
	}
}

func TestNormalizePersonName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jan Novák", "jan novak"},
		{"jan-novak", "jan novak"},
		{"JOHN DOE", "john doe"},
		{"  Alice   Smith ", "alice smith"},
		{"alice_smith", "alice smith"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizePersonName(tt.input))
		})
	}
}

func TestSameNameEnrolledCollisions(t *testing.T) {
	tests := []struct {
		name     string
		enrolled string
		incoming string
		collide  bool
	}{
		{"case only", "Alice", "alice", true},
		{"diacritics", "Zoë Novák", "Zoe Novak", true},
		{"dash vs space", "Mary-Jane", "mary jane", true},
		{"padding", "Bob", " Bob ", true},
		{"different person", "Alice", "Alicia", false},
		{"unknown-looking name", "Unknown7", "Unknown 7", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.collide, SameName(tt.enrolled, tt.incoming))
		})
	}
}
