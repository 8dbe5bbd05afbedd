package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"two tags", "dank, meme", []string{"dank", "meme"}},
		{"single", "x", []string{"x"}},
		{"trims", "  cat  ,\tdog\n", []string{"cat", "dog"}},
		{"drops empty pieces", "a,, ,b,", []string{"a", "b"}},
		{"only separators", " , ,, ", []string{}},
		{"empty", "", []string{}},
		{"keeps duplicates", "a, a", []string{"a", "a"}},
		{"keeps case", "Meme, MEME", []string{"Meme", "MEME"}},
		{"inner spaces kept", "good boy, bad cat", []string{"good boy", "bad cat"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestNormalizeComposesUnicode(t *testing.T) {
	decomposed := "cafe\u0301"
	composed := "caf\u00e9"

	assert.Equal(t, composed, Normalize(" "+decomposed+" "))
	assert.Equal(t, Normalize(composed), Normalize(decomposed))
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "dank, meme", Join([]string{"dank", "meme"}))
	assert.Equal(t, "", Join(nil))
}
