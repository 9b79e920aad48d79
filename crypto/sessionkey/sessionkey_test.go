package sessionkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveIsDeterministic(t *testing.T) {
	k := []byte("shared secret bytes")
	a := Derive(k)
	b := Derive(k)
	assert.Equal(t, a, b)
}

func TestDeriveDiffersOnDifferentInput(t *testing.T) {
	a := Derive([]byte("one"))
	b := Derive([]byte("two"))
	assert.NotEqual(t, a, b)
}
