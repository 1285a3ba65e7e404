package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashDeterministic(t *testing.T) {
	a := Hash([]byte("the same bytes"))
	b := Hash([]byte("the same bytes"))
	assert.Equal(t, a, b)
}

func TestHashKnownValue(t *testing.T) {
	// sha256("hello")
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		Hash([]byte("hello")))
}

func TestHashSingleByteChange(t *testing.T) {
	assert.NotEqual(t, Hash([]byte("hello")), Hash([]byte("hellp")))
}

func TestHashEmpty(t *testing.T) {
	assert.Len(t, Hash(nil), 64)
	assert.Equal(t, Hash(nil), Hash([]byte{}))
}
