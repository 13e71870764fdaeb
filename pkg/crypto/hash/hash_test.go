package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeccak256(t *testing.T) {
	testCases := []struct {
		data     []byte
		expected string
	}{
		{nil, "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
		{[]byte{0x80}, "56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421"},
		{[]byte("hello"), "1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, Keccak256(tc.data).StringBE())
	}
}

func TestKeccak256_Parts(t *testing.T) {
	assert.Equal(t, Keccak256([]byte("hello")), Keccak256([]byte("he"), []byte("llo")))
}
