package sharegrants

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alfabeto URL-safe sin símbolos: 62^24 > 2^142, fuera de alcance de fuerza bruta.
const (
	tokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	tokenLength   = 24
)

// NewToken genera un share token desde el CSPRNG del sistema.
func NewToken() (string, error) {
	return gonanoid.Generate(tokenAlphabet, tokenLength)
}
