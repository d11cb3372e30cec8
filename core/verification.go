package core

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	defaultCodeLength      = 8
	defaultCodeMaxAttempts = 5
	codeAlphabet           = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// CodeGenerator produces booking verification codes. Codes only need to be
// unique per tenant among CONFIRMED bookings; the store's uniqueness
// constraint catches collisions and confirmation retries with a fresh code.
type CodeGenerator interface {
	Generate() (string, error)
}

// RandomCodeGenerator draws from an unambiguous upper-case alphabet
// (no 0/O, 1/I) so codes survive being read over the phone.
type RandomCodeGenerator struct {
	Length int
}

func (g RandomCodeGenerator) Generate() (string, error) {
	length := g.Length
	if length <= 0 {
		length = defaultCodeLength
	}
	max := big.NewInt(int64(len(codeAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("core: generate verification code: %w", err)
		}
		out[i] = codeAlphabet[n.Int64()]
	}
	return string(out), nil
}

var _ CodeGenerator = RandomCodeGenerator{}
