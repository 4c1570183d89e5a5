package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

// CodeGenerator produces registration codes. Implementations need not
// guarantee uniqueness; the store does.
type CodeGenerator interface {
	Generate(now time.Time) (string, error)
}

// RandomCodeGenerator issues PRF-<year>-XXXXXX codes from crypto/rand.
type RandomCodeGenerator struct{}

func (RandomCodeGenerator) Generate(now time.Time) (string, error) {
	suffix := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		suffix[i] = codeAlphabet[n.Int64()]
	}
	return fmt.Sprintf("PRF-%d-%s", now.Year(), suffix), nil
}
