package hub

import (
	"crypto/rand"
	"math/big"
)

// Room codes are read aloud and typed by hand, so 0/O and 1/I are left out.
const codeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 6

func GenerateCode() (string, error) {
	n := big.NewInt(int64(len(codeCharset)))
	code := make([]byte, codeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[num.Int64()]
	}
	return string(code), nil
}
