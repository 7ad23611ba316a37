// Package credential generates one-time passwords for admin-driven resets.
package credential

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	passwordLength = 12

	upper  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	lower  = "abcdefghijkmnpqrstuvwxyz"
	digits = "23456789"
	symbol = "!@#$%&*+-_=?"
)

// NewPassword returns a 12-character random password containing at least one
// uppercase letter, one lowercase letter, one digit and one symbol, in a
// shuffled order. The caller shows it exactly once and never logs it.
func NewPassword() (string, error) {
	chars := make([]byte, 0, passwordLength)

	for _, class := range []string{upper, lower, digits, symbol} {
		c, err := pick(class)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}

	all := upper + lower + digits + symbol
	for len(chars) < passwordLength {
		c, err := pick(all)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}

	// Fisher-Yates with crypto/rand so the class-guaranteed characters do not
	// sit at predictable offsets.
	for i := len(chars) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", fmt.Errorf("shuffle password: %w", err)
		}
		chars[i], chars[j.Int64()] = chars[j.Int64()], chars[i]
	}

	return string(chars), nil
}

func pick(set string) (byte, error) {
	index, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, fmt.Errorf("pick password char: %w", err)
	}
	return set[index.Int64()], nil
}
