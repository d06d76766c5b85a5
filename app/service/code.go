package service

import (
	"crypto/rand"
	"math/big"

	"github.com/vibast-solutions/ms-go-nengtul/config"
)

const (
	upperChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars   = "abcdefghijklmnopqrstuvwxyz"
	digitChars   = "0123456789"
	specialChars = "!@#$%^&*"
	alphanumeric = upperChars + lowerChars + digitChars

	minTemporaryPasswordLength = 12
)

// CodeGenerator returns a random string of n characters.
type CodeGenerator func(n int) (string, error)

// PasswordGenerator returns a random password accepted by policy.
type PasswordGenerator func(policy config.PasswordPolicy) (string, error)

func RandomAlphanumeric(n int) (string, error) {
	buf := make([]byte, n)
	for i := range buf {
		c, err := randomChar(alphanumeric)
		if err != nil {
			return "", err
		}
		buf[i] = c
	}
	return string(buf), nil
}

// RandomPassword always contains every character class, so it passes any
// combination of policy requirements.
func RandomPassword(policy config.PasswordPolicy) (string, error) {
	length := policy.MinLength
	if length < minTemporaryPasswordLength {
		length = minTemporaryPasswordLength
	}

	buf := make([]byte, 0, length)
	for _, set := range []string{upperChars, lowerChars, digitChars, specialChars} {
		c, err := randomChar(set)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	for len(buf) < length {
		c, err := randomChar(alphanumeric + specialChars)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}

	for i := len(buf) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		buf[i], buf[j.Int64()] = buf[j.Int64()], buf[i]
	}
	return string(buf), nil
}

func randomChar(set string) (byte, error) {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, err
	}
	return set[idx.Int64()], nil
}
