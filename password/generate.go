package password

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// DefaultGeneratedLength is the length Generate uses when GenerateOptions.Length is zero.
const DefaultGeneratedLength = 12

const (
	lowerChars   = "abcdefghijklmnopqrstuvwxyz"
	upperChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars   = "0123456789"
	specialChars = "!@#$%^&*()-_=+[]{};:,.?"
)

// GenerateOptions controls password generation. Lowercase letters are
// always included; the other classes default to on via DefaultGenerateOptions.
type GenerateOptions struct {
	Length    int
	Uppercase bool
	Digits    bool
	Special   bool
}

// DefaultGenerateOptions returns options with every character class
// enabled and the default length.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Length:    DefaultGeneratedLength,
		Uppercase: true,
		Digits:    true,
		Special:   true,
	}
}

// Generate produces a random password containing at least one character
// from each enabled class, then shuffles so the guaranteed characters do
// not sit at fixed positions. Randomness comes from crypto/rand.
func Generate(opts GenerateOptions) (string, error) {
	length := opts.Length
	if length == 0 {
		length = DefaultGeneratedLength
	}

	classes := []string{lowerChars}
	if opts.Uppercase {
		classes = append(classes, upperChars)
	}
	if opts.Digits {
		classes = append(classes, digitChars)
	}
	if opts.Special {
		classes = append(classes, specialChars)
	}

	if length < len(classes) {
		return "", errors.New("password length too short for required character classes")
	}

	alphabet := ""
	for _, c := range classes {
		alphabet += c
	}

	out := make([]byte, 0, length)
	for _, c := range classes {
		ch, err := randByte(c)
		if err != nil {
			return "", err
		}
		out = append(out, ch)
	}
	for len(out) < length {
		ch, err := randByte(alphabet)
		if err != nil {
			return "", err
		}
		out = append(out, ch)
	}

	// Fisher-Yates
	for i := len(out) - 1; i > 0; i-- {
		j, err := randInt(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}

	return string(out), nil
}

func randByte(set string) (byte, error) {
	i, err := randInt(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

func randInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
