package base62

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

const (
	Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	base     = uint64(len(Alphabet))
)

var (
	ErrEmpty       = errors.New("base62: empty input")
	ErrInvalidChar = errors.New("base62: invalid character")
	ErrOverflow    = errors.New("base62: value overflows uint64")
)

func Encode(n uint64) string {
	if n == 0 {
		return "0"
	}

	var buf [11]byte // 62^11 > 2^64
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = Alphabet[n%base]
		n /= base
	}
	return string(buf[i:])
}

// EncodeWithPadding дополняет результат слева символом '0' до minLength.
func EncodeWithPadding(n uint64, minLength int) string {
	s := Encode(n)
	if len(s) >= minLength {
		return s
	}
	return strings.Repeat("0", minLength-len(s)) + s
}

func Decode(s string) (uint64, error) {
	if s == "" {
		return 0, ErrEmpty
	}

	var n uint64
	for _, c := range s {
		idx := strings.IndexRune(Alphabet, c)
		if idx < 0 {
			return 0, errors.Wrapf(ErrInvalidChar, "%q", c)
		}
		if n > (math.MaxUint64-uint64(idx))/base {
			return 0, ErrOverflow
		}
		n = n*base + uint64(idx)
	}
	return n, nil
}
