package redemptions

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	codePrefix        = "EDU"
	codeAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	tokenEntropyBytes = 16

	// largest multiple of len(codeAlphabet) that fits in a byte; bytes above it are
	// discarded so every symbol is equally likely.
	codeRejectThreshold = 252
)

var codePattern = regexp.MustCompile(`^EDU-[A-Z0-9]{3}-[A-Z0-9]{4}$`)

// TokenGenerator produces the two identifiers carried by a redemption.
type TokenGenerator interface {
	GenerateRedemptionCode() (string, error)
	GenerateOneTimeToken() (string, error)
}

// Generator draws codes and tokens from a cryptographically secure source.
type Generator struct {
	entropy io.Reader
	now     func() time.Time
}

// NewGenerator returns a Generator backed by crypto/rand and the wall clock.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader, now: time.Now}
}

// GenerateRedemptionCode returns a code of the form EDU-XXX-XXXX.
func (g *Generator) GenerateRedemptionCode() (string, error) {
	symbols, err := g.symbols(7)
	if err != nil {
		return "", err
	}
	return codePrefix + "-" + symbols[:3] + "-" + symbols[3:], nil
}

// GenerateOneTimeToken returns the base36 generation instant followed by 128 random bits.
func (g *Generator) GenerateOneTimeToken() (string, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := io.ReadFull(g.entropy, buf); err != nil {
		return "", fmt.Errorf("reading token entropy: %w", err)
	}
	stamp := strconv.FormatInt(g.now().UnixMilli(), 36)
	return stamp + "-" + hex.EncodeToString(buf), nil
}

func (g *Generator) symbols(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := io.ReadFull(g.entropy, buf); err != nil {
			return "", fmt.Errorf("reading code entropy: %w", err)
		}
		for _, b := range buf {
			if b >= codeRejectThreshold {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// NormalizeCode trims and uppercases a typed fallback code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidCode reports whether code matches EDU-[A-Z0-9]{3}-[A-Z0-9]{4}.
func IsValidCode(code string) bool {
	return codePattern.MatchString(code)
}
