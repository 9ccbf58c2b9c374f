package usecase

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
)

// ErrNoOperators means every operator is disabled in the difficulty.
var ErrNoOperators = errors.New("no challenge operator enabled")

// maxDigits keeps operands and products inside int64.
const maxDigits = 9

// ChallengeEngine generates and checks arithmetic questions.
// It holds no state: the active question lives in the gate's session.
type ChallengeEngine struct{}

// New returns a question and its answer. The operator is picked at random
// among those with a non-zero digit count.
func (ChallengeEngine) New(d domain.Difficulty) (string, int, error) {
	type choice struct {
		op     domain.Operator
		digits int
	}
	var ops []choice
	if d.AdditionDigits > 0 {
		ops = append(ops, choice{domain.OpAdd, d.AdditionDigits})
	}
	if d.SubtractionDigits > 0 {
		ops = append(ops, choice{domain.OpSub, d.SubtractionDigits})
	}
	if d.MultiplicationDigits > 0 {
		ops = append(ops, choice{domain.OpMul, d.MultiplicationDigits})
	}
	if len(ops) == 0 {
		return "", 0, ErrNoOperators
	}

	c := ops[randomInt(len(ops))]
	a, err := operand(c.digits)
	if err != nil {
		return "", 0, err
	}
	b, err := operand(c.digits)
	if err != nil {
		return "", 0, err
	}

	var answer int
	switch c.op {
	case domain.OpAdd:
		answer = a + b
	case domain.OpSub:
		if a < b {
			a, b = b, a // never negative
		}
		answer = a - b
	case domain.OpMul:
		answer = a * b
	}
	return fmt.Sprintf("%d %s %d", a, c.op, b), answer, nil
}

// Verify reports whether answer is correct.
func (ChallengeEngine) Verify(answer, expected int) bool {
	return answer == expected
}

// ParseAnswer reads a typed answer. ok is false for anything that is not an integer.
func (ChallengeEngine) ParseAnswer(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// operand returns a random number with exactly digits digits.
func operand(digits int) (int, error) {
	if digits > maxDigits {
		return 0, fmt.Errorf("operand of %d digits exceeds %d", digits, maxDigits)
	}
	low := 1
	for i := 1; i < digits; i++ {
		low *= 10
	}
	high := low * 10 // exclusive
	if digits == 1 {
		low = 0
	}
	return low + randomInt(high-low), nil
}

// randomInt returns a cryptographically random int in [0, max).
func randomInt(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return int(n.Int64())
}
