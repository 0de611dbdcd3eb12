package fare

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	cardNumberPattern = regexp.MustCompile(`^\d{13,19}$`)
	cardExpiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/(\d{2})$`)
	cardCVVPattern    = regexp.MustCompile(`^\d{3,4}$`)
)

// Card is a demo card charge. It is checked for shape only; nothing is charged.
type Card struct {
	Number string
	Expiry string // MM/YY
	CVV    string
	Name   string
}

func (c Card) digits() string {
	return strings.NewReplacer(" ", "", "-", "").Replace(c.Number)
}

// Last4 returns the last four digits of the card number.
func (c Card) Last4() string {
	d := c.digits()
	if len(d) < 4 {
		return d
	}
	return d[len(d)-4:]
}

// Validate checks the card fields and that it has not expired by now.
func (c Card) Validate(now time.Time) error {
	if !cardNumberPattern.MatchString(c.digits()) {
		return fmt.Errorf("%w: card number must be 13 to 19 digits", ErrInvalidCard)
	}
	m := cardExpiryPattern.FindStringSubmatch(strings.TrimSpace(c.Expiry))
	if m == nil {
		return fmt.Errorf("%w: expiry must be MM/YY", ErrInvalidCard)
	}
	month, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[2])
	// Valid through the last day of the expiry month.
	end := time.Date(2000+year, time.Month(month)+1, 1, 0, 0, 0, 0, now.Location())
	if !now.Before(end) {
		return fmt.Errorf("%w: card has expired", ErrInvalidCard)
	}
	if !cardCVVPattern.MatchString(strings.TrimSpace(c.CVV)) {
		return fmt.Errorf("%w: CVV must be 3 or 4 digits", ErrInvalidCard)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: cardholder name is required", ErrInvalidCard)
	}
	return nil
}
