package model

import (
	"errors"
	"math"
	"math/bits"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidMoney indicates a decimal amount could not be parsed.
	ErrInvalidMoney = errors.New("invalid decimal amount")
	// ErrTooManyDecimals indicates a decimal amount has more than two fractional digits.
	ErrTooManyDecimals = errors.New("more than 2 decimal places")
	// ErrTooManyDigits indicates a decimal amount has more significant digits
	// than its column allows.
	ErrTooManyDigits = errors.New("too many digits")
	// ErrTooManyWholeDigits indicates too many digits before the decimal point.
	ErrTooManyWholeDigits = errors.New("too many digits before the decimal point")
	// ErrAmountOverflow indicates price times quantity does not fit in Money.
	ErrAmountOverflow = errors.New("amount out of range")
)

const (
	// MoneyPlaces is the number of fractional digits Money keeps.
	MoneyPlaces = 2
	// PriceMaxDigits is the precision of an order price, as in decimal(10,2).
	PriceMaxDigits = 10
	// MaxQuantity is the largest order quantity the quantity column holds.
	MaxQuantity = math.MaxInt32
)

// MaxAmount is the largest order amount.
const MaxAmount = Money(math.MaxInt64)

// Money is a non-fractional count of cents. It is serialized as a
// two-decimal string, e.g. "12.50".
type Money int64

// ParseMoney parses "12", "12.5" or "12.50" into cents. Leading zeros are
// not significant; every written fractional digit is. The total may not
// exceed maxDigits digits, of which at most maxDigits-2 before the point.
func ParseMoney(s string, maxDigits int) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidMoney
	}

	negative := false
	if s[0] == '-' || s[0] == '+' {
		negative = s[0] == '-'
		s = s[1:]
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" && (!hasFrac || frac == "") {
		return 0, ErrInvalidMoney
	}
	if !isDigits(whole) || !isDigits(frac) {
		return 0, ErrInvalidMoney
	}

	whole = strings.TrimLeft(whole, "0")
	switch {
	case len(whole)+len(frac) > maxDigits:
		return 0, ErrTooManyDigits
	case len(frac) > MoneyPlaces:
		return 0, ErrTooManyDecimals
	case len(whole) > maxDigits-MoneyPlaces:
		return 0, ErrTooManyWholeDigits
	}

	for len(frac) < MoneyPlaces {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > (math.MaxInt64-99)/100 {
		return 0, ErrTooManyDigits
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, ErrInvalidMoney
	}

	cents := w*100 + f
	if negative {
		cents = -cents
	}
	return Money(cents), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// String formats the amount with exactly two decimals.
func (m Money) String() string {
	cents := int64(m)
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	frac := strconv.FormatInt(cents%100, 10)
	if len(frac) == 1 {
		frac = "0" + frac
	}
	return sign + strconv.FormatInt(cents/100, 10) + "." + frac
}

// MarshalJSON encodes the amount as a JSON string.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.String())), nil
}

// SalesOrder is a single line sales order.
type SalesOrder struct {
	ID        string    `json:"id"`
	Item      string    `json:"item"`
	Price     Money     `json:"price"`
	Quantity  int       `json:"quantity"`
	Amount    Money     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Recalculate sets Amount from Price and Quantity. Amount is left
// unchanged and ErrAmountOverflow returned when the product exceeds MaxAmount.
func (o *SalesOrder) Recalculate() error {
	if o.Price < 0 || o.Quantity < 0 {
		return ErrAmountOverflow
	}
	hi, lo := bits.Mul64(uint64(o.Price), uint64(o.Quantity))
	if hi != 0 || lo > uint64(MaxAmount) {
		return ErrAmountOverflow
	}
	o.Amount = Money(lo)
	return nil
}
