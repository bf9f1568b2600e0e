package domain

import (
	"fmt"
	"math"
	"strconv"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Amount holds money in minor units. Conversion to decimal happens only at the
// presentation boundary through Currency.
type Amount int64

func (a Amount) String() string {
	return strconv.FormatInt(int64(a), 10)
}

// Currency describes how minor units are presented and parsed.
type Currency struct {
	Code  string
	Scale int32
}

// NewCurrency resolves an ISO 4217 code against the go-money currency table.
func NewCurrency(code string) (Currency, error) {
	c := money.GetCurrency(code)
	if c == nil {
		return Currency{}, fmt.Errorf("unknown currency %q", code)
	}
	return Currency{Code: c.Code, Scale: int32(c.Fraction)}, nil
}

func (c Currency) Decimal(a Amount) decimal.Decimal {
	return decimal.New(int64(a), -c.Scale)
}

// String renders a as a plain fixed-point number, e.g. "750.00".
func (c Currency) String(a Amount) string {
	return c.Decimal(a).StringFixed(c.Scale)
}

// Display renders a with the currency grapheme and separators, e.g. "$750,00".
func (c Currency) Display(a Amount) string {
	return money.New(int64(a), c.Code).Display()
}

// Parse converts a decimal string into minor units. Values carrying more
// precision than the currency allows are rejected rather than rounded.
func (c Currency) Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	minor := d.Shift(c.Scale)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", s, c.Scale)
	}
	if minor.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || minor.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, fmt.Errorf("amount %q out of range", s)
	}
	return Amount(minor.IntPart()), nil
}
