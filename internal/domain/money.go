package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MaxMoneyMinor задаёт верхнюю границу для NUMERIC(10,2): 99999999.99.
const MaxMoneyMinor int64 = 9_999_999_999

// Money хранит денежную сумму в минимальных единицах (центах), ровно два знака после запятой.
type Money int64

// MoneyFromMinor создаёт сумму из минимальных единиц.
func MoneyFromMinor(minor int64) Money {
	return Money(minor)
}

// ParseMoney разбирает строку вида "150", "150.5" или "150.00".
// Больше двух знаков после запятой, знак и экспонента не допускаются.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("parse money: empty value")
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" || (hasDot && frac == "") {
		return 0, fmt.Errorf("parse money %q: malformed amount", s)
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("parse money %q: more than 2 fractional digits", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, fmt.Errorf("parse money %q: malformed amount", s)
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse money %q: %w", s, err)
	}
	cents, _ := strconv.ParseInt(frac, 10, 64)
	if units > MaxMoneyMinor/100 {
		return 0, fmt.Errorf("parse money %q: exceeds maximum", s)
	}

	return Money(units*100 + cents), nil
}

// MustParseMoney паникует при ошибке; для констант и тестов.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Minor возвращает сумму в минимальных единицах.
func (m Money) Minor() int64 {
	return int64(m)
}

func (m Money) String() string {
	v := int64(m)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Validate проверяет неотрицательность и попадание в диапазон decimal(10,2).
func (m Money) Validate(field string) error {
	if m < 0 {
		return NewValidationError(field, "must be non-negative")
	}
	if int64(m) > MaxMoneyMinor {
		return NewValidationError(field, "exceeds 99999999.99")
	}
	return nil
}

// Value пишет сумму в NUMERIC-колонку в текстовом виде.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan читает NUMERIC из драйвера (текст, байты или число).
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		return fmt.Errorf("scan money: null value")
	case string:
		return m.scanText(v)
	case []byte:
		return m.scanText(string(v))
	case int64:
		*m = Money(v * 100)
		return nil
	case float64:
		return m.scanText(strconv.FormatFloat(v, 'f', 2, 64))
	default:
		return fmt.Errorf("scan money: unsupported type %T", src)
	}
}

func (m *Money) scanText(s string) error {
	s = strings.TrimSpace(s)
	negative := strings.HasPrefix(s, "-")
	parsed, err := ParseMoney(strings.TrimPrefix(s, "-"))
	if err != nil {
		return fmt.Errorf("scan money: %w", err)
	}
	if negative {
		parsed = -parsed
	}
	*m = parsed
	return nil
}

// MarshalJSON сериализует сумму строкой, чтобы не терять точность.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON принимает строку "150.00".
func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("money must be a decimal string: %w", err)
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
