package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Defaults applied when no settings row exists yet.
var (
	DefaultLowBalanceThreshold = decimal.NewFromInt(100)
	DefaultMonthlyBudget       = decimal.NewFromInt(1000)
)

// ErrEmptySettingsUpdate is returned when an update names no field at all.
var ErrEmptySettingsUpdate = errors.New("at least one setting must be provided")

// InvalidSettingsError rejects a settings update before anything is written.
type InvalidSettingsError struct {
	Field  string
	Reason string
}

func (e *InvalidSettingsError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Settings is the single active user settings record.
type Settings struct {
	LowBalanceThreshold decimal.Decimal `json:"low_balance_threshold"`
	MonthlyBudget       decimal.Decimal `json:"monthly_budget"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// DefaultSettings returns the settings used before the user configures anything.
func DefaultSettings() Settings {
	return Settings{
		LowBalanceThreshold: DefaultLowBalanceThreshold,
		MonthlyBudget:       DefaultMonthlyBudget,
	}
}

// SettingsUpdate is a partial update; nil fields are left unchanged.
type SettingsUpdate struct {
	LowBalanceThreshold *decimal.Decimal `json:"low_balance_threshold"`
	MonthlyBudget       *decimal.Decimal `json:"monthly_budget"`
}

// Validate rejects empty updates and values that are negative or too large.
func (u SettingsUpdate) Validate() error {
	if u.LowBalanceThreshold == nil && u.MonthlyBudget == nil {
		return ErrEmptySettingsUpdate
	}
	if err := validateSetting("low_balance_threshold", u.LowBalanceThreshold); err != nil {
		return err
	}
	return validateSetting("monthly_budget", u.MonthlyBudget)
}

func validateSetting(field string, v *decimal.Decimal) error {
	switch {
	case v == nil:
		return nil
	case v.IsNegative():
		return &InvalidSettingsError{Field: field, Reason: "must not be negative"}
	case v.Round(AmountScale).GreaterThan(MaxAmount):
		return &InvalidSettingsError{Field: field, Reason: "must not exceed " + MaxAmount.String()}
	}
	return nil
}

// Apply returns s with the fields present in u replaced.
func (s Settings) Apply(u SettingsUpdate) Settings {
	if u.LowBalanceThreshold != nil {
		s.LowBalanceThreshold = *u.LowBalanceThreshold
	}
	if u.MonthlyBudget != nil {
		s.MonthlyBudget = *u.MonthlyBudget
	}
	return s
}
