// Package errors provides structured error handling for satchel.
// It defines the wallet's error taxonomy as sentinel errors, the CLI exit
// codes they map to, and helpers for attaching context, details and
// suggestions without losing the sentinel identity.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes returned by the CLI.
const (
	ExitSuccess  = 0 // Successful execution
	ExitGeneral  = 1 // General, chain or submission failure
	ExitInput    = 2 // Invalid input
	ExitAuth     = 3 // Wrong password or unreadable keystore
	ExitNotFound = 4 // Resource not found
	ExitFunds    = 5 // Insufficient funds
)

// SatchelError is the structured error type used across the module.
type SatchelError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *SatchelError) Error() string {
	msg := e.Message

	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *SatchelError) Unwrap() error {
	return e.Cause
}

// Is matches on Code so wrapped copies still compare equal to their sentinel.
func (e *SatchelError) Is(target error) bool {
	var t *SatchelError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &SatchelError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &SatchelError{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	// Authentication and keystore errors.
	ErrWrongPassword = &SatchelError{
		Code:       "WRONG_PASSWORD",
		Message:    "wrong password",
		Suggestion: "Check the password and try again",
		ExitCode:   ExitAuth,
	}

	ErrKeystoreCorrupt = &SatchelError{
		Code:       "KEYSTORE_CORRUPT",
		Message:    "keystore is unreadable or corrupted",
		Suggestion: "Restore the account from a backup or re-import its secret",
		ExitCode:   ExitAuth,
	}

	// Validation errors.
	ErrInvalidName = &SatchelError{
		Code:     "INVALID_NAME",
		Message:  "invalid name",
		ExitCode: ExitInput,
	}

	ErrWeakPassword = &SatchelError{
		Code:     "WEAK_PASSWORD",
		Message:  "password is too short",
		ExitCode: ExitInput,
	}

	ErrInvalidSecret = &SatchelError{
		Code:       "INVALID_SECRET",
		Message:    "secret is neither a 12-word mnemonic nor a 64-character hex private key",
		Suggestion: "Enter a 12-word seed phrase or a 64-character hex private key",
		ExitCode:   ExitInput,
	}

	ErrInvalidMnemonic = &SatchelError{
		Code:     "INVALID_MNEMONIC",
		Message:  "invalid mnemonic phrase",
		ExitCode: ExitInput,
	}

	ErrInvalidAddress = &SatchelError{
		Code:       "INVALID_ADDRESS",
		Message:    "invalid address format",
		Suggestion: "Addresses are 0x followed by 40 hex characters",
		ExitCode:   ExitInput,
	}

	ErrInvalidAmount = &SatchelError{
		Code:     "INVALID_AMOUNT",
		Message:  "invalid amount format",
		ExitCode: ExitInput,
	}

	ErrInvalidGasTier = &SatchelError{
		Code:       "INVALID_GAS_TIER",
		Message:    "invalid gas tier",
		Suggestion: "Use one of: default, slow, medium, fast",
		ExitCode:   ExitInput,
	}

	ErrConfigInvalid = &SatchelError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration is invalid",
		ExitCode: ExitInput,
	}

	// Not-found errors.
	ErrAccountNotFound = &SatchelError{
		Code:     "ACCOUNT_NOT_FOUND",
		Message:  "account not found",
		ExitCode: ExitNotFound,
	}

	ErrNetworkNotFound = &SatchelError{
		Code:     "NETWORK_NOT_FOUND",
		Message:  "network not found in chain registry",
		ExitCode: ExitNotFound,
	}

	ErrTokenNotFound = &SatchelError{
		Code:     "TOKEN_NOT_FOUND",
		Message:  "token not found",
		ExitCode: ExitNotFound,
	}

	ErrBeneficiaryNotFound = &SatchelError{
		Code:     "BENEFICIARY_NOT_FOUND",
		Message:  "beneficiary not found",
		ExitCode: ExitNotFound,
	}

	// Chain errors.
	ErrChainUnavailable = &SatchelError{
		Code:     "CHAIN_UNAVAILABLE",
		Message:  "chain endpoint unavailable",
		ExitCode: ExitGeneral,
	}

	ErrNonceTooLow = &SatchelError{
		Code:     "NONCE_TOO_LOW",
		Message:  "transaction nonce too low",
		ExitCode: ExitGeneral,
	}

	ErrUnderpriced = &SatchelError{
		Code:       "TX_UNDERPRICED",
		Message:    "transaction gas price too low",
		Suggestion: "Retry with a faster gas tier",
		ExitCode:   ExitGeneral,
	}

	ErrReverted = &SatchelError{
		Code:     "TX_REVERTED",
		Message:  "transaction reverted",
		ExitCode: ExitGeneral,
	}

	ErrFiatUnavailable = &SatchelError{
		Code:     "FIAT_UNAVAILABLE",
		Message:  "exchange rate unavailable",
		ExitCode: ExitGeneral,
	}

	// Transfer errors.
	ErrInsufficientFunds = &SatchelError{
		Code:     "INSUFFICIENT_FUNDS",
		Message:  "insufficient funds for transaction",
		ExitCode: ExitFunds,
	}

	ErrTransferFailed = &SatchelError{
		Code:     "TRANSFER_FAILED",
		Message:  "transfer failed",
		ExitCode: ExitGeneral,
	}

	ErrTransferCancelled = &SatchelError{
		Code:     "TRANSFER_CANCELLED",
		Message:  "transfer cancelled",
		ExitCode: ExitGeneral,
	}

	ErrCancelled = &SatchelError{
		Code:     "CANCELLED",
		Message:  "operation cancelled",
		ExitCode: ExitGeneral,
	}

	ErrInvalidState = &SatchelError{
		Code:     "INVALID_STATE",
		Message:  "operation not allowed in current transfer state",
		ExitCode: ExitGeneral,
	}

	// Session errors.
	ErrNoSession = &SatchelError{
		Code:       "NO_SESSION",
		Message:    "no account is unlocked",
		Suggestion: "Unlock an account first",
		ExitCode:   ExitAuth,
	}

	// Backup errors.
	ErrBackupCorrupted = &SatchelError{
		Code:     "BACKUP_CORRUPTED",
		Message:  "backup file is corrupted - checksum mismatch",
		ExitCode: ExitInput,
	}
)

// New creates a new SatchelError with the given code and message.
func New(code, message string) *SatchelError {
	return &SatchelError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var se *SatchelError
	if errors.As(err, &se) {
		return &SatchelError{
			Code:       se.Code,
			Message:    fmt.Sprintf("%s: %s", msg, se.Message),
			Details:    se.Details,
			Suggestion: se.Suggestion,
			Cause:      se.Cause,
			ExitCode:   se.ExitCode,
		}
	}

	return &SatchelError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithCause returns a copy of sentinel carrying cause as its underlying error.
func WithCause(sentinel *SatchelError, cause error) error {
	return &SatchelError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		Details:    sentinel.Details,
		Suggestion: sentinel.Suggestion,
		Cause:      cause,
		ExitCode:   sentinel.ExitCode,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var se *SatchelError
	if errors.As(err, &se) {
		return &SatchelError{
			Code:       se.Code,
			Message:    se.Message,
			Details:    details,
			Suggestion: se.Suggestion,
			Cause:      se.Cause,
			ExitCode:   se.ExitCode,
		}
	}

	return &SatchelError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var se *SatchelError
	if errors.As(err, &se) {
		return &SatchelError{
			Code:       se.Code,
			Message:    se.Message,
			Details:    se.Details,
			Suggestion: suggestion,
			Cause:      se.Cause,
			ExitCode:   se.ExitCode,
		}
	}

	return &SatchelError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var se *SatchelError
	if errors.As(err, &se) {
		return se.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var se *SatchelError
	if errors.As(err, &se) {
		return se.Code
	}
	return "GENERAL_ERROR"
}

// Suggestion returns the suggestion attached to err, if any.
func Suggestion(err error) string {
	var se *SatchelError
	if errors.As(err, &se) {
		return se.Suggestion
	}
	return ""
}

// Recoverable reports whether err should send the user back to the input
// that produced it: validation failures and a wrong password.
func Recoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrWrongPassword) {
		return true
	}
	return ExitCode(err) == ExitInput
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
