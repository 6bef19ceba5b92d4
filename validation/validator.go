// Package validation normalizes query parameters and validates user input.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/giygas/drugcheck-api/interfaces"
)

// Compile-time check to ensure Validator implements InputValidator
var _ interfaces.InputValidator = (*Validator)(nil)

// Pre-compiled regex patterns, reused for all validations
var (
	// Drug names: letters (incl. accents), digits, spaces and the punctuation found in INN/brand names
	drugNameRegex = regexp.MustCompile(`^[\p{L}0-9\s\-\.\+'/(),%]+$`)

	patientIDRegex = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

	// Dangerous patterns matched as lowercase substrings (faster than regex).
	// Semicolons and dashes are left out: they are common in clinical free text.
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"onclick=", "onmouseover=", "eval(", "expression(", "@import",
		// SQL injection patterns
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		// Command injection patterns
		"`", "$(", "${",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
		// NoSQL injection patterns
		"{$ne:", "{$gt:", "{$where:", "{$regex:",
	}
)

const (
	MaxDrugNameLength  = 100
	MaxListItems       = 25
	MaxListItemLength  = 120
	MaxFreeTextLength  = 1000
	MaxPatientIDLength = 64
	maxRepetition      = 10
)

// Validator implements interfaces.InputValidator
type Validator struct{}

// NewValidator creates a new input validator
func NewValidator() interfaces.InputValidator {
	return &Validator{}
}

// ValidateDrugName checks a proposed drug name
func (v *Validator) ValidateDrugName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("drug cannot be empty")
	}
	if len(name) < 2 {
		return fmt.Errorf("drug too short: minimum 2 characters")
	}
	if len(name) > MaxDrugNameLength {
		return fmt.Errorf("drug too long: maximum %d characters", MaxDrugNameLength)
	}
	if err := checkDangerous(name); err != nil {
		return fmt.Errorf("drug %w", err)
	}
	if !drugNameRegex.MatchString(name) {
		return fmt.Errorf("drug contains invalid characters. Only letters, numbers, spaces and - . + ' / ( ) , %% are allowed")
	}
	if hasExcessiveRepetition(name) {
		return fmt.Errorf("drug contains excessive character repetition")
	}
	return nil
}

// ValidateList checks a comma-separated list parameter after splitting
func (v *Validator) ValidateList(field string, items []string) error {
	if len(items) > MaxListItems {
		return fmt.Errorf("%s has too many items: maximum %d", field, MaxListItems)
	}
	for _, item := range items {
		if len(item) > MaxListItemLength {
			return fmt.Errorf("%s item too long: maximum %d characters", field, MaxListItemLength)
		}
		if err := checkText(item); err != nil {
			return fmt.Errorf("%s %w", field, err)
		}
	}
	return nil
}

// ValidateFreeText checks issue / hint style parameters; empty is allowed
func (v *Validator) ValidateFreeText(field, text string) error {
	if len(text) > MaxFreeTextLength {
		return fmt.Errorf("%s too long: maximum %d characters", field, MaxFreeTextLength)
	}
	if err := checkText(text); err != nil {
		return fmt.Errorf("%s %w", field, err)
	}
	return nil
}

// ValidatePatientID checks the id of a patient lookup
func (v *Validator) ValidatePatientID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if len(id) > MaxPatientIDLength {
		return fmt.Errorf("id too long: maximum %d characters", MaxPatientIDLength)
	}
	if !patientIDRegex.MatchString(id) {
		return fmt.Errorf("id contains invalid characters. Only letters, numbers, '_', '-' and '.' are allowed")
	}
	return nil
}

// SplitList splits a comma-separated parameter: items are trimmed, empty
// items dropped and repeats removed case-insensitively, keeping first order.
func SplitList(raw string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

// ParseK parses the optional k parameter; empty means 0 (use the default)
func ParseK(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	k, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("k must be an integer, got: %q", raw)
	}
	return k, nil
}

func checkText(s string) error {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return fmt.Errorf("contains control characters")
		}
	}
	if err := checkDangerous(s); err != nil {
		return err
	}
	if hasExcessiveRepetition(s) {
		return fmt.Errorf("contains excessive character repetition")
	}
	return nil
}

func checkDangerous(s string) error {
	lower := strings.ToLower(s)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("contains potentially dangerous content")
		}
	}
	return nil
}

// hasExcessiveRepetition reports the same character repeated more than 10 times consecutively
func hasExcessiveRepetition(input string) bool {
	run := 1
	var prev rune = -1
	for _, r := range input {
		if r == prev {
			run++
			if run > maxRepetition {
				return true
			}
		} else {
			run = 1
			prev = r
		}
	}
	return false
}
