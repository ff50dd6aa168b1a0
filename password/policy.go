package password

import (
	"fmt"
	"strings"
	"unicode"
)

// Profile carries the user attributes the similarity rule compares a
// candidate password against. Empty fields are skipped.
type Profile struct {
	Handle    string
	Email     string
	FirstName string
	LastName  string
}

func (p Profile) attributes() []string {
	attrs := make([]string, 0, 5)
	for _, v := range []string{p.Handle, p.emailLocalPart(), p.Email, p.FirstName, p.LastName} {
		if v != "" {
			attrs = append(attrs, v)
		}
	}
	return attrs
}

func (p Profile) emailLocalPart() string {
	if at := strings.IndexByte(p.Email, '@'); at > 0 {
		return p.Email[:at]
	}
	return ""
}

// Violation is the error returned when a rule vetoes a password. Rule
// names are stable identifiers; Reason is the human-readable message.
type Violation struct {
	Rule   string
	Reason string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("password rule %s: %s", v.Rule, v.Reason)
}

// Rule checks one property of a candidate password.
type Rule interface {
	Name() string
	Check(password string, profile Profile) *Violation
}

// PolicyConfig defines a public type used by authcore APIs.
//
// PolicyConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PolicyConfig struct {
	MinLength           int
	MinDigits           int
	MinUppercase        int
	MinSpecial          int
	SimilarityThreshold float64

	// CommonList overrides the built-in common-password list when set.
	CommonList []string
}

// Policy is an ordered pipeline of rules. Validate stops at the first
// veto; ValidateAll collects every veto.
type Policy struct {
	rules []Rule
}

// NewPolicy builds the standard pipeline: minimum length, common-password
// list, digit count, uppercase count, special-character count, and user
// attribute similarity. Rules with a zero requirement still run and pass.
func NewPolicy(cfg PolicyConfig) *Policy {
	common := cfg.CommonList
	if common == nil {
		common = defaultCommonPasswords
	}

	return &Policy{rules: []Rule{
		MinLengthRule{Min: cfg.MinLength},
		NewCommonPasswordRule(common),
		MinDigitsRule{Min: cfg.MinDigits},
		MinUppercaseRule{Min: cfg.MinUppercase},
		MinSpecialRule{Min: cfg.MinSpecial},
		SimilarityRule{Threshold: cfg.SimilarityThreshold},
	}}
}

// NewCustomPolicy builds a pipeline from an explicit rule list, in order.
func NewCustomPolicy(rules ...Rule) *Policy {
	return &Policy{rules: rules}
}

// Validate runs the pipeline and returns the first [Violation], or nil
// when every rule passes.
func (p *Policy) Validate(password string, profile Profile) error {
	for _, r := range p.rules {
		if v := r.Check(password, profile); v != nil {
			return v
		}
	}
	return nil
}

// ValidateAll runs every rule and returns all violations. Intended for
// interactive form feedback; the engine itself is fail-fast.
func (p *Policy) ValidateAll(password string, profile Profile) []*Violation {
	var out []*Violation
	for _, r := range p.rules {
		if v := r.Check(password, profile); v != nil {
			out = append(out, v)
		}
	}
	return out
}

// MinLengthRule rejects passwords shorter than Min runes.
type MinLengthRule struct {
	Min int
}

// Name describes the name operation and its observable behavior.
func (r MinLengthRule) Name() string { return "min_length" }

// Check describes the check operation and its observable behavior.
func (r MinLengthRule) Check(password string, _ Profile) *Violation {
	if len([]rune(password)) < r.Min {
		return &Violation{
			Rule:   r.Name(),
			Reason: fmt.Sprintf("password must be at least %d characters long", r.Min),
		}
	}
	return nil
}

// CommonPasswordRule rejects passwords found in a known-common list.
// Matching is case-insensitive.
type CommonPasswordRule struct {
	set map[string]struct{}
}

// NewCommonPasswordRule describes the newcommonpasswordrule operation and its observable behavior.
func NewCommonPasswordRule(list []string) CommonPasswordRule {
	set := make(map[string]struct{}, len(list))
	for _, p := range list {
		set[strings.ToLower(p)] = struct{}{}
	}
	return CommonPasswordRule{set: set}
}

// Name describes the name operation and its observable behavior.
func (r CommonPasswordRule) Name() string { return "common_password" }

// Check describes the check operation and its observable behavior.
func (r CommonPasswordRule) Check(password string, _ Profile) *Violation {
	if _, ok := r.set[strings.ToLower(password)]; ok {
		return &Violation{
			Rule:   r.Name(),
			Reason: "password is too common",
		}
	}
	return nil
}

// MinDigitsRule requires at least Min digit characters.
type MinDigitsRule struct {
	Min int
}

// Name describes the name operation and its observable behavior.
func (r MinDigitsRule) Name() string { return "min_digits" }

// Check describes the check operation and its observable behavior.
func (r MinDigitsRule) Check(password string, _ Profile) *Violation {
	if countRunes(password, unicode.IsDigit) < r.Min {
		return &Violation{
			Rule:   r.Name(),
			Reason: fmt.Sprintf("password must contain at least %d digit(s)", r.Min),
		}
	}
	return nil
}

// MinUppercaseRule requires at least Min uppercase letters.
type MinUppercaseRule struct {
	Min int
}

// Name describes the name operation and its observable behavior.
func (r MinUppercaseRule) Name() string { return "min_uppercase" }

// Check describes the check operation and its observable behavior.
func (r MinUppercaseRule) Check(password string, _ Profile) *Violation {
	if countRunes(password, unicode.IsUpper) < r.Min {
		return &Violation{
			Rule:   r.Name(),
			Reason: fmt.Sprintf("password must contain at least %d uppercase letter(s)", r.Min),
		}
	}
	return nil
}

// MinSpecialRule requires at least Min characters that are neither
// letters nor digits.
type MinSpecialRule struct {
	Min int
}

// Name describes the name operation and its observable behavior.
func (r MinSpecialRule) Name() string { return "min_special" }

// Check describes the check operation and its observable behavior.
func (r MinSpecialRule) Check(password string, _ Profile) *Violation {
	special := func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	}
	if countRunes(password, special) < r.Min {
		return &Violation{
			Rule:   r.Name(),
			Reason: fmt.Sprintf("password must contain at least %d special character(s)", r.Min),
		}
	}
	return nil
}

// SimilarityRule rejects passwords too close to a user attribute. A
// password that contains an attribute value, or is contained by one, is
// rejected outright; otherwise the normalized similarity ratio against
// each attribute word must stay below Threshold.
type SimilarityRule struct {
	Threshold float64
}

// Name describes the name operation and its observable behavior.
func (r SimilarityRule) Name() string { return "attribute_similarity" }

// Check describes the check operation and its observable behavior.
func (r SimilarityRule) Check(password string, profile Profile) *Violation {
	lowered := strings.ToLower(password)

	for _, attr := range profile.attributes() {
		value := strings.ToLower(attr)

		// Containment in either direction always rejects, whatever the
		// ratio would say.
		if strings.Contains(lowered, value) || strings.Contains(value, lowered) {
			return &Violation{
				Rule:   r.Name(),
				Reason: "password is too similar to your personal information",
			}
		}

		for _, part := range attributeWords(value) {
			if similarityRatio(lowered, part) >= r.Threshold {
				return &Violation{
					Rule:   r.Name(),
					Reason: "password is too similar to your personal information",
				}
			}
		}
	}

	return nil
}

// attributeWords splits an attribute into alphanumeric words and appends
// the whole value, so "john.doe" is checked as "john", "doe", and
// "john.doe".
func attributeWords(value string) []string {
	words := strings.FieldsFunc(value, func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	})
	return append(words, value)
}

func countRunes(s string, match func(rune) bool) int {
	n := 0
	for _, c := range s {
		if match(c) {
			n++
		}
	}
	return n
}
