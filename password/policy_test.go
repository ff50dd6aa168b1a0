package password

import (
	"testing"
)

func defaultPolicy() *Policy {
	return NewPolicy(PolicyConfig{
		MinLength:           8,
		MinDigits:           1,
		MinUppercase:        1,
		MinSpecial:          1,
		SimilarityThreshold: 0.7,
	})
}

func aliceProfile() Profile {
	return Profile{
		Handle:    "alice",
		Email:     "alice@example.com",
		FirstName: "Alice",
		LastName:  "Martin",
	}
}

func TestPolicyAcceptsStrongPassword(t *testing.T) {
	if err := defaultPolicy().Validate("Tr0uba#dour9", aliceProfile()); err != nil {
		t.Fatalf("expected strong password to pass, got: %v", err)
	}
}

func TestPolicyMinLength(t *testing.T) {
	err := defaultPolicy().Validate("Ab1#xyz", aliceProfile())
	if err == nil {
		t.Fatal("expected short password to fail")
	}

	v, ok := err.(*Violation)
	if !ok || v.Rule != "min_length" {
		t.Fatalf("expected min_length violation, got: %v", err)
	}
}

func TestPolicyCommonPassword(t *testing.T) {
	// Passes the length rule, then hits the common list case-insensitively.
	err := defaultPolicy().Validate("Password1", aliceProfile())
	if err == nil {
		t.Fatal("expected common password to fail")
	}

	v, ok := err.(*Violation)
	if !ok || v.Rule != "common_password" {
		t.Fatalf("expected common_password violation, got: %v", err)
	}
}

func TestPolicyRequiresDigit(t *testing.T) {
	err := defaultPolicy().Validate("Troubadour#", aliceProfile())
	if err == nil {
		t.Fatal("expected digitless password to fail")
	}

	v, ok := err.(*Violation)
	if !ok || v.Rule != "min_digits" {
		t.Fatalf("expected min_digits violation, got: %v", err)
	}
}

func TestPolicyRequiresUppercase(t *testing.T) {
	err := defaultPolicy().Validate("troubadour9#", aliceProfile())
	if err == nil {
		t.Fatal("expected lowercase-only password to fail")
	}

	v, ok := err.(*Violation)
	if !ok || v.Rule != "min_uppercase" {
		t.Fatalf("expected min_uppercase violation, got: %v", err)
	}
}

func TestPolicyRequiresSpecial(t *testing.T) {
	err := defaultPolicy().Validate("Troubadour9z", aliceProfile())
	if err == nil {
		t.Fatal("expected password without special characters to fail")
	}

	v, ok := err.(*Violation)
	if !ok || v.Rule != "min_special" {
		t.Fatalf("expected min_special violation, got: %v", err)
	}
}

func TestPolicyRejectsAttributeSubstring(t *testing.T) {
	// Contains the handle verbatim: rejected regardless of ratio.
	err := defaultPolicy().Validate("Alice#2024xy", aliceProfile())
	if err == nil {
		t.Fatal("expected password containing handle to fail")
	}

	v, ok := err.(*Violation)
	if !ok || v.Rule != "attribute_similarity" {
		t.Fatalf("expected attribute_similarity violation, got: %v", err)
	}
}

func TestPolicyRejectsSimilarAttribute(t *testing.T) {
	profile := Profile{FirstName: "Jonathan"}

	// Not a substring in either direction, but shares almost every
	// character with the first name.
	err := defaultPolicy().Validate("Jonatha9n!xq", profile)
	if err == nil {
		t.Fatal("expected near-attribute password to fail")
	}

	v, ok := err.(*Violation)
	if !ok || v.Rule != "attribute_similarity" {
		t.Fatalf("expected attribute_similarity violation, got: %v", err)
	}
}

func TestPolicyEmptyProfileSkipsSimilarity(t *testing.T) {
	if err := defaultPolicy().Validate("Tr0uba#dour9", Profile{}); err != nil {
		t.Fatalf("expected empty profile to pass similarity, got: %v", err)
	}
}

func TestValidateAllCollectsEveryViolation(t *testing.T) {
	violations := defaultPolicy().ValidateAll("abc", aliceProfile())
	if len(violations) != 4 {
		t.Fatalf("expected 4 violations for %q, got %d: %v", "abc", len(violations), violations)
	}
}

func TestValidateFailFastOrder(t *testing.T) {
	// Multiple rules would veto, only the first in pipeline order reports.
	err := defaultPolicy().Validate("abc", aliceProfile())
	v, ok := err.(*Violation)
	if !ok || v.Rule != "min_length" {
		t.Fatalf("expected first violation to be min_length, got: %v", err)
	}
}

func TestCustomCommonList(t *testing.T) {
	policy := NewPolicy(PolicyConfig{
		MinLength:           8,
		SimilarityThreshold: 0.7,
		CommonList:          []string{"companyname2024"},
	})

	if err := policy.Validate("CompanyName2024", Profile{}); err == nil {
		t.Fatal("expected custom common list entry to be rejected")
	}
	if err := policy.Validate("password", Profile{}); err != nil {
		t.Fatalf("expected built-in list to be replaced, got: %v", err)
	}
}

func TestPolicyAcceptsAttributeAnagram(t *testing.T) {
	// Shares every character with the first name but almost none of the
	// ordering, so the sequence ratio stays under threshold.
	if err := defaultPolicy().Validate("Nahtan0j!x", Profile{FirstName: "Jonathan"}); err != nil {
		t.Fatalf("expected reordered-attribute password to pass, got: %v", err)
	}
}

func TestPolicyRejectsShortAttributeSubstring(t *testing.T) {
	// Even a two-letter attribute embedded in the password rejects.
	err := defaultPolicy().Validate("Al3!wxyzq", Profile{FirstName: "Al"})
	if err == nil {
		t.Fatal("expected password containing short attribute to fail")
	}

	v, ok := err.(*Violation)
	if !ok || v.Rule != "attribute_similarity" {
		t.Fatalf("expected attribute_similarity violation, got: %v", err)
	}
}

func TestSimilarityRatioOrderSensitive(t *testing.T) {
	if r := similarityRatio("abcd", "dcba"); r != 0.25 {
		t.Fatalf("anagram: expected ratio 0.25, got %f", r)
	}
	if r := similarityRatio("jonathan", "tanjonah"); r != 0.625 {
		t.Fatalf("reordered string: expected ratio 0.625, got %f", r)
	}
}

func TestSimilarityRatioBounds(t *testing.T) {
	if r := similarityRatio("abc", "abc"); r != 1 {
		t.Fatalf("identical strings: expected ratio 1, got %f", r)
	}
	if r := similarityRatio("abc", "xyz"); r != 0 {
		t.Fatalf("disjoint strings: expected ratio 0, got %f", r)
	}
	if r := similarityRatio("", ""); r != 1 {
		t.Fatalf("empty strings: expected ratio 1, got %f", r)
	}
}
