package collector

import (
	"regexp"
	"strings"

	"github.com/V4T54L/visitor-ingest/internal/domain"
)

// FormField is one input of a form, in document order.
type FormField struct {
	Name  string
	Type  string
	Value string
}

// Form is a submitted or interacted-with form.
type Form struct {
	Name   string
	Action string
	Fields []FormField
}

// IsContactForm reports whether field focus on this form is tracked.
func (f Form) IsContactForm() bool {
	return strings.Contains(f.Name, "form1") || strings.Contains(f.Action, "contact")
}

// Contact holds extracted contact fields. Empty means not found.
type Contact struct {
	Name  string
	Phone string
	Email string
}

// Empty reports whether no field is set.
func (c Contact) Empty() bool {
	return c.Name == "" && c.Phone == "" && c.Email == ""
}

// merge copies the non-empty fields of update onto c.
func (c *Contact) merge(update Contact) {
	if update.Name != "" {
		c.Name = update.Name
	}
	if update.Phone != "" {
		c.Phone = update.Phone
	}
	if update.Email != "" {
		c.Email = update.Email
	}
}

type contactField int

const (
	fieldName contactField = iota
	fieldPhone
	fieldEmail
)

type fieldMatcher func(FormField) bool

// contactRule fills target with the value of the first matching non-empty
// field. Rules run in order and a filled target is never overwritten.
type contactRule struct {
	target contactField
	keys   []string
	match  fieldMatcher
}

var contactRules = []contactRule{
	{target: fieldName, keys: []string{"name", "fname", "fullname"}},
	{target: fieldPhone, keys: []string{"phone", "mobile", "modal_my_mobile2", "modal_dg_mobile", "mobileconcat"}},
	{target: fieldPhone, match: typeIs("tel")},
	{target: fieldPhone, match: nameContains("phone", "mobile", "tel")},
	{target: fieldEmail, keys: []string{"email", "mail"}},
	{target: fieldEmail, match: either(nameContains("email"), typeIs("email"))},
}

// ExtractContact pulls name, phone, and email out of form. A phone number
// is normalized to digits and an optional leading '+'; a value without a
// phone-like run is kept as entered.
func ExtractContact(form Form) Contact {
	values := make(map[string]string, len(form.Fields))
	for _, f := range form.Fields {
		if f.Value != "" {
			if _, seen := values[f.Name]; !seen {
				values[f.Name] = f.Value
			}
		}
	}

	found := make(map[contactField]string, 3)
	for _, rule := range contactRules {
		if found[rule.target] != "" {
			continue
		}
		found[rule.target] = rule.apply(form, values)
	}

	c := Contact{Name: found[fieldName], Phone: found[fieldPhone], Email: found[fieldEmail]}
	if c.Phone != "" {
		if n, ok := domain.NormalizePhone(c.Phone); ok {
			c.Phone = n
		}
	}
	return c
}

func (r contactRule) apply(form Form, values map[string]string) string {
	for _, k := range r.keys {
		if v := values[k]; v != "" {
			return v
		}
	}
	if r.match == nil {
		return ""
	}
	for _, f := range form.Fields {
		if f.Value != "" && r.match(f) {
			return f.Value
		}
	}
	return ""
}

func typeIs(t string) fieldMatcher {
	return func(f FormField) bool { return strings.EqualFold(f.Type, t) }
}

func nameContains(parts ...string) fieldMatcher {
	return func(f FormField) bool { return containsAny(strings.ToLower(f.Name), parts) }
}

func either(a, b fieldMatcher) fieldMatcher {
	return func(f FormField) bool { return a(f) || b(f) }
}

var (
	nameFieldPattern  = regexp.MustCompile(`(?i)name|fname|full.?name`)
	phoneFieldPattern = regexp.MustCompile(`(?i)phone|mobile|tel`)
)

// FieldContact returns the contact update implied by a single field losing
// focus.
func FieldContact(f FormField) Contact {
	var c Contact
	if f.Value == "" {
		return c
	}
	if nameFieldPattern.MatchString(f.Name) {
		c.Name = f.Value
	}
	if phoneFieldPattern.MatchString(f.Name) {
		c.Phone = f.Value
	}
	if f.Name == "email" {
		c.Email = f.Value
	}
	return c
}

var indianMobilePattern = regexp.MustCompile(`(\+?91[\s-]?)?[6-9]\d{9}`)

// PhoneInText returns the first Indian mobile number found in text.
func PhoneInText(text string) (string, bool) {
	m := indianMobilePattern.FindString(text)
	return m, m != ""
}
