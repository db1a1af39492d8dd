// Package address holds the billing/shipping address record and its
// validation rules.
package address

import (
	"regexp"
	"strings"
)

// Record is a postal address plus the contact details collected on the
// billing and shipping steps of checkout.
type Record struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Building  string `json:"building"`
	City      string `json:"city"`
	State     string `json:"state"`
	Pincode   string `json:"pincode"`
	Country   string `json:"country"`
}

// FullName returns the buyer name as sent to the order API and the payment
// gateway prefill.
func (r Record) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// FieldError is a validation failure for a single field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result is the outcome of validating a Record. A valid record has an empty
// FieldErrors slice. First holds the message of the first failing field, in
// declaration order, for use as a summary banner.
type Result struct {
	FieldErrors []FieldError `json:"fieldErrors,omitempty"`
	First       string       `json:"first,omitempty"`
}

// Valid reports whether the record passed all rules.
func (r Result) Valid() bool { return len(r.FieldErrors) == 0 }

// MessageFor returns the error message for the given field key, if any.
func (r Result) MessageFor(field string) (string, bool) {
	for _, fe := range r.FieldErrors {
		if fe.Field == field {
			return fe.Message, true
		}
	}
	return "", false
}

var (
	emailRe   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe   = regexp.MustCompile(`^[0-9]{10,}$`)
	pincodeRe = regexp.MustCompile(`^[0-9]{5,10}$`)
)

// Validate checks a Record against the checkout address rules and returns
// the ordered set of field errors. The same function gates both the submit
// control and the actual step transition, so the two can never disagree.
func Validate(rec Record) Result {
	var res Result
	add := func(field, message string) {
		res.FieldErrors = append(res.FieldErrors, FieldError{Field: field, Message: message})
		if res.First == "" {
			res.First = message
		}
	}

	if strings.TrimSpace(rec.FirstName) == "" {
		add("firstName", "First name is required")
	}
	if strings.TrimSpace(rec.LastName) == "" {
		add("lastName", "Last name is required")
	}

	switch email := strings.TrimSpace(rec.Email); {
	case email == "":
		add("email", "Email is required")
	case !emailRe.MatchString(email):
		add("email", "Please enter a valid email address")
	}

	switch phone := strings.TrimSpace(rec.Phone); {
	case len(phone) < 10:
		add("phone", "Phone number is required")
	case !phoneRe.MatchString(phone):
		add("phone", "Please enter a valid phone number (min 10 digits)")
	}

	if strings.TrimSpace(rec.Building) == "" {
		add("building", "Building/Apt is required")
	}
	if strings.TrimSpace(rec.Address) == "" {
		add("address", "Street address is required")
	}
	if strings.TrimSpace(rec.City) == "" {
		add("city", "City is required")
	}
	if strings.TrimSpace(rec.State) == "" {
		add("state", "State is required")
	}

	switch pincode := strings.TrimSpace(rec.Pincode); {
	case len(pincode) < 6:
		add("pincode", "Pincode is required")
	case !pincodeRe.MatchString(pincode):
		add("pincode", "Please enter a valid pincode (6 digits)")
	}

	if strings.TrimSpace(rec.Country) == "" {
		add("country", "Country is required")
	}

	return res
}
