package registration

import (
	"strings"
	"unicode/utf8"

	"github.com/a-szyszlo/event-manager/internal/apperr"
	"github.com/a-szyszlo/event-manager/internal/domain/registration"
	"github.com/a-szyszlo/event-manager/internal/textutil"
	"github.com/go-playground/validator/v10"
)

const (
	NameMinRunes  = 2
	NameMaxRunes  = 100
	EmailMaxBytes = 254
)

var validate = validator.New()

// NormalizeName trims the name and collapses inner white space. It is
// idempotent.
func NormalizeName(name string) string {
	return textutil.CollapseSpaces(name)
}

// ValidateName expects an already normalized name.
func ValidateName(name string) error {
	if name == "" {
		return apperr.Validation(msgNameRequired)
	}

	n := utf8.RuneCountInString(name)
	if n < NameMinRunes || n > NameMaxRunes {
		return apperr.Validation(msgNameLength)
	}

	if strings.ContainsAny(name, "<>") {
		return apperr.Validation(msgNameChars)
	}

	return nil
}

// ValidateEmail expects a canonical (trimmed, lowercased) address.
func ValidateEmail(email string) error {
	if email == "" {
		return apperr.Validation(msgEmailInvalid)
	}

	if len(email) > EmailMaxBytes {
		return apperr.Validation(msgEmailLength)
	}

	if validate.Var(email, "email") != nil {
		return apperr.Validation(msgEmailInvalid)
	}

	if strings.ContainsAny(email, "<>") {
		return apperr.Validation(msgEmailChars)
	}

	return nil
}

// NormalizeAndValidate runs the syntactic checks in the order the endpoint
// reports them: name first, then email.
func NormalizeAndValidate(name, email string) (string, string, error) {
	name = NormalizeName(name)
	if err := ValidateName(name); err != nil {
		return "", "", err
	}

	email = registration.CanonicalEmail(email)
	if err := ValidateEmail(email); err != nil {
		return "", "", err
	}

	return name, email, nil
}
