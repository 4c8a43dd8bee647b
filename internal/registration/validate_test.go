package registration

import (
	"strings"
	"testing"

	"github.com/a-szyszlo/event-manager/internal/apperr"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName_Idempotent(t *testing.T) {
	inputs := []string{"  Jan   Kowalski ", "Jan\tKowalski", "Zażółć  gęślą", "", "a"}

	for _, in := range inputs {
		once := NormalizeName(in)
		require.Equal(t, once, NormalizeName(once), "input %q", in)
	}
	require.Equal(t, "Jan Kowalski", NormalizeName("  Jan \n  Kowalski "))
}

func TestValidateName(t *testing.T) {
	require.NoError(t, ValidateName("Jo"))
	require.NoError(t, ValidateName(strings.Repeat("ł", 100)))
	require.Error(t, ValidateName(""))
	require.Error(t, ValidateName("J"))
	require.Error(t, ValidateName(strings.Repeat("ł", 101)))
	require.Error(t, ValidateName("Jan <script>"))
	require.Error(t, ValidateName("Jan >"))
}

func TestValidateEmail(t *testing.T) {
	require.NoError(t, ValidateEmail("jan@example.com"))
	require.Error(t, ValidateEmail(""))
	require.Error(t, ValidateEmail("not-an-email"))
	require.Error(t, ValidateEmail("<jan@example.com>"))

	long := strings.Repeat("a", 64) + "@" + strings.Repeat("b", 63) + "." + strings.Repeat("c", 63) + "." + strings.Repeat("d", 63) + ".pl"
	require.Greater(t, len(long), EmailMaxBytes)
	requireMessage(t, ValidateEmail(long), msgEmailLength)
	requireMessage(t, ValidateEmail(strings.Repeat("a", 250)+"@b.pl"), msgEmailLength)
	requireMessage(t, ValidateEmail("jan@"), msgEmailInvalid)
	requireMessage(t, ValidateEmail(""), msgEmailInvalid)
}

func requireMessage(t *testing.T, err error, want string) {
	t.Helper()
	appErr, ok := apperr.As(err)
	require.True(t, ok, "expected *apperr.Error, got %v", err)
	require.Equal(t, want, appErr.Message)
}

func TestNormalizeAndValidate(t *testing.T) {
	name, email, err := NormalizeAndValidate("  Jan   Kowalski ", " Jan@Example.com ")
	require.NoError(t, err)
	require.Equal(t, "Jan Kowalski", name)
	require.Equal(t, "jan@example.com", email)
}
