package web

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTemplates(t *testing.T) {
	tmpl, err := Templates()
	require.NoError(t, err)

	for _, name := range []string{"search.html", "event.html", "notfound.html", "header", "footer"} {
		require.NotNil(t, tmpl.Lookup(name), name)
	}
}

func TestStatic(t *testing.T) {
	fs := Static()

	for _, name := range []string{"/js/register.js", "/js/search.js", "/css/events.css"} {
		f, err := fs.Open(name)
		require.NoError(t, err, name)

		b, err := io.ReadAll(f)
		require.NoError(t, err)
		require.NotEmpty(t, b, name)
		require.NoError(t, f.Close())
	}
}
