package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Kraków", "krakow"},
		{"  Łódź ", "lodz"},
		{"Nowy Sącz", "nowy-sacz"},
		{"nowy-sacz", "nowy-sacz"},
		{"Bielsko--Biała!!", "bielsko-biala"},
		{"Zielona_Góra", "zielona_gora"},
		{"---", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, Slugify(tt.in))
			require.Equal(t, tt.want, Slugify(Slugify(tt.in)), "slugify must be idempotent")
		})
	}
}

func TestSlugList(t *testing.T) {
	require.Nil(t, SlugList(""))
	require.Nil(t, SlugList("   "))
	require.Equal(t, []string{"warszawa", "krakow"}, SlugList("Warszawa, Kraków,,warszawa"))
}

func TestCollapseSpaces(t *testing.T) {
	require.Equal(t, "Jan Kowalski", CollapseSpaces("  Jan \t\n Kowalski  "))
	require.Equal(t, "Jan Kowalski", CollapseSpaces("Jan  Kowalski"))
}

func TestStripTags(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  hello  ", "hello"},
		{"tags", "<p>Hello <strong>world</strong></p>", "Hello world"},
		{"entities", "Fish &amp; chips", "Fish & chips"},
		{"script dropped", "<p>a</p><script>alert(1)</script><p>b</p>", "ab"},
		{"style dropped", "<style>p{color:red}</style>text", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, StripTags(tt.in))
		})
	}
}

func TestExcerpt(t *testing.T) {
	t.Run("at limit is unchanged", func(t *testing.T) {
		in := strings.Repeat("a", 160)
		require.Equal(t, in, Excerpt(in, 160))
	})

	t.Run("under limit only loses tags", func(t *testing.T) {
		require.Equal(t, "short text", Excerpt("<em>short</em> text", 160))
	})

	t.Run("over limit is cut with ellipsis", func(t *testing.T) {
		in := strings.Repeat("ż", 200)
		got := Excerpt(in, 160)
		require.True(t, strings.HasSuffix(got, Ellipsis))
		require.Equal(t, 161, len([]rune(got)))
	})

	t.Run("limit counts visible text only", func(t *testing.T) {
		in := "<p>" + strings.Repeat("b", 10) + "</p>"
		require.Equal(t, strings.Repeat("b", 10), Excerpt(in, 10))
	})

	t.Run("non positive limit disables cutting", func(t *testing.T) {
		in := strings.Repeat("c", 500)
		require.Equal(t, in, Excerpt(in, 0))
	})
}
