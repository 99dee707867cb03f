package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeArtistName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Ragnar Kjartansson", "ragnar kjartansson"},
		{"collapses whitespace", "  Ragnar \t Kjartansson \n", "ragnar kjartansson"},
		{"unicode form", "Ásta Ólafsdóttir", "ásta ólafsdóttir"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, NormalizeArtistName(tt.in))
		})
	}
}

func TestNormalizeArtistNameVariantsAgree(t *testing.T) {
	t.Parallel()

	// Spelling variants that normalize identically must produce the same
	// dedup key, whatever the case, spacing or unicode form.
	variants := []string{
		"Ásta Ólafsdóttir",
		"ásta ólafsdóttir",
		"  ÁSTA   ÓLAFSDÓTTIR ",
		"Ásta Ólafsdóttir",
	}
	want := NormalizeArtistName(variants[0])
	for _, v := range variants[1:] {
		require.Equal(t, want, NormalizeArtistName(v), "variant %q", v)
	}
}
