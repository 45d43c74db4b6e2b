package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_CodeVariant(t *testing.T) {
	p, err := Parse("https://app.example.com/auth/callback?code=abc123")

	require.NoError(t, err)
	assert.Equal(t, KindCode, p.Kind)
	assert.Equal(t, "abc123", p.Code)
	assert.Empty(t, p.AccessToken)
}

func TestParse_TokenPairVariant(t *testing.T) {
	p, err := Parse("https://app.example.com/auth/callback#access_token=xyz&refresh_token=uvw")

	require.NoError(t, err)
	assert.Equal(t, KindTokenPair, p.Kind)
	assert.Equal(t, "xyz", p.AccessToken)
	assert.Equal(t, "uvw", p.RefreshToken)
}

func TestParse_CodeWinsOverStaleFragment(t *testing.T) {
	p, err := Parse("https://app.example.com/auth/callback?code=abc123#access_token=xyz&refresh_token=uvw")

	require.NoError(t, err)
	assert.Equal(t, KindCode, p.Kind)
	assert.Equal(t, "abc123", p.Code)
}

func TestParse_IncompleteTokenPair(t *testing.T) {
	_, err := Parse("https://app.example.com/auth/callback#access_token=xyz")

	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestParse_NoCredentials(t *testing.T) {
	_, err := Parse("https://app.example.com/auth/callback")

	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestParse_Hints(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		wantType       string
		wantRedirectTo string
	}{
		{
			name:     "type in query",
			url:      "https://app.example.com/auth/callback?code=abc&type=recovery",
			wantType: "recovery",
		},
		{
			name:     "type in fragment",
			url:      "https://app.example.com/auth/callback#access_token=a&refresh_token=r&type=recovery",
			wantType: "recovery",
		},
		{
			name:           "redirect_to in query",
			url:            "https://app.example.com/auth/callback?code=abc&redirect_to=https%3A%2F%2Fapp.example.com%2Freset-password",
			wantRedirectTo: "https://app.example.com/reset-password",
		},
		{
			name:     "query type wins over fragment type",
			url:      "https://app.example.com/auth/callback?code=abc&type=recovery#type=magiclink",
			wantType: "recovery",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, p.TypeHint)
			assert.Equal(t, tt.wantRedirectTo, p.RedirectToHint)
		})
	}
}

func TestParse_UnknownParamsIgnored(t *testing.T) {
	p, err := Parse("https://app.example.com/auth/callback?code=abc&utm_source=email&foo=bar")

	require.NoError(t, err)
	assert.Equal(t, "abc", p.Code)
}
