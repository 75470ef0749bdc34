package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCredential_email(t *testing.T) {
	kind, normalized, err := ClassifyCredential("  Alice@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, CredentialEmail, kind)
	assert.Equal(t, "alice@example.com", normalized)
}

func TestClassifyCredential_phone(t *testing.T) {
	kind, normalized, err := ClassifyCredential("+49 (151) 123-4567")
	require.NoError(t, err)
	assert.Equal(t, CredentialPhone, kind)
	assert.Equal(t, "+491511234567", normalized)
}

func TestClassifyCredential_empty(t *testing.T) {
	_, _, err := ClassifyCredential("   ")
	assert.Error(t, err)
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+15551234567", "+15551234567", false},
		{"555 123.4567", "5551234567", false},
		{"(030) 1234-567", "0301234567", false},
		{"12345", "", true},        // too short
		{"+1555abc4567", "", true}, // letters
		{"555+1234567", "", true},  // + not leading
	}
	for _, c := range cases {
		got, err := NormalizePhone(c.in)
		if c.wantErr {
			assert.Error(t, err, "input %q", c.in)
			continue
		}
		require.NoError(t, err, "input %q", c.in)
		assert.Equal(t, c.want, got)
	}
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "+4*******67", MaskPhone("+4915112367"))
	assert.Equal(t, "****", MaskPhone("123"))
}
