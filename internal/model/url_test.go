package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare domain", "sage.com", "https://sage.com"},
		{"trailing slash", "https://sage.com/", "https://sage.com"},
		{"uppercase host", "https://SAGE.com/Pricing", "https://sage.com/Pricing"},
		{"whitespace", "  https://sage.com  ", "https://sage.com"},
		{"fragment stripped", "https://sage.com/#top", "https://sage.com"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "sage.com", DomainOf("https://www.sage.com/pricing"))
	assert.Equal(t, "sage.com", DomainOf("sage.com"))
	assert.Equal(t, "", DomainOf(""))
}

func TestCompanyNameFromURL(t *testing.T) {
	assert.Equal(t, "Sage", CompanyNameFromURL("https://www.sage.com"))
	assert.Equal(t, "Quickbooks", CompanyNameFromURL("quickbooks.intuit.com"))
	assert.Equal(t, "", CompanyNameFromURL(""))
}
