package intel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMerge(t *testing.T) {
	a := Report{
		UPIIDs:       []string{"ramesh@paytm"},
		BankAccounts: []string{"12345678901"},
	}
	b := Report{
		UPIIDs:       []string{"ramesh@paytm", "suresh@ybl"},
		PhoneNumbers: []string{"9876543210"},
	}

	out := Merge(a, b)
	assert.Equal(t, []string{"ramesh@paytm", "suresh@ybl"}, out.UPIIDs)
	assert.Equal(t, []string{"12345678901"}, out.BankAccounts)
	assert.Equal(t, []string{"9876543210"}, out.PhoneNumbers)
	assert.Empty(t, out.IFSCCodes)

	// Inputs untouched
	assert.Equal(t, []string{"ramesh@paytm"}, a.UPIIDs)
}

func TestMergeIdempotent(t *testing.T) {
	r := Report{
		UPIIDs:        []string{"b@upi", "a@upi", "a@upi"},
		PhishingLinks: []string{"http://evil.in/x"},
	}
	once := Merge(r, Report{})
	twice := Merge(once, r)
	assert.Equal(t, once, twice)
}

func TestMergeMonotonic(t *testing.T) {
	base := Report{UPIIDs: []string{"a@upi"}, IFSCCodes: []string{"SBIN0001234"}}
	grown := Merge(base, Report{BankAccounts: []string{"999888777666"}})
	assert.True(t, grown.Contains(base))
	assert.False(t, base.Contains(grown))
}

func TestNormalize(t *testing.T) {
	r := Report{UPIIDs: []string{"b@upi", "a@upi", "b@upi", ""}}
	r.Normalize()
	assert.Equal(t, []string{"a@upi", "b@upi"}, r.UPIIDs)
	// nil slices become empty so JSON shows [] not null
	assert.NotNil(t, r.BankAccounts)
	assert.Empty(t, r.BankAccounts)
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name   string
		report Report
		want   float64
	}{
		{"empty", Report{}, 0},
		{"upi only", Report{UPIIDs: []string{"a@upi"}}, 0.30},
		{"bank only", Report{BankAccounts: []string{"12345678901"}}, 0.30},
		{"ifsc only", Report{IFSCCodes: []string{"SBIN0001234"}}, 0.20},
		{"phone only", Report{PhoneNumbers: []string{"9876543210"}}, 0.10},
		{"link only", Report{PhishingLinks: []string{"http://evil.in"}}, 0.10},
		{"email carries no weight", Report{EmailAddresses: []string{"a@b.com"}}, 0},
		{
			"upi plus bank plus ifsc plus phone",
			Report{
				UPIIDs:       []string{"a@upi"},
				BankAccounts: []string{"12345678901"},
				IFSCCodes:    []string{"SBIN0001234"},
				PhoneNumbers: []string{"9876543210"},
			},
			0.90,
		},
		{
			"all classes clamp to one",
			Report{
				UPIIDs:         []string{"a@upi"},
				BankAccounts:   []string{"12345678901"},
				IFSCCodes:      []string{"SBIN0001234"},
				PhoneNumbers:   []string{"9876543210"},
				PhishingLinks:  []string{"http://evil.in"},
				EmailAddresses: []string{"a@b.com"},
			},
			1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.report.Confidence(), 1e-9)
		})
	}
}

func TestConfidenceCountInsensitive(t *testing.T) {
	one := Report{UPIIDs: []string{"a@upi"}}
	many := Report{UPIIDs: []string{"a@upi", "b@upi", "c@upi"}}
	assert.Equal(t, one.Confidence(), many.Confidence())
}

func TestEmptyAndTotal(t *testing.T) {
	assert.True(t, Report{}.Empty())
	r := Report{UPIIDs: []string{"a@upi"}, PhoneNumbers: []string{"9876543210"}}
	assert.False(t, r.Empty())
	assert.Equal(t, 2, r.Total())
}
