// Package intel defines the accumulated-intelligence model shared by the
// extractor and the session engine: six named sets of canonical strings
// plus a derived confidence score.
//
// Sets are represented as sorted, deduplicated string slices so that JSON
// output is stable and set equality is plain slice equality. Confidence is
// never stored independently; it is always recomputed from the current
// union via Report.Confidence().
package intel

import "sort"

// Entity class identifiers used by recognizers and filters.
const (
	ClassUPI   = "upi_id"
	ClassBank  = "bank_account"
	ClassIFSC  = "ifsc_code"
	ClassPhone = "phone_number"
	ClassLink  = "phishing_link"
	ClassEmail = "email_address"
)

// Confidence weights per entity class. Email is a supplementary signal and
// carries no weight.
const (
	WeightUPI   = 0.30
	WeightBank  = 0.30
	WeightIFSC  = 0.20
	WeightPhone = 0.10
	WeightLink  = 0.10
)

// Report holds the classified entities found in a conversation. A zero
// Report is valid and means "nothing found yet".
type Report struct {
	UPIIDs         []string `json:"upiIds"`
	BankAccounts   []string `json:"bankAccounts"`
	IFSCCodes      []string `json:"ifscCodes"`
	PhoneNumbers   []string `json:"phoneNumbers"`
	PhishingLinks  []string `json:"phishingLinks"`
	EmailAddresses []string `json:"emailAddresses"`
}

// Normalize sorts and deduplicates every class set and replaces nil slices
// with empty ones so the report marshals as [] rather than null.
func (r *Report) Normalize() {
	r.UPIIDs = dedupe(r.UPIIDs)
	r.BankAccounts = dedupe(r.BankAccounts)
	r.IFSCCodes = dedupe(r.IFSCCodes)
	r.PhoneNumbers = dedupe(r.PhoneNumbers)
	r.PhishingLinks = dedupe(r.PhishingLinks)
	r.EmailAddresses = dedupe(r.EmailAddresses)
}

// Empty reports whether every class set is empty.
func (r Report) Empty() bool {
	return len(r.UPIIDs) == 0 && len(r.BankAccounts) == 0 && len(r.IFSCCodes) == 0 &&
		len(r.PhoneNumbers) == 0 && len(r.PhishingLinks) == 0 && len(r.EmailAddresses) == 0
}

// Total returns the number of entities across all classes.
func (r Report) Total() int {
	return len(r.UPIIDs) + len(r.BankAccounts) + len(r.IFSCCodes) +
		len(r.PhoneNumbers) + len(r.PhishingLinks) + len(r.EmailAddresses)
}

// Confidence computes the weighted presence score over the entity classes,
// clamped to [0,1]. Email addresses carry no weight, so they never raise
// the score on their own.
func (r Report) Confidence() float64 {
	score := 0.0
	if len(r.UPIIDs) > 0 {
		score += WeightUPI
	}
	if len(r.BankAccounts) > 0 {
		score += WeightBank
	}
	if len(r.IFSCCodes) > 0 {
		score += WeightIFSC
	}
	if len(r.PhoneNumbers) > 0 {
		score += WeightPhone
	}
	if len(r.PhishingLinks) > 0 {
		score += WeightLink
	}
	if score > 1 {
		score = 1
	}
	return score
}

// Merge returns the per-class set union of two reports. The inputs are not
// modified; the result is normalized. Merge(x, x) == Normalize(x), which is
// what makes full-history re-extraction idempotent.
func Merge(a, b Report) Report {
	out := Report{
		UPIIDs:         union(a.UPIIDs, b.UPIIDs),
		BankAccounts:   union(a.BankAccounts, b.BankAccounts),
		IFSCCodes:      union(a.IFSCCodes, b.IFSCCodes),
		PhoneNumbers:   union(a.PhoneNumbers, b.PhoneNumbers),
		PhishingLinks:  union(a.PhishingLinks, b.PhishingLinks),
		EmailAddresses: union(a.EmailAddresses, b.EmailAddresses),
	}
	return out
}

// Contains reports whether every entity in sub is also present in r,
// class by class. Used by tests to assert monotonic accumulation.
func (r Report) Contains(sub Report) bool {
	return containsAll(r.UPIIDs, sub.UPIIDs) &&
		containsAll(r.BankAccounts, sub.BankAccounts) &&
		containsAll(r.IFSCCodes, sub.IFSCCodes) &&
		containsAll(r.PhoneNumbers, sub.PhoneNumbers) &&
		containsAll(r.PhishingLinks, sub.PhishingLinks) &&
		containsAll(r.EmailAddresses, sub.EmailAddresses)
}

func containsAll(set, sub []string) bool {
	seen := make(map[string]bool, len(set))
	for _, v := range set {
		seen[v] = true
	}
	for _, v := range sub {
		if !seen[v] {
			return false
		}
	}
	return true
}

func union(a, b []string) []string {
	merged := make([]string, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	return dedupe(merged)
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
