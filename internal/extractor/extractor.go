// Package extractor turns free-form scammer text into classified
// financial/contact intelligence. Each entity class is matched by an
// independent, bounded-time recognizer; cross-class disambiguation and
// phone canonicalization run afterwards, so no token is ever reported
// under two classes.
package extractor

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ankitpatel990/neuvox/internal/intel"
	neuvoxotel "github.com/ankitpatel990/neuvox/internal/otel"
)

var tracer = neuvoxotel.Tracer("github.com/ankitpatel990/neuvox/internal/extractor")

// DefaultMaxScanBytes caps the input length before pattern matching.
// Longer input is truncated so scan time stays near-linear regardless of
// what the other side sends.
const DefaultMaxScanBytes = 10000

// Extractor matches text against the compiled recognizer set.
type Extractor struct {
	recognizers []Recognizer
	maxScan     int
}

// Option configures an Extractor via the functional options pattern.
type Option func(*config)

type config struct {
	patternFile       string
	customRecognizers []RecognizerConfig
	disabledClasses   []string
	maxScan           int
}

// WithPatternFile layers an operator recognizers.yaml over the embedded
// defaults. A missing file is silently skipped.
func WithPatternFile(path string) Option {
	return func(c *config) { c.patternFile = path }
}

// WithCustomRecognizers adds per-deployment recognizer definitions on top
// of defaults and the operator file.
func WithCustomRecognizers(recognizers []RecognizerConfig) Option {
	return func(c *config) { c.customRecognizers = recognizers }
}

// WithDisabledClasses excludes entity classes from extraction entirely.
func WithDisabledClasses(classes []string) Option {
	return func(c *config) { c.disabledClasses = classes }
}

// WithMaxScanBytes overrides the input truncation cap.
func WithMaxScanBytes(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxScan = n
		}
	}
}

// New creates an Extractor from the embedded defaults plus any options.
func New(opts ...Option) (*Extractor, error) {
	cfg := config{maxScan: DefaultMaxScanBytes}
	for _, o := range opts {
		o(&cfg)
	}

	defaults, err := DefaultRecognizers()
	if err != nil {
		return nil, fmt.Errorf("loading default recognizers: %w", err)
	}

	var operator []RecognizerConfig
	if cfg.patternFile != "" {
		rf, err := LoadRecognizerFile(cfg.patternFile)
		if err != nil {
			return nil, fmt.Errorf("loading operator pattern file: %w", err)
		}
		if rf != nil {
			operator = rf.Recognizers
		}
	}

	merged := MergeRecognizers(defaults, operator, cfg.customRecognizers)
	merged = FilterByClasses(merged, cfg.disabledClasses)

	compiled, err := CompileRecognizers(merged)
	if err != nil {
		return nil, fmt.Errorf("compiling recognizers: %w", err)
	}

	return &Extractor{recognizers: compiled, maxScan: cfg.maxScan}, nil
}

// MustNew is like New but panics on error. The embedded defaults are
// expected to always compile, so zero-config startup uses this.
func MustNew(opts ...Option) *Extractor {
	e, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("extractor.New: %v", err))
	}
	return e
}

// Extract scans text and returns the classified entities. It never fails:
// empty or unmatchable input yields an empty (but normalized) report.
// Calling Extract twice on the same text yields the identical report.
func (e *Extractor) Extract(ctx context.Context, text string) intel.Report {
	_, span := tracer.Start(ctx, "extractor.extract")
	defer span.End()

	if len(text) > e.maxScan {
		text = text[:e.maxScan]
		span.SetAttributes(attribute.Bool("extract.truncated", true))
	}

	byClass := make(map[string][]string)
	for _, rec := range e.recognizers {
		for _, m := range rec.Pattern.FindAllStringIndex(text, -1) {
			value := text[m[0]:m[1]]
			if rec.Class == intel.ClassPhone && embeddedInDigitRun(text, m[0]) {
				continue
			}
			byClass[rec.Class] = append(byClass[rec.Class], value)
		}
	}

	upis, emails := disambiguateUPIEmail(byClass[intel.ClassUPI], byClass[intel.ClassEmail])
	phones, phoneCores := canonicalizePhones(byClass[intel.ClassPhone])
	banks := excludePhoneRuns(byClass[intel.ClassBank], phoneCores)

	report := intel.Report{
		UPIIDs:         upis,
		BankAccounts:   banks,
		IFSCCodes:      byClass[intel.ClassIFSC],
		PhoneNumbers:   phones,
		PhishingLinks:  byClass[intel.ClassLink],
		EmailAddresses: emails,
	}
	report.Normalize()

	span.SetAttributes(
		attribute.Int("extract.entity_count", report.Total()),
		attribute.Float64("extract.confidence", report.Confidence()),
	)
	return report
}

// embeddedInDigitRun reports whether the match starting at pos is preceded
// by another digit, i.e. the recognizer caught the tail of a longer digit
// run (an account number), not a standalone phone number.
func embeddedInDigitRun(text string, pos int) bool {
	return pos > 0 && text[pos-1] >= '0' && text[pos-1] <= '9'
}

// disambiguateUPIEmail resolves tokens matched by both recognizers. A UPI
// match that is just the truncated head of a full email address (the
// provider whitelist matched a domain prefix, "user@fakebank" inside
// "user@fakebank.com") is discarded; any email equal to a surviving UPI
// handle is reported as UPI only.
func disambiguateUPIEmail(upis, emails []string) (keptUPIs, keptEmails []string) {
	for _, u := range upis {
		truncated := false
		for _, e := range emails {
			if strings.HasPrefix(e, u+".") {
				truncated = true
				break
			}
		}
		if !truncated {
			keptUPIs = append(keptUPIs, u)
		}
	}
	upiSet := make(map[string]bool, len(keptUPIs))
	for _, u := range keptUPIs {
		upiSet[u] = true
	}
	for _, e := range emails {
		if !upiSet[e] {
			keptEmails = append(keptEmails, e)
		}
	}
	return keptUPIs, keptEmails
}

// canonicalizePhones expands every recognized phone number into all the
// representations downstream consumers may probe with substring
// containment: hyphenated international, compact international, the bare
// ten-digit run, and the verbatim original when it differs from all three.
// It also returns the ten-digit cores used for bank-account exclusion.
func canonicalizePhones(matches []string) (phones, cores []string) {
	for _, raw := range matches {
		digits := stripNonDigits(raw)
		if len(digits) < 10 {
			continue
		}
		core := digits[len(digits)-10:]
		cores = append(cores, core)

		hyphenated := "+91-" + core
		compact := "+91" + core
		phones = append(phones, hyphenated, compact, core)
		if raw != hyphenated && raw != compact && raw != core {
			phones = append(phones, raw)
		}
	}
	return phones, cores
}

// excludePhoneRuns removes bank-account candidates that are really a phone
// number: the bare core, the 91-prefixed form, or a leading-zero trunk
// form. A digit run recognized as a phone must never also be reported as a
// bank account.
func excludePhoneRuns(candidates, cores []string) []string {
	if len(cores) == 0 {
		return candidates
	}
	excluded := make(map[string]bool, len(cores)*3)
	for _, core := range cores {
		excluded[core] = true
		excluded["91"+core] = true
		excluded["0"+core] = true
	}
	var kept []string
	for _, c := range candidates {
		if !excluded[c] {
			kept = append(kept, c)
		}
	}
	return kept
}

// stripNonDigits removes every non-digit byte from s.
func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
