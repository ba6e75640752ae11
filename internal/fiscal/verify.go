package fiscal

import (
	"fmt"

	"github.com/diewo77/go-pos/internal/models"
)

// Violation reasons
const (
	ReasonBrokenLink     = "broken_link"     // previous digest differs from the prior sale's digest
	ReasonDigestMismatch = "digest_mismatch" // stored digest differs from the recomputed one
	ReasonHeadMismatch   = "head_mismatch"   // chain tip does not point at the last sale
	ReasonLengthMismatch = "length_mismatch" // chain tip counts a different number of sales
)

// Record is a stored sale as seen by the verifier.
type Record struct {
	SaleID         uint
	Fields         SaleFields
	Digest         string
	PreviousDigest string
}

// RecordOf builds the verifier view of a sale with its lines loaded.
func RecordOf(s *models.Sale) Record {
	return Record{
		SaleID:         s.ID,
		Fields:         FieldsOf(s),
		Digest:         s.Digest,
		PreviousDigest: s.PreviousDigest,
	}
}

// Violation describes one break in the chain.
type Violation struct {
	SaleID       uint   `json:"sale_id,omitempty"`
	TicketNumber string `json:"ticket_number,omitempty"`
	Reason       string `json:"reason"`
	Expected     string `json:"expected"`
	Stored       string `json:"stored"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s on sale %d (ticket %s): expected %q, stored %q",
		v.Reason, v.SaleID, v.TicketNumber, v.Expected, v.Stored)
}

// Verifier walks a chain record by record, in commit order, so callers can
// stream sales from storage in batches.
type Verifier struct {
	prev       string
	count      int64
	violations []Violation
}

// NewVerifier starts a walk at the beginning of the chain.
func NewVerifier() *Verifier { return &Verifier{} }

// Add checks r against the previously added record.
func (v *Verifier) Add(r Record) {
	if r.PreviousDigest != v.prev {
		v.violations = append(v.violations, Violation{
			SaleID:       r.SaleID,
			TicketNumber: r.Fields.TicketNumber,
			Reason:       ReasonBrokenLink,
			Expected:     v.prev,
			Stored:       r.PreviousDigest,
		})
	}
	if want := ComputeDigest(r.Fields, v.prev); want != r.Digest {
		v.violations = append(v.violations, Violation{
			SaleID:       r.SaleID,
			TicketNumber: r.Fields.TicketNumber,
			Reason:       ReasonDigestMismatch,
			Expected:     want,
			Stored:       r.Digest,
		})
	}
	// continue from the recorded digest so one tampered sale is reported once
	v.prev = r.Digest
	v.count++
}

// CheckHead compares the walked chain with the stored tip.
func (v *Verifier) CheckHead(lastDigest string, length int64) {
	if lastDigest != v.prev {
		v.violations = append(v.violations, Violation{
			Reason:   ReasonHeadMismatch,
			Expected: v.prev,
			Stored:   lastDigest,
		})
	}
	if length != v.count {
		v.violations = append(v.violations, Violation{
			Reason:   ReasonLengthMismatch,
			Expected: fmt.Sprint(v.count),
			Stored:   fmt.Sprint(length),
		})
	}
}

// Last returns the digest of the last record added ("" for an empty chain).
func (v *Verifier) Last() string { return v.prev }

// Count returns the number of records added.
func (v *Verifier) Count() int64 { return v.count }

// Violations returns every break found so far.
func (v *Verifier) Violations() []Violation { return v.violations }

// Verify checks a complete chain held in memory.
func Verify(records []Record) []Violation {
	v := NewVerifier()
	for _, r := range records {
		v.Add(r)
	}
	return v.Violations()
}
