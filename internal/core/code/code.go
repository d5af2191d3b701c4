// Package code formats and parses human-readable document codes.
//
// A code has the fixed shape ABBR/MM/YYYY/NNNN, for example PDK/04/2025/0001.
// The sequence restarts at 0001 for every (entity type, year, month) bucket.
package code

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"stockkeeper/internal/core/apperror"
)

// MaxSequence is the largest sequence a four digit code can carry.
const MaxSequence = 9999

// EntityType identifies a kind of code-bearing document.
type EntityType string

const (
	Categories       EntityType = "categories"
	Products         EntityType = "products"
	PurchaseOrders   EntityType = "purchase_orders"
	Invoices         EntityType = "invoices"
	Payments         EntityType = "payments"
	ProductionLogs   EntityType = "production_logs"
	StockOpnames     EntityType = "stock_opnames"
	ManagementStocks EntityType = "management_stocks"
	DeliveryNotes    EntityType = "delivery_notes"
)

var abbreviations = map[EntityType]string{
	Categories:       "KTG",
	Products:         "PDK",
	PurchaseOrders:   "DPO",
	Invoices:         "INV",
	Payments:         "PAY",
	ProductionLogs:   "LPR",
	StockOpnames:     "SOP",
	ManagementStocks: "SMN",
	DeliveryNotes:    "SJN",
}

// EntityTypes returns every supported entity type in a stable order.
func EntityTypes() []EntityType {
	return []EntityType{
		Categories, Products, PurchaseOrders, Invoices, Payments,
		ProductionLogs, StockOpnames, ManagementStocks, DeliveryNotes,
	}
}

// ParseEntityType accepts "stock_opnames", "stock-opnames" or "StockOpnames"-like
// spellings and returns the canonical entity type.
func ParseEntityType(s string) (EntityType, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	t := EntityType(norm)
	if _, ok := abbreviations[t]; ok {
		return t, nil
	}
	// CamelCase spelling
	for et := range abbreviations {
		if strings.ReplaceAll(string(et), "_", "") == norm {
			return et, nil
		}
	}
	return "", apperror.NewUnsupportedEntityType(s)
}

// Abbreviation returns the code prefix for the entity type.
func (t EntityType) Abbreviation() (string, error) {
	abbr, ok := abbreviations[t]
	if !ok {
		return "", apperror.NewUnsupportedEntityType(string(t))
	}
	return abbr, nil
}

// EntityTypeFor maps an abbreviation back to its entity type.
func EntityTypeFor(abbr string) (EntityType, bool) {
	for t, a := range abbreviations {
		if a == abbr {
			return t, true
		}
	}
	return "", false
}

// Bucket is the (year, month) period a sequence counter is scoped to.
type Bucket struct {
	Year  int
	Month int
}

// BucketOf returns the bucket containing t, in t's location.
func BucketOf(t time.Time) Bucket {
	return Bucket{Year: t.Year(), Month: int(t.Month())}
}

// ParseBucket parses "YYYY-MM".
func ParseBucket(s string) (Bucket, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Bucket{}, apperror.NewValidation("bucket must be formatted as YYYY-MM").
			WithDetail("value", s)
	}
	return BucketOf(t), nil
}

func (b Bucket) String() string {
	return fmt.Sprintf("%04d-%02d", b.Year, b.Month)
}

// Parts are the components of a code.
type Parts struct {
	Abbreviation string `json:"abbreviation"`
	Month        int    `json:"month"`
	Year         int    `json:"year"`
	Sequence     int    `json:"sequence"`
}

// Bucket returns the period the code was allocated in.
func (p Parts) Bucket() Bucket {
	return Bucket{Year: p.Year, Month: p.Month}
}

var (
	abbrPattern = regexp.MustCompile(`^[A-Z]{2,3}$`)
	codePattern = regexp.MustCompile(`^([A-Z]{2,3})/(\d{2})/(\d{4})/(\d{4})$`)
)

// Format renders a code. It is deterministic and performs no I/O.
func Format(abbr string, month, year, seq int) (string, error) {
	switch {
	case !abbrPattern.MatchString(abbr):
		return "", apperror.NewValidation("abbreviation must be 2-3 uppercase letters").
			WithDetail("abbreviation", abbr)
	case month < 1 || month > 12:
		return "", apperror.NewValidation("month out of range").WithDetail("month", month)
	case year < 0 || year > 9999:
		return "", apperror.NewValidation("year out of range").WithDetail("year", year)
	case seq < 1 || seq > MaxSequence:
		return "", apperror.NewValidation("sequence out of range").WithDetail("sequence", seq)
	}
	return fmt.Sprintf("%s/%02d/%04d/%04d", abbr, month, year, seq), nil
}

// Prefix returns the code prefix shared by all codes of a bucket,
// e.g. "PDK/04/2025/".
func Prefix(abbr string, b Bucket) string {
	return fmt.Sprintf("%s/%02d/%04d/", abbr, b.Month, b.Year)
}

// Parse splits a code into its components.
func Parse(s string) (Parts, error) {
	m := codePattern.FindStringSubmatch(s)
	if m == nil {
		return Parts{}, apperror.NewMalformedCode(s, "expected ABBR/MM/YYYY/NNNN")
	}

	// The pattern guarantees digits, Atoi cannot fail here.
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	seq, _ := strconv.Atoi(m[4])

	if month < 1 || month > 12 {
		return Parts{}, apperror.NewMalformedCode(s, "month must be 01-12")
	}
	if seq < 1 {
		return Parts{}, apperror.NewMalformedCode(s, "sequence starts at 0001")
	}

	return Parts{Abbreviation: m[1], Month: month, Year: year, Sequence: seq}, nil
}

// ForEntity formats the code of entity type t for the given bucket and sequence.
func ForEntity(t EntityType, b Bucket, seq int) (string, error) {
	abbr, err := t.Abbreviation()
	if err != nil {
		return "", err
	}
	return Format(abbr, b.Month, b.Year, seq)
}
