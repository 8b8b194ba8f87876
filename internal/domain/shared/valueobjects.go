// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// SubjectKey is the durable participant identifier: a normalized mobile number.
// It is the join key that survives across both take backends, whether or not
// the participant ever created a profile.
type SubjectKey string

// Phone numbers are stored in E.164-like form: optional '+', 7-15 digits.
var subjectKeyRegex = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// IsValid checks if the subject key looks like a normalized phone number.
func (s SubjectKey) IsValid() bool {
	return subjectKeyRegex.MatchString(string(s))
}

// String returns the string representation.
func (s SubjectKey) String() string {
	return string(s)
}

// IsEmpty checks if the key is empty.
func (s SubjectKey) IsEmpty() bool {
	return s == ""
}

// NewSubjectKey creates a SubjectKey with validation, stripping spaces and dashes.
func NewSubjectKey(raw string) (SubjectKey, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	key := SubjectKey(cleaned)
	if !key.IsValid() {
		return "", ErrInvalidSubject
	}
	return key, nil
}

// ProfileID is a unique profile identifier (UUID format).
type ProfileID string

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid checks if the profile ID is a valid UUID.
func (p ProfileID) IsValid() bool {
	return uuidRegex.MatchString(string(p))
}

// String returns the string representation.
func (p ProfileID) String() string {
	return string(p)
}

// IsEmpty checks if the ID is empty.
func (p ProfileID) IsEmpty() bool {
	return p == ""
}

// NewProfileID creates a ProfileID with validation.
func NewProfileID(id string) (ProfileID, error) {
	pid := ProfileID(strings.ToLower(strings.TrimSpace(id)))
	if !pid.IsValid() {
		return "", NewDomainError("shared", "NewProfileID", ErrInvalidID, "invalid profile ID format")
	}
	return pid, nil
}

// PropID is the text identifier of a proposition.
type PropID string

// Prop ID format: category-name-number (e.g., "nba-lakers-total-01").
var propIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_]*(-[a-z0-9_]+)*$`)

// IsValid checks if the prop ID format is valid.
func (p PropID) IsValid() bool {
	s := string(p)
	return len(s) >= 2 && len(s) <= 80 && propIDRegex.MatchString(s)
}

// String returns the string representation.
func (p PropID) String() string {
	return string(p)
}

// NewPropID creates a PropID with validation.
func NewPropID(id string) (PropID, error) {
	pid := PropID(strings.ToLower(strings.TrimSpace(id)))
	if !pid.IsValid() {
		return "", ErrInvalidPropID
	}
	return pid, nil
}

// PackID is a unique pack identifier.
type PackID string

// String returns the string representation.
func (p PackID) String() string {
	return string(p)
}

// IsEmpty checks if the ID is empty.
func (p PackID) IsEmpty() bool {
	return p == ""
}

// ContestID is a unique contest identifier.
type ContestID string

// String returns the string representation.
func (c ContestID) String() string {
	return string(c)
}

// IsEmpty checks if the ID is empty.
func (c ContestID) IsEmpty() bool {
	return c == ""
}

// TeamSlug is a human-facing team name or slug. Resolution to an internal
// team id is case-insensitive and happens in the persistence layer.
type TeamSlug string

// String returns the string representation.
func (t TeamSlug) String() string {
	return string(t)
}

// Normalize returns a lowercased, trimmed version for matching.
func (t TeamSlug) Normalize() TeamSlug {
	return TeamSlug(strings.ToLower(strings.TrimSpace(string(t))))
}

// ═══════════════════════════════════════════════════════════════════════════
// Points Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Points represents a signed point amount. Negative values are legal: an
// admin override can dock points after a dispute.
type Points int

// Int returns the underlying int value.
func (p Points) Int() int {
	return int(p)
}

// Add returns the sum of two point amounts.
func (p Points) Add(other Points) Points {
	return p + other
}

// String returns the string representation.
func (p Points) String() string {
	return fmt.Sprintf("%d", int(p))
}

// ═══════════════════════════════════════════════════════════════════════════
// TimeWindow Value Object
// ═══════════════════════════════════════════════════════════════════════════

// TimeWindow represents a half-open time interval [From, To).
// The inclusive start / exclusive end convention keeps adjacent windows
// (e.g. consecutive game weeks) from double-counting boundary takes.
type TimeWindow struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether the window is unset (no time filtering).
func (w TimeWindow) IsZero() bool {
	return w.From.IsZero() && w.To.IsZero()
}

// IsValid checks that From precedes To when both are set.
func (w TimeWindow) IsValid() bool {
	if w.IsZero() {
		return true
	}
	return !w.From.IsZero() && !w.To.IsZero() && w.From.Before(w.To)
}

// Contains checks if a time falls inside the half-open interval.
func (w TimeWindow) Contains(t time.Time) bool {
	if w.IsZero() {
		return true
	}
	return !t.Before(w.From) && t.Before(w.To)
}

// Duration returns the length of the window.
func (w TimeWindow) Duration() time.Duration {
	return w.To.Sub(w.From)
}

// NewTimeWindow creates a TimeWindow with validation.
func NewTimeWindow(from, to time.Time) (TimeWindow, error) {
	w := TimeWindow{From: from, To: to}
	if !w.IsValid() {
		return TimeWindow{}, ErrInvalidWindow
	}
	return w, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters for leaderboard reads.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a Pagination with defaults applied.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}
