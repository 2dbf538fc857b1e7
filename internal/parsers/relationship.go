// Package parsers reads RF2 relationship snapshots into typed records.
//
// The reader resolves its column layout from the header line, so files with
// extra columns (moduleId, characteristicTypeId, modifierId) or a different
// column order parse the same way.
package parsers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Required header columns, matched case-insensitively.
const (
	ColumnID                = "id"
	ColumnEffectiveTime     = "effectiveTime"
	ColumnActive            = "active"
	ColumnSourceID          = "sourceId"
	ColumnDestinationID     = "destinationId"
	ColumnRelationshipGroup = "relationshipGroup"
	ColumnTypeID            = "typeId"
)

// RequiredColumns lists every header column the reader needs.
var RequiredColumns = []string{
	ColumnID,
	ColumnEffectiveTime,
	ColumnActive,
	ColumnSourceID,
	ColumnDestinationID,
	ColumnRelationshipGroup,
	ColumnTypeID,
}

// effectiveTimeLayout is the RF2 date format.
const effectiveTimeLayout = "20060102"

var (
	// ErrMissingColumn is returned when the header lacks a required column.
	ErrMissingColumn = errors.New("missing required column")

	// ErrEmptySnapshot is returned when the source has no header line.
	ErrEmptySnapshot = errors.New("snapshot has no header line")

	// ErrMalformedRecord marks a single data line that could not be parsed.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrTooManyMalformed is returned when skipped lines exceed the error budget.
	ErrTooManyMalformed = errors.New("too many malformed records")
)

// MalformedRecordError describes a skipped data line.
type MalformedRecordError struct {
	Line   int
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("line %d: %s: %s", e.Line, ErrMalformedRecord, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedRecord.
func (e *MalformedRecordError) Unwrap() error {
	return ErrMalformedRecord
}

// Relationship is one versioned row of a relationship snapshot.
type Relationship struct {
	// ID is the relationship identifier. The same ID appears once per version.
	ID string

	// EffectiveTime is kept verbatim; reconciliation never looks at it.
	EffectiveTime string

	// Active is true for "1" and false for "0".
	Active bool

	// SourceID is the child concept code.
	SourceID string

	// DestinationID is the parent concept code.
	DestinationID string

	// RelationshipGroup is the role group number.
	RelationshipGroup int

	// TypeID is the relationship type concept (116680003 for "is a").
	TypeID string

	// Line is the 1-based line number in the source, header included.
	Line int
}

// EffectiveDate parses EffectiveTime as an RF2 YYYYMMDD date.
func (r Relationship) EffectiveDate() (time.Time, error) {
	t, err := time.Parse(effectiveTimeLayout, r.EffectiveTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing effective time %q: %w", r.EffectiveTime, err)
	}
	return t, nil
}

// Header maps required column names to their zero-based field index.
type Header struct {
	id, effectiveTime, active, sourceID, destinationID, group, typeID int

	// width is the minimum field count a data line needs.
	width int
}

// ParseHeader resolves the column layout from a tab-separated header line.
func ParseHeader(line string) (*Header, error) {
	cols := make(map[string]int)
	for i, name := range strings.Split(strings.TrimRight(line, "\r\n"), "\t") {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}

	lookup := func(name string) (int, error) {
		idx, ok := cols[strings.ToLower(name)]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
		return idx, nil
	}

	h := &Header{}
	targets := []struct {
		name string
		dst  *int
	}{
		{ColumnID, &h.id},
		{ColumnEffectiveTime, &h.effectiveTime},
		{ColumnActive, &h.active},
		{ColumnSourceID, &h.sourceID},
		{ColumnDestinationID, &h.destinationID},
		{ColumnRelationshipGroup, &h.group},
		{ColumnTypeID, &h.typeID},
	}
	for _, t := range targets {
		idx, err := lookup(t.name)
		if err != nil {
			return nil, err
		}
		*t.dst = idx
		if idx+1 > h.width {
			h.width = idx + 1
		}
	}

	return h, nil
}

// ParseLine converts one data line into a Relationship.
// lineNo is used for error reporting and stored on the record.
func (h *Header) ParseLine(line string, lineNo int) (Relationship, error) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	if len(fields) < h.width {
		return Relationship{}, &MalformedRecordError{
			Line:   lineNo,
			Reason: fmt.Sprintf("expected at least %d fields, got %d", h.width, len(fields)),
		}
	}

	var active bool
	switch fields[h.active] {
	case "1":
		active = true
	case "0":
		active = false
	default:
		return Relationship{}, &MalformedRecordError{
			Line:   lineNo,
			Reason: fmt.Sprintf("active must be \"0\" or \"1\", got %q", fields[h.active]),
		}
	}

	group, err := parseGroup(fields[h.group])
	if err != nil {
		return Relationship{}, &MalformedRecordError{Line: lineNo, Reason: err.Error()}
	}

	return Relationship{
		ID:                fields[h.id],
		EffectiveTime:     fields[h.effectiveTime],
		Active:            active,
		SourceID:          fields[h.sourceID],
		DestinationID:     fields[h.destinationID],
		RelationshipGroup: group,
		TypeID:            fields[h.typeID],
		Line:              lineNo,
	}, nil
}

func parseGroup(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("relationshipGroup %q is not a non-negative integer", s)
	}
	return n, nil
}
