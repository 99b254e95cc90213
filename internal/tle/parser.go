// Package tle parses NORAD two-line element sets from their fixed-column
// text encoding, including the implied-decimal fields and the mod-10 line
// checksums.
package tle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

const lineLength = 69

// ParseLines parses one element set from its two lines.
//
// The catalog number is read from columns 3-7 of line 2 and falls back to
// line 1's columns 3-7 when line 2's field is non-numeric.
func ParseLines(line1, line2 string) (*Entry, error) {
	line1 = strings.TrimRight(line1, "\r\n ")
	line2 = strings.TrimRight(line2, "\r\n ")

	if len(line1) < lineLength {
		return nil, &ParseError{Line: 1, Field: "length", Err: fmt.Errorf("got %d columns, want %d", len(line1), lineLength)}
	}
	if len(line2) < lineLength {
		return nil, &ParseError{Line: 2, Field: "length", Err: fmt.Errorf("got %d columns, want %d", len(line2), lineLength)}
	}
	if line1[0] != '1' {
		return nil, &ParseError{Line: 1, Field: "line number", Err: errors.New("must start with '1'")}
	}
	if line2[0] != '2' {
		return nil, &ParseError{Line: 2, Field: "line number", Err: errors.New("must start with '2'")}
	}
	if err := verifyChecksum(1, line1); err != nil {
		return nil, err
	}
	if err := verifyChecksum(2, line2); err != nil {
		return nil, err
	}

	e := &Entry{Line1: line1, Line2: line2}

	catnum, err := strconv.Atoi(strings.TrimSpace(line2[2:7]))
	if err != nil {
		catnum, err = strconv.Atoi(strings.TrimSpace(line1[2:7]))
		if err != nil {
			return nil, &ParseError{Line: 2, Field: "catalog number", Err: err}
		}
	}
	e.CatalogNumber = catnum
	e.IntlDesig = strings.TrimSpace(line1[9:17])

	if e.EpochYear, err = strconv.Atoi(strings.TrimSpace(line1[18:20])); err != nil {
		return nil, &ParseError{Line: 1, Field: "epoch year", Err: err}
	}
	if e.EpochDays, err = strconv.ParseFloat(strings.TrimSpace(line1[20:32]), 64); err != nil {
		return nil, &ParseError{Line: 1, Field: "epoch day", Err: err}
	}
	e.Epoch = epochTime(e.EpochYear, e.EpochDays)

	if e.MeanMotionDot, err = parseSignedField(line1[33:43]); err != nil {
		return nil, &ParseError{Line: 1, Field: "mean motion dot", Err: err}
	}
	if e.MeanMotionDDot, err = parseImpliedExp(line1[44:52]); err != nil {
		return nil, &ParseError{Line: 1, Field: "mean motion ddot", Err: err}
	}
	if e.BStar, err = parseImpliedExp(line1[53:61]); err != nil {
		return nil, &ParseError{Line: 1, Field: "bstar", Err: err}
	}

	if e.InclinationDeg, err = parseSignedField(line2[8:16]); err != nil {
		return nil, &ParseError{Line: 2, Field: "inclination", Err: err}
	}
	if e.RAANDeg, err = parseSignedField(line2[17:25]); err != nil {
		return nil, &ParseError{Line: 2, Field: "raan", Err: err}
	}
	if e.Eccentricity, err = strconv.ParseFloat("."+strings.TrimSpace(line2[26:33]), 64); err != nil {
		return nil, &ParseError{Line: 2, Field: "eccentricity", Err: err}
	}
	if e.ArgPerigeeDeg, err = parseSignedField(line2[34:42]); err != nil {
		return nil, &ParseError{Line: 2, Field: "argument of perigee", Err: err}
	}
	if e.MeanAnomalyDeg, err = parseSignedField(line2[43:51]); err != nil {
		return nil, &ParseError{Line: 2, Field: "mean anomaly", Err: err}
	}
	if e.MeanMotion, err = parseSignedField(line2[52:63]); err != nil {
		return nil, &ParseError{Line: 2, Field: "mean motion", Err: err}
	}
	if e.MeanMotion <= 0 {
		return nil, &ParseError{Line: 2, Field: "mean motion", Err: errors.New("must be positive")}
	}

	return e, nil
}

// Parse reads a TLE catalog stream in either 2-line or 3-line (named) form.
// Malformed entries are skipped with a warning log; only a read failure is an
// error.
func Parse(r io.Reader, logger *slog.Logger) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []Entry
	for i := 0; i < len(lines); {
		name := ""
		if !strings.HasPrefix(lines[i], "1 ") {
			name = strings.TrimSpace(lines[i])
			i++
		}
		if i+1 >= len(lines) {
			break
		}
		entry, err := ParseLines(lines[i], lines[i+1])
		if err != nil {
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name, "error", err)
			i++
			continue
		}
		entry.Name = name
		entries = append(entries, *entry)
		i += 2
	}

	return entries, nil
}

// verifyChecksum validates the mod-10 checksum in column 69.
func verifyChecksum(lineNo int, line string) error {
	sum := 0
	for _, c := range line[:lineLength-1] {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	want := int(line[lineLength-1] - '0')
	if want < 0 || want > 9 {
		return &ParseError{Line: lineNo, Field: "checksum", Err: errors.New("checksum column is not a digit")}
	}
	if sum%10 != want {
		return &ParseError{Line: lineNo, Field: "checksum", Err: fmt.Errorf("computed %d, line says %d", sum%10, want)}
	}
	return nil
}

// parseSignedField parses a plain decimal field that may carry internal
// padding spaces.
func parseSignedField(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// parseImpliedExp parses the TLE's implied-decimal exponent notation,
// e.g. " 12345-3" meaning 0.12345e-3 and "-11606-4" meaning -0.11606e-4.
func parseImpliedExp(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty field")
	}
	sign := 1.0
	switch s[0] {
	case '-':
		sign = -1.0
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("field %q too short", s)
	}
	mantissa := s[:len(s)-2]
	exponent := s[len(s)-2:]
	// Exponent sign may be '-', '+', or a leading space meaning positive.
	exponent = strings.TrimLeft(exponent, " ")
	m, err := strconv.ParseFloat("."+strings.TrimSpace(mantissa), 64)
	if err != nil {
		return 0, fmt.Errorf("mantissa %q: %w", mantissa, err)
	}
	x, err := strconv.Atoi(exponent)
	if err != nil {
		return 0, fmt.Errorf("exponent %q: %w", exponent, err)
	}
	v := sign * m
	for ; x > 0; x-- {
		v *= 10.0
	}
	for ; x < 0; x++ {
		v /= 10.0
	}
	return v, nil
}

// epochTime converts the two-digit year and fractional day of year to a
// time.Time. Years 57-99 map to the 1900s, 00-56 to the 2000s.
func epochTime(year int, days float64) time.Time {
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	// days is 1-based: day 1.0 is Jan 1 00:00.
	return t.Add(time.Duration((days - 1) * float64(24*time.Hour)))
}
