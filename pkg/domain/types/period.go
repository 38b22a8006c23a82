package types

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
)

// Period is a reporting quarter
type Period struct {
	Year    int `json:"year"`
	Quarter int `json:"quarter"`
}

var periodPattern = regexp.MustCompile(`^(\d{4})-Q([1-4])$`)

// Validate checks that the quarter is 1-4 and the year is plausible
func (p Period) Validate() error {
	if p.Year < 1900 || p.Year > 9999 {
		return goerr.New("period year out of range", goerr.V("year", p.Year))
	}
	if p.Quarter < 1 || p.Quarter > 4 {
		return goerr.New("period quarter must be between 1 and 4", goerr.V("quarter", p.Quarter))
	}
	return nil
}

// IsZero reports whether the period is unset
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Quarter == 0
}

// Next returns the following quarter, wrapping Q4 into Q1 of the next year
func (p Period) Next() Period {
	if p.Quarter >= 4 {
		return Period{Year: p.Year + 1, Quarter: 1}
	}
	return Period{Year: p.Year, Quarter: p.Quarter + 1}
}

// Before reports whether p is earlier than other
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Quarter < other.Quarter
}

// String formats the period as "2025-Q1"
func (p Period) String() string {
	return fmt.Sprintf("%04d-Q%d", p.Year, p.Quarter)
}

// ParsePeriod parses "2025-Q1"
func ParsePeriod(s string) (Period, error) {
	m := periodPattern.FindStringSubmatch(s)
	if m == nil {
		return Period{}, goerr.New("invalid period format, expected YYYY-QN", goerr.V("period", s))
	}
	year, _ := strconv.Atoi(m[1])
	quarter, _ := strconv.Atoi(m[2])
	p := Period{Year: year, Quarter: quarter}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}
