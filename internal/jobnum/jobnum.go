// Package jobnum validates job numbers and extracts the test count embedded
// in issue summaries such as "ABCD1234.5 (9-3)".
package jobnum

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	jobPattern     = regexp.MustCompile(`^[A-Z]{4}\d{4}\.\d\s+\([^)]*\)`)
	parenContent   = regexp.MustCompile(`\(([^)]+)\)`)
	parenNumber    = regexp.MustCompile(`\((\d+)\)`)
	arrowNumber    = regexp.MustCompile(`-->[^(]*\((\d+)\)`)
	integerPattern = regexp.MustCompile(`\d+`)
)

// Arrow marks a revised test count, e.g. "ABCD1234.5 (4) --> (9)".
const Arrow = "-->"

var months = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
	"Jan", "Feb", "Mar", "Apr", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// ParseError reports a summary whose numbers could not be read.
type ParseError struct {
	Summary string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("extract test number from %q: %v", e.Summary, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Valid reports whether the summary starts with a well-formed job number:
// four uppercase letters, four digits, a dot, one digit, whitespace and a
// parenthesized suffix.
func Valid(summary string) bool {
	return jobPattern.MatchString(summary)
}

// ExtractTestNumber returns the test count in the summary, or 0 when there is
// none or it cannot be read.
func ExtractTestNumber(summary string) int {
	n, err := TestNumber(summary)
	if err != nil {
		return 0
	}
	return n
}

// TestNumber extracts the test count from the first parenthesized group:
//
//	(May 2024)      -> 0, a calendar reference rather than a count
//	(4) --> (9)     -> 9, the revised count after the arrow
//	(9-3), (41-11 = 30) -> 6, 30, recomputed from the first two integers
//	(3+3)           -> 6
//	(12 samples)    -> 12
//
// Failures are returned as *ParseError together with a zero count.
func TestNumber(summary string) (int, error) {
	groups := parenContent.FindAllStringSubmatch(summary, -1)
	if len(groups) == 0 {
		return 0, nil
	}
	content := groups[0][1]

	for _, month := range months {
		if strings.Contains(content, month) {
			return 0, nil
		}
	}

	if strings.Contains(summary, Arrow) {
		if m := arrowNumber.FindStringSubmatch(summary); m != nil {
			return atoi(summary, m[1])
		}
		if m := parenNumber.FindStringSubmatch(summary); m != nil {
			return atoi(summary, m[1])
		}
		return 0, nil
	}

	switch {
	case strings.Contains(content, "-"):
		before, _, _ := strings.Cut(content, "=")
		nums, err := integers(summary, before)
		if err != nil {
			return 0, err
		}
		if len(nums) >= 2 {
			diff := nums[0] - nums[1]
			if diff < 0 {
				diff = -diff
			}
			return diff, nil
		}
		if len(nums) == 1 {
			return nums[0], nil
		}
		return 0, nil

	case strings.Contains(content, "+"):
		nums, err := integers(summary, content)
		if err != nil {
			return 0, err
		}
		sum := 0
		for _, n := range nums {
			sum += n
		}
		return sum, nil

	default:
		if m := integerPattern.FindString(content); m != "" {
			return atoi(summary, m)
		}
		return 0, nil
	}
}

func integers(summary, s string) ([]int, error) {
	matches := integerPattern.FindAllString(s, -1)
	out := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := atoi(summary, m)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func atoi(summary, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ParseError{Summary: summary, Err: err}
	}
	return n, nil
}
