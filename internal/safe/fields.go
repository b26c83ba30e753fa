package safe

import (
	"strconv"
	"strings"
	"time"
)

// fields converts annotated text values and remembers the first failure, so
// a document can be decoded in one pass and checked once at the end.
type fields struct {
	path string
	err  error
}

func (f *fields) fail(element string, err error) {
	if f.err == nil {
		f.err = malformed(f.path, element, err)
	}
}

func (f *fields) text(element, s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		f.fail(element, nil)
	}
	return s
}

func (f *fields) float(element, s string) float64 {
	s = f.text(element, s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		f.fail(element, err)
	}
	return v
}

func (f *fields) integer(element, s string) int {
	s = f.text(element, s)
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		f.fail(element, err)
	}
	return v
}

func (f *fields) offset(element, s string) int64 {
	s = f.text(element, s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f.fail(element, err)
	}
	return v
}

func (f *fields) timestamp(element, s string) time.Time {
	s = f.text(element, s)
	if s == "" {
		return time.Time{}
	}
	t, err := ParseTime(s)
	if err != nil {
		f.fail(element, err)
	}
	return t
}

func (f *fields) floats(element, s string) []float64 {
	parts := strings.Fields(s)
	if len(parts) == 0 {
		f.fail(element, nil)
		return nil
	}
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			f.fail(element, err)
			return nil
		}
		out = append(out, v)
	}
	return out
}

func (f *fields) integers(element, s string) []int {
	parts := strings.Fields(s)
	if len(parts) == 0 {
		f.fail(element, nil)
		return nil
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			f.fail(element, err)
			return nil
		}
		out = append(out, v)
	}
	return out
}
