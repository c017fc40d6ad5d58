package captions

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/omplayer/server/internal/domain"
)

var ErrInvalidVTT = errors.New("invalid webvtt")

const timingArrow = "-->"

// ParseVTT reads a WebVTT document. Cue settings, styles and regions are
// dropped; cue text keeps its line breaks. The result is sorted by start.
func ParseVTT(r io.Reader) ([]domain.Cue, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: empty document", ErrInvalidVTT)
	}
	header := strings.TrimRight(strings.TrimPrefix(sc.Text(), "\ufeff"), "\r")
	if header != "WEBVTT" && !strings.HasPrefix(header, "WEBVTT ") && !strings.HasPrefix(header, "WEBVTT\t") {
		return nil, fmt.Errorf("%w: missing header", ErrInvalidVTT)
	}

	var (
		cues    []domain.Cue
		current *domain.Cue
		text    []string
		skip    bool
		line    = 1
	)

	flush := func() {
		if current != nil {
			current.Text = strings.Join(text, "\n")
			cues = append(cues, *current)
		}
		current = nil
		text = text[:0]
		skip = false
	}

	for sc.Scan() {
		line++
		l := strings.TrimRight(sc.Text(), "\r")

		if strings.TrimSpace(l) == "" {
			flush()
			continue
		}
		if skip {
			continue
		}
		if current != nil {
			text = append(text, l)
			continue
		}

		if strings.HasPrefix(l, "NOTE") || l == "STYLE" || l == "REGION" {
			skip = true
			continue
		}
		if !strings.Contains(l, timingArrow) {
			// cue identifier
			continue
		}

		start, end, err := parseTiming(l)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidVTT, line, err)
		}
		current = &domain.Cue{Start: start, End: end}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()

	sortCues(cues)

	return cues, nil
}

func parseTiming(l string) (float64, float64, error) {
	left, right, _ := strings.Cut(l, timingArrow)
	fields := strings.Fields(right)
	if len(fields) == 0 {
		return 0, 0, errors.New("missing end timestamp")
	}

	start, err := parseTimestamp(strings.TrimSpace(left))
	if err != nil {
		return 0, 0, err
	}
	end, err := parseTimestamp(fields[0])
	if err != nil {
		return 0, 0, err
	}

	return start, end, nil
}

// parseTimestamp accepts (hh:)mm:ss.ttt.
func parseTimestamp(s string) (float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("bad timestamp %q", s)
	}

	var total float64
	for i, p := range parts {
		whole, frac, hasFrac := strings.Cut(p, ".")
		if !isDigits(whole) || (hasFrac && (i < len(parts)-1 || !isDigits(frac))) {
			return 0, fmt.Errorf("bad timestamp %q", s)
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, fmt.Errorf("bad timestamp %q", s)
		}
		total = total*60 + v
	}

	return total, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
