package report

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cityprice/internal"
)

var ErrPeriodNotFound = errors.New("could not derive report period from url or title")

var (
	reURLDay   = regexp.MustCompile(`t(\d{8})`)
	reURLMonth = regexp.MustCompile(`/(\d{6})/`)
	reTitle    = regexp.MustCompile(`(\d{4})年(\d{1,2})月`)
	reMonthSep = regexp.MustCompile(`[-/]`)
)

// PublicationFromURL reads the publication month from a release URL such as
// .../202507/t20250715_1960403.html.
func PublicationFromURL(url string) (internal.Period, bool) {
	if m := reURLDay.FindStringSubmatch(url); m != nil {
		if p, ok := yearMonth(m[1][:4], m[1][4:6]); ok {
			return p, true
		}
	}
	if m := reURLMonth.FindStringSubmatch(url); m != nil {
		if p, ok := yearMonth(m[1][:4], m[1][4:6]); ok {
			return p, true
		}
	}
	return internal.Period{}, false
}

// PublicationFromTitle scans the page title, then the first row of every
// table, for a YYYY年M月 marker.
func PublicationFromTitle(t Tables) (internal.Period, bool) {
	candidates := []string{t.Title}
	for _, table := range t.Tables {
		if table.NumRows() > 0 {
			candidates = append(candidates, table.Rows[0]...)
		}
	}
	for _, text := range candidates {
		if m := reTitle.FindStringSubmatch(text); m != nil {
			if p, ok := yearMonth(m[1], m[2]); ok {
				return p, true
			}
		}
	}
	return internal.Period{}, false
}

// DataPeriod is the month the figures describe: one month before publication.
func DataPeriod(publication internal.Period) internal.Period {
	return publication.AddMonths(-1)
}

// ResolvePeriod derives the data period from the URL, falling back to the
// page title.
func ResolvePeriod(url string, t Tables) (internal.Period, error) {
	if p, ok := PublicationFromURL(url); ok {
		return DataPeriod(p), nil
	}
	if p, ok := PublicationFromTitle(t); ok {
		return DataPeriod(p), nil
	}
	return internal.Period{}, ErrPeriodNotFound
}

// ParseMonthArg accepts YYYYMM, YYYY-MM or YYYY/MM.
func ParseMonthArg(value string) (internal.Period, error) {
	compact := reMonthSep.ReplaceAllString(strings.TrimSpace(value), "")
	if len(compact) != 6 {
		return internal.Period{}, errors.New("invalid month " + strconv.Quote(value) + ", expected YYYYMM (e.g. 202507)")
	}
	p, ok := yearMonth(compact[:4], compact[4:])
	if !ok {
		return internal.Period{}, errors.New("invalid month " + strconv.Quote(value) + ", expected YYYYMM (e.g. 202507)")
	}
	return p, nil
}

func yearMonth(y, m string) (internal.Period, bool) {
	year, err := strconv.Atoi(y)
	if err != nil || year < 1900 {
		return internal.Period{}, false
	}
	month, err := strconv.Atoi(m)
	if err != nil || month < 1 || month > 12 {
		return internal.Period{}, false
	}
	return internal.NewPeriod(year, time.Month(month)), true
}
