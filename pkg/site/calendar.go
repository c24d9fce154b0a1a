package site

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/jlrickert/letterpress/pkg/post"
)

// MonthKey identifies a monthly archive.
type MonthKey struct {
	Year  int
	Month time.Month
}

// KeyOf returns the month key of p's publish date.
func KeyOf(p *post.Post) MonthKey {
	return MonthKey{Year: p.Date.Year(), Month: p.Date.Month()}
}

func (k MonthKey) compare(o MonthKey) int {
	if c := cmp.Compare(k.Year, o.Year); c != 0 {
		return c
	}
	return cmp.Compare(k.Month, o.Month)
}

// Time returns the first instant of the month in UTC.
func (k MonthKey) Time() time.Time {
	return time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// MonthlyArchive holds the posts of one month in ascending order.
type MonthlyArchive struct {
	Key   MonthKey
	Posts []*post.Post
}

// Len returns the number of posts in the month.
func (m *MonthlyArchive) Len() int { return len(m.Posts) }

// YearlyArchive holds the monthly archives of one year in ascending order.
type YearlyArchive struct {
	Year   int
	Months []*MonthlyArchive
}

// Len returns the number of posts across every month of the year.
func (y *YearlyArchive) Len() int {
	n := 0
	for _, m := range y.Months {
		n += len(m.Posts)
	}
	return n
}

// CalendarDelta reports what a single post change did to the calendar.
// Month and Year are set even when the bucket was removed so callers can
// clean up its output.
type CalendarDelta struct {
	Month        *MonthlyArchive
	Year         *YearlyArchive
	MonthCreated bool
	MonthRemoved bool
	YearCreated  bool
	YearRemoved  bool
}

// Changed reports whether the delta touched any bucket.
func (d CalendarDelta) Changed() bool { return d.Month != nil }

// CalendarIndex groups posts into monthly and yearly archives. No bucket
// is ever registered empty.
//
// Note: CalendarIndex does not perform internal synchronization.
type CalendarIndex struct {
	months []*MonthlyArchive
	years  []*YearlyArchive
}

// NewCalendarIndex returns an empty index.
func NewCalendarIndex() *CalendarIndex {
	return &CalendarIndex{}
}

// Rebuild replaces the index contents with buckets derived from posts.
func (ci *CalendarIndex) Rebuild(posts []*post.Post) {
	sorted := slices.Clone(posts)
	sortAscending(sorted)

	var months []*MonthlyArchive
	for _, p := range sorted {
		k := KeyOf(p)
		if len(months) == 0 || months[len(months)-1].Key != k {
			months = append(months, &MonthlyArchive{Key: k})
		}
		cur := months[len(months)-1]
		cur.Posts = append(cur.Posts, p)
	}

	var years []*YearlyArchive
	for _, m := range months {
		if len(years) == 0 || years[len(years)-1].Year != m.Key.Year {
			years = append(years, &YearlyArchive{Year: m.Key.Year})
		}
		cur := years[len(years)-1]
		cur.Months = append(cur.Months, m)
	}

	ci.months = months
	ci.years = years
}

func (ci *CalendarIndex) findMonth(k MonthKey) (int, bool) {
	return slices.BinarySearchFunc(ci.months, k, func(m *MonthlyArchive, k MonthKey) int {
		return m.Key.compare(k)
	})
}

func (ci *CalendarIndex) findYear(y int) (int, bool) {
	return slices.BinarySearchFunc(ci.years, y, func(ya *YearlyArchive, y int) int {
		return cmp.Compare(ya.Year, y)
	})
}

func findMonthIn(months []*MonthlyArchive, k MonthKey) (int, bool) {
	return slices.BinarySearchFunc(months, k, func(m *MonthlyArchive, k MonthKey) int {
		return m.Key.compare(k)
	})
}

// OnAdd places p into its month and year, creating either bucket when
// needed.
func (ci *CalendarIndex) OnAdd(p *post.Post) CalendarDelta {
	k := KeyOf(p)
	var d CalendarDelta

	mi, ok := ci.findMonth(k)
	if !ok {
		ci.months = slices.Insert(ci.months, mi, &MonthlyArchive{Key: k})
		d.MonthCreated = true
	}
	month := ci.months[mi]
	month.Posts, _ = insertSorted(month.Posts, p, post.Compare)
	d.Month = month

	yi, ok := ci.findYear(k.Year)
	if !ok {
		ci.years = slices.Insert(ci.years, yi, &YearlyArchive{Year: k.Year})
		d.YearCreated = true
	}
	year := ci.years[yi]
	if d.MonthCreated {
		at, _ := findMonthIn(year.Months, k)
		year.Months = slices.Insert(year.Months, at, month)
	}
	d.Year = year
	return d
}

// OnRemove takes p out of its month. An emptied month is removed and, in
// cascade, an emptied year. Removing a post that is not indexed is a no-op
// and returns a zero delta.
func (ci *CalendarIndex) OnRemove(p *post.Post) CalendarDelta {
	k := KeyOf(p)
	var d CalendarDelta

	mi, ok := ci.findMonth(k)
	if !ok {
		return d
	}
	month := ci.months[mi]
	var at int
	month.Posts, at = removeSorted(month.Posts, p, post.Compare)
	if at < 0 {
		return d
	}
	d.Month = month

	yi, hasYear := ci.findYear(k.Year)
	if hasYear {
		d.Year = ci.years[yi]
	}

	if len(month.Posts) > 0 {
		return d
	}
	ci.months = slices.Delete(ci.months, mi, mi+1)
	d.MonthRemoved = true
	if !hasYear {
		return d
	}
	year := d.Year
	if ymi, ok := findMonthIn(year.Months, k); ok {
		year.Months = slices.Delete(year.Months, ymi, ymi+1)
	}
	if len(year.Months) == 0 {
		ci.years = slices.Delete(ci.years, yi, yi+1)
		d.YearRemoved = true
	}
	return d
}

// Months returns every monthly archive in ascending order.
func (ci *CalendarIndex) Months() []*MonthlyArchive {
	if ci == nil {
		return nil
	}
	return slices.Clone(ci.months)
}

// Years returns every yearly archive in ascending order.
func (ci *CalendarIndex) Years() []*YearlyArchive {
	if ci == nil {
		return nil
	}
	return slices.Clone(ci.years)
}

// Month returns the archive for year and month.
func (ci *CalendarIndex) Month(year int, month time.Month) (*MonthlyArchive, bool) {
	i, ok := ci.findMonth(MonthKey{Year: year, Month: month})
	if !ok {
		return nil, false
	}
	return ci.months[i], true
}

// Year returns the archive for year.
func (ci *CalendarIndex) Year(year int) (*YearlyArchive, bool) {
	i, ok := ci.findYear(year)
	if !ok {
		return nil, false
	}
	return ci.years[i], true
}

// MonthNeighbors returns the registered months immediately before and
// after k. k itself need not be registered.
func (ci *CalendarIndex) MonthNeighbors(k MonthKey) (prev, next *MonthlyArchive) {
	i, found := ci.findMonth(k)
	if i > 0 {
		prev = ci.months[i-1]
	}
	if found {
		i++
	}
	if i < len(ci.months) {
		next = ci.months[i]
	}
	return prev, next
}

// YearNeighbors returns the registered years immediately before and after
// year. year itself need not be registered.
func (ci *CalendarIndex) YearNeighbors(year int) (prev, next *YearlyArchive) {
	i, found := ci.findYear(year)
	if i > 0 {
		prev = ci.years[i-1]
	}
	if found {
		i++
	}
	if i < len(ci.years) {
		next = ci.years[i]
	}
	return prev, next
}
