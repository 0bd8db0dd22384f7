package roster

import (
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"artwink/internal/studio"
)

// DayLayout is the format of the date filter.
const DayLayout = "2006-01-02"

// DisplayLayout renders attendance timestamps for people.
const DisplayLayout = "January 2, 2006, 03:04 PM"

// Filter narrows a derived view. Zero values pass everything through.
type Filter struct {
	Query string
	Date  string
}

// Validate checks the date filter format.
func (f Filter) Validate() error {
	if f.Date == "" {
		return nil
	}
	if _, err := time.Parse(DayLayout, f.Date); err != nil {
		return studio.Invalid("date", "Date must be formatted YYYY-MM-DD")
	}
	return nil
}

// Matches reports whether name contains query, ignoring case.
func Matches(name, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(query))
}

// DayOf is the calendar day of t in loc.
func DayOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayLayout)
}

// Display formats t in loc for people.
func Display(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DisplayLayout)
}

// nameOrder compares display names the way people sort a class list:
// letters before case, so "anna" and "Anna" sit together.
type nameOrder struct {
	c *collate.Collator
}

func newNameOrder() nameOrder {
	return nameOrder{c: collate.New(language.English)}
}

func (o nameOrder) compare(a, b string) int {
	return o.c.CompareString(a, b)
}
