package portal

import (
	"strings"
	"time"
)

// Paper is one entry of the browse list.
type Paper struct {
	ID         int
	Title      string
	Subject    string
	Year       string
	Semester   string
	UploadDate time.Time
	SizeBytes  uint64
	Downloads  int
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ExamplePapers is the fixed list the browse page shows until it is backed by the catalog.
var ExamplePapers = []Paper{
	{1, "Lorem Ipsum Dolor Sit Amet", "Consectetur Adipiscing", "2022-2023", "Semester3", day(2023, time.January, 15), 2_400_000, 128},
	{2, "Sed Do Eiusmod Tempor", "Incididunt Ut Labore", "2022-2023", "Semester4", day(2023, time.May, 20), 3_100_000, 215},
	{3, "Ut Enim Ad Minim Veniam", "Quis Nostrud Exercitation", "2021-2022", "Semester5", day(2022, time.June, 10), 1_900_000, 97},
	{4, "Duis Aute Irure Dolor", "In Reprehenderit", "2022-2023", "Semester3", day(2023, time.May, 18), 2_600_000, 156},
	{5, "Excepteur Sint Occaecat", "Cupidatat Non Proident", "2021-2022", "Semester4", day(2022, time.November, 5), 1_800_000, 203},
	{6, "Sunt In Culpa Qui Officia", "Deserunt Mollit Anim", "2022-2023", "Semester2", day(2023, time.April, 22), 2_200_000, 178},
}

// BrowseFilter is empty-means-any on every field.
type BrowseFilter struct {
	Search   string
	Year     string
	Semester string
}

// Browse filters a fixed paper list in memory.
type Browse struct {
	papers []Paper
}

func NewBrowse(papers []Paper) *Browse {
	if papers == nil {
		papers = ExamplePapers
	}
	return &Browse{papers: papers}
}

// Filter keeps papers whose title or subject contains Search (case-insensitive)
// and whose year and semester equal the selected values.
func (b *Browse) Filter(f BrowseFilter) []Paper {
	term := strings.ToLower(f.Search)
	out := []Paper{}
	for _, p := range b.papers {
		if term != "" && !strings.Contains(strings.ToLower(p.Title), term) && !strings.Contains(strings.ToLower(p.Subject), term) {
			continue
		}
		if f.Year != "" && p.Year != f.Year {
			continue
		}
		if f.Semester != "" && p.Semester != f.Semester {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Years lists distinct years in first-seen order.
func (b *Browse) Years() []string {
	return distinct(b.papers, func(p Paper) string { return p.Year })
}

// Semesters lists distinct semesters in first-seen order.
func (b *Browse) Semesters() []string {
	return distinct(b.papers, func(p Paper) string { return p.Semester })
}

func distinct(papers []Paper, field func(Paper) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range papers {
		v := field(p)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
