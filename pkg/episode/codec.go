package episode

// Range is an inclusive interval of downloaded episodes within one season.
type Range struct {
	Season int `xml:"season,attr" json:"season"`
	Start  int `xml:"start,attr" json:"start"`
	End    int `xml:"end,attr" json:"end"`
}

// MaxSpan bounds how many episodes one record may cover
const MaxSpan = 10000

// Valid reports whether r can be expanded: no negative numbers, start not
// after end and a span of at most MaxSpan episodes.
func (r Range) Valid() bool {
	return r.Season >= 0 && r.Start >= 0 && r.End >= r.Start && r.End-r.Start < MaxSpan
}

// Decode expands range records into an episode set. Overlapping or repeated
// records collapse into the same set. Invalid records contribute nothing.
func Decode(ranges []Range) Set {
	set := NewSet()
	for _, r := range ranges {
		if !r.Valid() {
			continue
		}
		set.AddRange(r.Season, r.Start, r.End)
	}
	return set
}

// Encode flattens an episode set into the minimal list of ranges, ordered by
// season and then by start. Within a season no two ranges overlap or touch.
func Encode(set Set) []Range {
	var ranges []Range
	for _, season := range set.Seasons() {
		eps := set.Episodes(season)

		current := Range{Season: season, Start: eps[0], End: eps[0]}
		for _, ep := range eps[1:] {
			if ep == current.End+1 {
				current.End = ep
				continue
			}

			ranges = append(ranges, current)
			current = Range{Season: season, Start: ep, End: ep}
		}
		ranges = append(ranges, current)
	}

	return ranges
}
