package episode

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// Extensions are the recognized video containers, lower case and without the dot.
var Extensions = []string{"mkv", "mp4", "avi", "wmv", "flv", "mov"}

const episodePattern = `(?i)[^/]*?(\d+)x(\d+)[^/]*?\.(?:mkv|mp4|avi|wmv|flv|mov)$`

var episodeRegex = regexp.MustCompile(episodePattern)

// ID identifies one episode of a show.
type ID struct {
	Season  int `json:"season"`
	Episode int `json:"episode"`
}

func (id ID) String() string {
	return fmt.Sprintf("%02dx%02d", id.Season, id.Episode)
}

// IsMedia reports whether the final path segment carries a recognized video extension.
func IsMedia(p string) bool {
	ext := strings.TrimPrefix(path.Ext(p), ".")
	if ext == "" {
		return false
	}

	for _, e := range Extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}

	return false
}

// Identify parses a `<season>x<episode>` token out of the final path segment.
// Paths without a recognized extension or without the token do not match.
func Identify(p string) (ID, bool) {
	match := episodeRegex.FindStringSubmatch(p)
	if match == nil {
		return ID{}, false
	}

	season, err := strconv.Atoi(match[1])
	if err != nil {
		return ID{}, false
	}

	ep, err := strconv.Atoi(match[2])
	if err != nil {
		return ID{}, false
	}

	return ID{Season: season, Episode: ep}, true
}
