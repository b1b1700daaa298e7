package level

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
	"path"
	"strings"

	"github.com/DrSkyle/levelgraph/pkg/graph"
)

// Separator is the line that splits one level segment from the next.
const Separator = "&"

// ParseSegments splits level text on lines whose trimmed content is the
// separator. Lines are trimmed. The text after the last separator is always
// a segment, so empty input yields one empty segment.
func ParseSegments(r io.Reader) ([]string, error) {
	var (
		segments []string
		current  []string
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == Separator {
			segments = append(segments, strings.Join(current, "\n"))
			current = current[:0]
			continue
		}
		current = append(current, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return append(segments, strings.Join(current, "\n")), nil
}

// LevelID returns the level id for a key under SegmentsDir: the file name up
// to its first dot. Nested keys and dot files yield "".
func LevelID(key string) string {
	rel := strings.TrimPrefix(key, SegmentsDir)
	if rel == key || strings.Contains(rel, "/") {
		return ""
	}
	id, _, _ := strings.Cut(path.Base(rel), ".")
	return id
}

// SegmentKey is the blob key of a level's segment file.
func SegmentKey(id string) string {
	return SegmentsDir + id + SegmentSuffix
}

// pick returns a random segment, or "" if there are none.
func pick(segments []string, r *rand.Rand) string {
	if len(segments) == 0 {
		return ""
	}
	if r == nil {
		return segments[rand.IntN(len(segments))]
	}
	return segments[r.IntN(len(segments))]
}

// ValidateLevelID fails with ErrInvalidArgument unless id maps onto a level
// file that LevelID reads back as id: non-empty, with no '.' or '/'.
func ValidateLevelID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty level id", graph.ErrInvalidArgument)
	}
	if strings.ContainsAny(id, "./") {
		return fmt.Errorf("%w: level id %q must not contain '.' or '/'", graph.ErrInvalidArgument, id)
	}
	return nil
}
