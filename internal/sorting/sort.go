package sorting

import (
	"sort"
	"strings"

	"twc/internal/fileinfo"
)

// Key selects the attribute entries are ordered by
type Key int

const (
	ByName Key = iota
	BySize
	ByModified
	ByExtension
)

func (k Key) String() string {
	switch k {
	case BySize:
		return "size"
	case ByModified:
		return "modified"
	case ByExtension:
		return "extension"
	default:
		return "name"
	}
}

// Direction is the order applied to the chosen key
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// Settings is the (key, direction) pair a panel holds
type Settings struct {
	Key       Key
	Direction Direction
}

// DefaultSettings returns name ascending
func DefaultSettings() Settings {
	return Settings{Key: ByName, Direction: Ascending}
}

// ParseKey converts a config value into a Key. Unknown values fall back to ByName.
func ParseKey(s string) Key {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "size":
		return BySize
	case "modified", "date", "last_modified", "lastmodified":
		return ByModified
	case "extension", "ext":
		return ByExtension
	default:
		return ByName
	}
}

// ParseDirection converts a config value into a Direction. Unknown values fall back to Ascending.
func ParseDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "desc", "descending":
		return Descending
	default:
		return Ascending
	}
}

// Sort returns a new slice ordered by s. Directories always come first,
// independent of the direction. Equal keys are broken by case-insensitive
// name ascending, then by the raw name so the result is total.
func Sort(entries []fileinfo.Entry, s Settings) []fileinfo.Entry {
	out := make([]fileinfo.Entry, len(entries))
	copy(out, entries)

	sort.SliceStable(out, func(i, j int) bool {
		return Less(out[i], out[j], s)
	})
	return out
}

// Less reports whether a orders before b under s
func Less(a, b fileinfo.Entry, s Settings) bool {
	if a.IsDir() != b.IsDir() {
		return a.IsDir()
	}

	if c := compareKey(a, b, s.Key); c != 0 {
		if s.Direction == Descending {
			return c > 0
		}
		return c < 0
	}

	la, lb := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if la != lb {
		return la < lb
	}
	return a.Name < b.Name
}

func compareKey(a, b fileinfo.Entry, key Key) int {
	switch key {
	case BySize:
		return compareInt64(a.Size, b.Size)
	case ByModified:
		return a.Modified.Compare(b.Modified)
	case ByExtension:
		return strings.Compare(a.Extension(), b.Extension())
	default:
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
