package store

import (
	"fmt"
	"regexp"
	"strconv"
)

// Namespace prefixes every record file name so records can share a directory
// with unrelated files.
//
// File naming convention:
//
//	{Namespace}-{key:08x}.{queueID}
//	e.g. 15934E61-04A5-47cf-86FF-3E02F08F5931-00000002.myqueue
const Namespace = "15934E61-04A5-47cf-86FF-3E02F08F5931"

// KeyWidth is the number of hex digits encoding a key.
const KeyWidth = 8

// FormatRecordName creates the file name of the record for key.
func FormatRecordName(key uint32, queueID string) string {
	return fmt.Sprintf("%s-%0*x.%s", Namespace, KeyWidth, key, queueID)
}

// recordPattern matches record file names of one queue. The namespace comes
// first so non-matching names are rejected early.
func recordPattern(queueID string) *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(Namespace) +
		"-([0-9A-Fa-f]{8})\\." + regexp.QuoteMeta(queueID) + "$")
}

// ParseRecordName extracts the key from a record file name of queueID.
func ParseRecordName(name, queueID string) (uint32, error) {
	return parseWith(recordPattern(queueID), name)
}

func parseWith(re *regexp.Regexp, name string) (uint32, error) {
	m := re.FindStringSubmatch(name)
	if m == nil {
		return 0, fmt.Errorf("invalid record filename: %s", name)
	}
	key, err := strconv.ParseUint(m[1], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid record filename: %s (invalid key)", name)
	}
	return uint32(key), nil
}
