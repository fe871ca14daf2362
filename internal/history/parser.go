package history

import (
	"strconv"
	"strings"
	"time"
)

// Records are NUL-terminated (git log -z); a commit message cannot contain
// NUL. Fields are split on the ASCII unit separator, and the message is
// everything after the seventh one, so a message containing it still parses.
const (
	fieldSep  = "\x1f"
	recordSep = "\x00"
)

// LogFormat is the --format argument matching ParseLog. It must be used
// together with -z and LogDateFormat.
const LogFormat = "--format=%H%x1f%an%x1f%ae%x1f%at%x1f%ct%x1f%ad%x1f%cd%x1f%B"

// LogDateFormat makes %ad and %cd print the zone offset each date was
// recorded with.
const LogDateFormat = "--date=format:%z"

const logFields = 8

const shortHashLen = 7

// ParseLog parses output produced with LogFormat. Malformed records are
// skipped and counted in dropped.
func ParseLog(out string) (records []CommitRecord, dropped int) {
	for _, raw := range strings.Split(out, recordSep) {
		raw = strings.TrimLeft(raw, "\r\n")
		if raw == "" {
			continue
		}
		rec, ok := parseRecord(raw)
		if !ok {
			dropped++
			continue
		}
		records = append(records, rec)
	}
	return records, dropped
}

func parseRecord(raw string) (CommitRecord, bool) {
	fields := strings.SplitN(raw, fieldSep, logFields)
	if len(fields) < logFields {
		return CommitRecord{}, false
	}

	hash := strings.TrimSpace(fields[0])
	if len(hash) < shortHashLen {
		return CommitRecord{}, false
	}
	authorTime, ok := parseTime(fields[3], fields[5])
	if !ok {
		return CommitRecord{}, false
	}
	commitTime, ok := parseTime(fields[4], fields[6])
	if !ok {
		return CommitRecord{}, false
	}

	message := strings.TrimRight(fields[7], "\r\n")
	return CommitRecord{
		Hash:        hash,
		ShortHash:   hash[:shortHashLen],
		AuthorName:  fields[1],
		AuthorEmail: fields[2],
		AuthorTime:  authorTime,
		CommitTime:  commitTime,
		Subject:     SubjectOf(message),
		Message:     message,
	}, true
}

// parseTime combines epoch seconds with a "+hhmm" offset so the zone the
// date was recorded in survives a rewrite.
func parseTime(epoch, offset string) (time.Time, bool) {
	ts, err := strconv.ParseInt(strings.TrimSpace(epoch), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	zone, ok := parseOffset(offset)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(ts, 0).In(zone), true
}

// parseOffset turns a git zone offset such as "+0900" or "-0330" into a
// fixed zone.
func parseOffset(offset string) (*time.Location, bool) {
	offset = strings.TrimSpace(offset)
	if len(offset) != 5 || (offset[0] != '+' && offset[0] != '-') {
		return nil, false
	}
	for _, r := range offset[1:] {
		if r < '0' || r > '9' {
			return nil, false
		}
	}
	hours, err := strconv.Atoi(offset[1:3])
	if err != nil {
		return nil, false
	}
	minutes, err := strconv.Atoi(offset[3:5])
	if err != nil || minutes >= 60 {
		return nil, false
	}
	secs := hours*3600 + minutes*60
	if offset[0] == '-' {
		secs = -secs
	}
	return time.FixedZone(offset, secs), true
}

// SubjectOf returns the first line of message.
func SubjectOf(message string) string {
	line, _, _ := strings.Cut(message, "\n")
	return strings.TrimRight(line, "\r")
}
