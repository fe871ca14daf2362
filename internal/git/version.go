package git

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Iron-Ham/gittimemachine/internal/errors"
)

// minVersion is the oldest git accepted. Older releases handle
// GIT_SEQUENCE_EDITOR inconsistently during "rebase -i".
var minVersion = Version{Major: 2, Minor: 23}

// Version is a parsed "git --version" triple.
type Version struct {
	Major int
	Minor int
	Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Less reports whether v sorts before other.
func (v Version) Less(other Version) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor < other.Minor
	}
	return v.Patch < other.Patch
}

// MinVersion returns the minimum supported git version.
func MinVersion() Version {
	return minVersion
}

// ParseVersion extracts the version from "git --version" output. It
// tolerates vendor suffixes such as "(Apple Git-146)" and ".windows.1".
func ParseVersion(out string) (Version, bool) {
	s := strings.TrimSpace(out)
	if idx := strings.Index(s, "git version"); idx >= 0 {
		s = strings.TrimSpace(s[idx+len("git version"):])
	}

	start := strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' })
	if start < 0 {
		return Version{}, false
	}
	s = s[start:]

	end := 0
	for end < len(s) && (s[end] == '.' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	parts := strings.Split(strings.Trim(s[:end], "."), ".")
	if len(parts) < 2 {
		return Version{}, false
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return Version{}, false
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return Version{}, false
	}
	v := Version{Major: major, Minor: minor}
	if len(parts) >= 3 {
		if p, err := strconv.Atoi(parts[2]); err == nil {
			v.Patch = p
		}
	}
	return v, true
}

// CheckVersion runs "git --version" and rejects versions below MinVersion.
func CheckVersion(ctx context.Context, gw Gateway) (Version, error) {
	out, err := gw.Run(ctx, Git("--version"))
	if err != nil {
		return Version{}, errors.NewGitError("failed to run git", err)
	}
	v, ok := ParseVersion(out)
	if !ok {
		return Version{}, errors.NewGitError("unable to parse git version", errors.ErrGitVersionUnsupported).
			WithGitOutput(out)
	}
	if v.Less(minVersion) {
		return v, errors.NewGitError(
			fmt.Sprintf("git %s is too old; gittimemachine requires git >= %s", v, minVersion),
			errors.ErrGitVersionUnsupported,
		)
	}
	return v, nil
}
