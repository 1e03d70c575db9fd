// Package versions resolves Cargo version requirements against published
// version lists.
//
// Requirements use Cargo syntax: a bare version such as "1.2" means "^1.2",
// comma-separated comparators must all hold, and "*" matches any release.
// Pre-releases only satisfy a requirement that names a pre-release itself.
package versions

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/cratescope/pkg/errors"
)

// ParseRequirement parses a Cargo requirement into a semver constraint.
// An empty requirement is treated as "*".
func ParseRequirement(req string) (*semver.Constraints, error) {
	c, err := semver.NewConstraint(Normalize(req))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidVersion, err, "invalid version requirement %q", req)
	}
	return c, nil
}

// Normalize rewrites a Cargo requirement into the constraint syntax understood
// by the semver library.
func Normalize(req string) string {
	req = strings.TrimSpace(req)
	if req == "" {
		return "*"
	}
	parts := strings.Split(req, ",")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if isBare(p) {
			p = "^" + p
		}
		parts[i] = p
	}
	return strings.Join(parts, ", ")
}

// isBare reports whether a comparator has no operator and no wildcard.
func isBare(p string) bool {
	if p == "" || p[0] < '0' || p[0] > '9' {
		return false
	}
	for _, seg := range strings.Split(p, ".") {
		switch seg {
		case "*", "x", "X":
			return false
		}
	}
	return true
}

// MaxSatisfying returns the highest candidate that satisfies req.
// Candidates that are not valid semantic versions are skipped; an ill-formed
// requirement or no match returns ("", false).
//
// A pre-release candidate matches only when some comparator of req names a
// pre-release of the same major.minor.patch, and it is then checked against
// every comparator by version precedence.
func MaxSatisfying(req string, candidates []string) (string, bool) {
	c, err := ParseRequirement(req)
	if err != nil {
		return "", false
	}
	// Pre-release candidates are rejected when req uses syntax the
	// comparator parser does not cover.
	cmps, cmpsErr := parseComparators(Normalize(req))

	var best *semver.Version
	var bestRaw string
	for _, raw := range candidates {
		v, err := semver.StrictNewVersion(raw)
		if err != nil {
			continue
		}
		if v.Prerelease() == "" {
			if !c.Check(v) {
				continue
			}
		} else if cmpsErr != nil || !matchPrerelease(cmps, v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best, bestRaw = v, raw
		}
	}
	if best == nil {
		return "", false
	}
	return bestRaw, true
}

var comparatorRegex = regexp.MustCompile(
	`^(\^|~|=|>=|<=|>|<)?\s*v?(\d+|[*xX])(?:\.(\d+|[*xX]))?(?:\.(\d+|[*xX]))?(?:-([0-9A-Za-z.-]+))?(?:\+[0-9A-Za-z.-]+)?$`)

// comparator is one clause of a requirement. parts counts the numeric
// components given before the first wildcard or the end.
type comparator struct {
	op                  string
	major, minor, patch uint64
	parts               int
	pre                 string
}

func parseComparators(req string) ([]comparator, error) {
	var out []comparator
	for _, p := range strings.Split(req, ",") {
		m := comparatorRegex.FindStringSubmatch(strings.TrimSpace(p))
		if m == nil {
			return nil, errors.New(errors.ErrCodeInvalidVersion, "unsupported comparator %q", p)
		}
		cmp := comparator{op: m[1], pre: m[5]}
		if cmp.op == "" {
			cmp.op = "="
		}
		nums := []*uint64{&cmp.major, &cmp.minor, &cmp.patch}
		for i, seg := range m[2:5] {
			if seg == "" || seg == "*" || seg == "x" || seg == "X" {
				break
			}
			n, err := strconv.ParseUint(seg, 10, 64)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidVersion, err, "invalid comparator %q", p)
			}
			*nums[i] = n
			cmp.parts++
		}
		out = append(out, cmp)
	}
	return out, nil
}

// matchPrerelease reports whether the pre-release v satisfies every
// comparator and shares its version core with a pre-release comparator.
func matchPrerelease(cmps []comparator, v *semver.Version) bool {
	named := false
	for _, c := range cmps {
		if c.pre != "" && c.major == v.Major() && c.minor == v.Minor() && c.patch == v.Patch() {
			named = true
			break
		}
	}
	if !named {
		return false
	}
	for _, c := range cmps {
		if !c.bounds().contains(v) {
			return false
		}
	}
	return true
}

// interval is a version range; nil ends are unbounded.
type interval struct {
	lo, hi         *semver.Version
	loIncl, hiIncl bool
}

func (r interval) contains(v *semver.Version) bool {
	if r.lo != nil {
		if d := v.Compare(r.lo); d < 0 || (d == 0 && !r.loIncl) {
			return false
		}
	}
	if r.hi != nil {
		if d := v.Compare(r.hi); d > 0 || (d == 0 && !r.hiIncl) {
			return false
		}
	}
	return true
}

// bounds expands c into an interval. Upper bounds derived from a partial
// version or an operator range carry the "-0" pre-release, so pre-releases
// of the next version stay outside.
func (c comparator) bounds() interval {
	if c.parts == 0 {
		return interval{}
	}
	base := semver.New(c.major, c.minor, c.patch, c.pre, "")
	full := c.parts == 3
	next := c.bump(c.parts)

	switch c.op {
	case "^":
		switch {
		case c.major > 0 || c.parts == 1:
			next = c.bump(1)
		case c.minor > 0 || c.parts == 2:
			next = c.bump(2)
		default:
			next = c.bump(3)
		}
		return interval{lo: base, loIncl: true, hi: next}
	case "~":
		if c.parts == 1 {
			next = c.bump(1)
		} else {
			next = c.bump(2)
		}
		return interval{lo: base, loIncl: true, hi: next}
	case ">=":
		return interval{lo: base, loIncl: true}
	case ">":
		if full {
			return interval{lo: base}
		}
		return interval{lo: semver.New(next.Major(), next.Minor(), next.Patch(), "", ""), loIncl: true}
	case "<":
		if full {
			return interval{hi: base}
		}
		return interval{hi: semver.New(c.major, c.minor, c.patch, "0", "")}
	case "<=":
		if full {
			return interval{hi: base, hiIncl: true}
		}
		return interval{hi: next}
	default: // "="
		if full {
			return interval{lo: base, loIncl: true, hi: base, hiIncl: true}
		}
		return interval{lo: base, loIncl: true, hi: next}
	}
}

// bump returns the lowest pre-release of the version after c at the given
// component (1 major, 2 minor, 3 patch).
func (c comparator) bump(component int) *semver.Version {
	switch component {
	case 1:
		return semver.New(c.major+1, 0, 0, "0", "")
	case 2:
		return semver.New(c.major, c.minor+1, 0, "0", "")
	default:
		return semver.New(c.major, c.minor, c.patch+1, "0", "")
	}
}
