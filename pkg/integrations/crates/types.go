package crates

import (
	"slices"
	"strings"
	"time"
)

// Dependency is one edge declared by a published crate version.
//
// The JSON layout matches the crates.io API and is what the dependency graph
// exposes as a node's attributes.
type Dependency struct {
	ID              int64    `json:"id"`
	VersionID       int64    `json:"version_id"`
	CrateID         string   `json:"crate_id"`
	Req             string   `json:"req"`
	Kind            string   `json:"kind"` // "normal", "dev" or "build"
	Optional        bool     `json:"optional"`
	DefaultFeatures bool     `json:"default_features"`
	Features        []string `json:"features"`
	Target          *string  `json:"target"`
	Downloads       int64    `json:"downloads"`
}

// DependenciesResponse is the body of GET /crates/{id}/{version}/dependencies.
type DependenciesResponse struct {
	Dependencies []Dependency `json:"dependencies"`
}

// Version is a single published version of a crate.
type Version struct {
	ID        int64               `json:"id"`
	Crate     string              `json:"crate"`
	Num       string              `json:"num"`
	CrateSize int64               `json:"crate_size"`
	Downloads int64               `json:"downloads"`
	License   string              `json:"license"`
	Features  map[string][]string `json:"features,omitempty"`
	Yanked    bool                `json:"yanked"`
	DLPath    string              `json:"dl_path"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// VersionResponse is the body of GET /crates/{id}/{version}.
type VersionResponse struct {
	Version Version `json:"version"`
}

// Crate holds crate-level metadata.
type Crate struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Homepage         string    `json:"homepage"`
	Documentation    string    `json:"documentation"`
	Repository       string    `json:"repository"`
	Downloads        int64     `json:"downloads"`
	RecentDownloads  int64     `json:"recent_downloads"`
	MaxVersion       string    `json:"max_version"`
	MaxStableVersion string    `json:"max_stable_version"`
	NewestVersion    string    `json:"newest_version"`
	Keywords         []string  `json:"keywords"`
	Categories       []string  `json:"categories"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CrateResponse is the body of GET /crates/{id}. Versions are listed newest first.
type CrateResponse struct {
	Crate    Crate     `json:"crate"`
	Versions []Version `json:"versions"`
}

// VersionNums returns the published version numbers in registry order.
func (r *CrateResponse) VersionNums() []string {
	nums := make([]string, 0, len(r.Versions))
	for _, v := range r.Versions {
		nums = append(nums, v.Num)
	}
	return nums
}

// FindVersion returns the version record whose number is num.
func (r *CrateResponse) FindVersion(num string) (*Version, bool) {
	for i := range r.Versions {
		if r.Versions[i].Num == num {
			return &r.Versions[i], true
		}
	}
	return nil, false
}

// DefaultVersion is the version a bare crate lookup should resolve to:
// the highest stable version, else the highest version.
func (r *CrateResponse) DefaultVersion() string {
	if r.Crate.MaxStableVersion != "" {
		return r.Crate.MaxStableVersion
	}
	if r.Crate.MaxVersion != "" {
		return r.Crate.MaxVersion
	}
	if len(r.Versions) > 0 {
		return r.Versions[0].Num
	}
	return ""
}

// SearchResponse is the body of GET /crates?q=.
type SearchResponse struct {
	Crates []Crate `json:"crates"`
	Meta   struct {
		Total    int     `json:"total"`
		NextPage *string `json:"next_page"`
		PrevPage *string `json:"prev_page"`
	} `json:"meta"`
}

// DailyDownloads is a download count for one day.
type DailyDownloads struct {
	Date      string `json:"date"`
	Downloads int64  `json:"downloads"`
}

// VersionDownloads is a per-version download count for one day.
type VersionDownloads struct {
	Version   int64  `json:"version"`
	Date      string `json:"date"`
	Downloads int64  `json:"downloads"`
}

// DownloadsResponse is the body of GET /crates/{id}/downloads: the last 90
// days for the most popular versions, with the remainder folded into
// Meta.ExtraDownloads.
type DownloadsResponse struct {
	VersionDownloads []VersionDownloads `json:"version_downloads"`
	Meta             struct {
		ExtraDownloads []DailyDownloads `json:"extra_downloads"`
	} `json:"meta"`
}

// Daily sums all versions into one series ordered by date.
func (r *DownloadsResponse) Daily() []DailyDownloads {
	totals := make(map[string]int64)
	for _, d := range r.VersionDownloads {
		totals[d.Date] += d.Downloads
	}
	for _, d := range r.Meta.ExtraDownloads {
		totals[d.Date] += d.Downloads
	}
	out := make([]DailyDownloads, 0, len(totals))
	for date, n := range totals {
		out = append(out, DailyDownloads{Date: date, Downloads: n})
	}
	slices.SortFunc(out, func(a, b DailyDownloads) int { return strings.Compare(a.Date, b.Date) })
	return out
}
