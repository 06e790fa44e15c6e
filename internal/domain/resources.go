package domain

import "time"

// FontLang is the language a typeface is used for
type FontLang string

const (
	LangZh FontLang = "zh"
	LangEn FontLang = "en"
)

// FontRole identifies which typeface a piece of rendered text uses
type FontRole struct {
	Lang   FontLang
	Family StyleFamily
}

// CacheName is the base name of the role's cached file and hash sidecar
func (r FontRole) CacheName() string {
	if r.Family == FamilyMulti {
		return string(r.Lang) + "_multi_1"
	}
	return string(r.Lang)
}

func (r FontRole) String() string {
	return r.CacheName()
}

// FontSource records where a resolved font came from
type FontSource string

const (
	FontSourceLocal    FontSource = "local"    // configured override path
	FontSourceCache    FontSource = "cache"    // previously downloaded, hash matched
	FontSourceDownload FontSource = "download" // fetched during this resolution
	FontSourceStale    FontSource = "stale"    // download failed, last valid file reused
)

// FontResource is a read-only view of a resolved typeface
type FontResource struct {
	Role      FontRole
	URL       string     // Configured origin URL
	LocalPath string     // Optional override path
	Path      string     // File to read the font from
	Hash      string     // Origin URL hash recorded for the cached file
	Valid     bool       // Path passed signature validation
	Source    FontSource // How Path was obtained
}

// FontPair is the resolved Chinese and English typefaces for one synthesis
type FontPair struct {
	Zh FontResource
	En FontResource
}

// HistoryEntry records which source item contributed to a collection's cover
type HistoryEntry struct {
	Server       string    `json:"server"`
	CollectionID string    `json:"library_id"`
	ItemID       string    `json:"item_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// HistoryLimit bounds the entries kept per (server, collection)
const HistoryLimit = 9
