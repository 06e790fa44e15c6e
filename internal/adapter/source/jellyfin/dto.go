package jellyfin

// VirtualFolder is a library as listed by Library/VirtualFolders.
// Emby identifies it by Id, Jellyfin by ItemId.
type VirtualFolder struct {
	Name           string   `json:"Name"`
	ID             string   `json:"Id,omitempty"`
	ItemID         string   `json:"ItemId,omitempty"`
	CollectionType string   `json:"CollectionType,omitempty"` // "movies", "tvshows", "music", "boxsets", "playlists"
	Locations      []string `json:"Locations,omitempty"`
}

// VirtualFoldersResponse is Emby's wrapped VirtualFolders/Query result
type VirtualFoldersResponse struct {
	Items            []VirtualFolder `json:"Items"`
	TotalRecordCount int             `json:"TotalRecordCount"`
}

// ItemsResponse represents a paginated list of items
type ItemsResponse struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
	StartIndex       int    `json:"StartIndex"`
}

// Item carries the image fields of a catalog entry
type Item struct {
	ID                      string    `json:"Id"`
	Name                    string    `json:"Name"`
	Type                    string    `json:"Type"`
	ImageTags               ImageTags `json:"ImageTags,omitempty"`
	BackdropImageTags       []string  `json:"BackdropImageTags,omitempty"`
	ParentBackdropItemID    string    `json:"ParentBackdropItemId,omitempty"`
	ParentBackdropImageTags []string  `json:"ParentBackdropImageTags,omitempty"`
	PrimaryImageItemID      string    `json:"PrimaryImageItemId,omitempty"` // Music: entity owning PrimaryImageTag
	PrimaryImageTag         string    `json:"PrimaryImageTag,omitempty"`
	AlbumID                 string    `json:"AlbumId,omitempty"`
	AlbumPrimaryImageTag    string    `json:"AlbumPrimaryImageTag,omitempty"`
}

// ImageTags contains image tag IDs for various image types
type ImageTags struct {
	Primary string `json:"Primary,omitempty"`
	Thumb   string `json:"Thumb,omitempty"`
	Banner  string `json:"Banner,omitempty"`
	Logo    string `json:"Logo,omitempty"`
}
