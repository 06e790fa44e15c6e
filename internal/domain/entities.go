package domain

import (
	"fmt"
	"strings"
)

// ItemType is the catalog type tag of an item
type ItemType string

const (
	ItemTypeMovie      ItemType = "Movie"
	ItemTypeSeries     ItemType = "Series"
	ItemTypeEpisode    ItemType = "Episode"
	ItemTypeMusicAlbum ItemType = "MusicAlbum"
	ItemTypeAudio      ItemType = "Audio"
	ItemTypeBoxSet     ItemType = "BoxSet"
	ItemTypePlaylist   ItemType = "Playlist"
)

// IsMusic reports whether the type belongs to the music family
func (t ItemType) IsMusic() bool {
	return t == ItemTypeMusicAlbum || t == ItemTypeAudio
}

// ImageKind identifies which image slot a descriptor refers to
type ImageKind string

const (
	ImageKindPrimary        ImageKind = "Primary"
	ImageKindBackdrop       ImageKind = "Backdrop"
	ImageKindParentBackdrop ImageKind = "ParentBackdrop"
	ImageKindAlbumPrimary   ImageKind = "AlbumPrimary"
)

// ImageDescriptor is one image advertised by a catalog item
type ImageDescriptor struct {
	Kind    ImageKind // Image slot
	OwnerID string    // Entity that owns the image (item, parent series, album)
	Tag     string    // Server-side version tag
}

// DedupKey returns the string used to detect visually redundant imagery.
// Owner is deliberately excluded so that episodes sharing a series backdrop collide.
func (d ImageDescriptor) DedupKey() string {
	return string(d.Kind) + ":" + d.Tag
}

// CatalogItem is an entry returned by a media catalog query
type CatalogItem struct {
	ID     string            // Server-specific unique identifier
	Name   string            // Display name
	Type   ItemType          // Catalog type tag
	Images []ImageDescriptor // Advertised images, in server order
}

// ImagesOf returns the non-empty descriptors of the given kind, preserving order
func (c CatalogItem) ImagesOf(kind ImageKind) []ImageDescriptor {
	var out []ImageDescriptor
	for _, img := range c.Images {
		if img.Kind == kind && img.Tag != "" {
			out = append(out, img)
		}
	}
	return out
}

// HasImage reports whether the item carries at least one usable image of the kind
func (c CatalogItem) HasImage(kind ImageKind) bool {
	for _, img := range c.Images {
		if img.Kind == kind && img.Tag != "" {
			return true
		}
	}
	return false
}

// ImageLocator points at one concrete image inside the catalog
type ImageLocator struct {
	OwnerID string
	Kind    ImageKind
	Tag     string
}

func (l ImageLocator) String() string {
	return fmt.Sprintf("%s/%s?tag=%s", l.OwnerID, l.Kind, l.Tag)
}

// Selection pairs a resolved locator with the item that supplied it.
// SourceItemID always names the entity owning the rendered image.
type Selection struct {
	Locator      ImageLocator
	SourceItemID string
}

// CollectionType is the server-side library type ("movies", "tvshows", "music", ...)
type CollectionType string

const (
	CollectionTypeBoxSets   CollectionType = "boxsets"
	CollectionTypePlaylists CollectionType = "playlists"
	CollectionTypeMusic     CollectionType = "music"
)

// Collection is a library for which one cover artifact is produced
type Collection struct {
	ID        string         // Library identifier used for image upload
	Name      string         // Display name (also the title fallback)
	Type      CollectionType // Server-side collection type
	Locations []string       // Filesystem locations reported by the server
}

// ExclusionKey returns the "<server>-<libraryId>" key used by the exclude list
func (c Collection) ExclusionKey(server string) string {
	return server + "-" + c.ID
}

// Title holds the two title strings rendered on a cover
type Title struct {
	Zh string // Primary (Chinese) title
	En string // Optional secondary (English) title
}

// IsZero reports whether no title text is present
func (t Title) IsZero() bool {
	return strings.TrimSpace(t.Zh) == "" && strings.TrimSpace(t.En) == ""
}

// ArtifactFormat is the encoding of a cover artifact
type ArtifactFormat string

const (
	FormatJPEG ArtifactFormat = "jpeg"
)

// ContentType returns the MIME type of the format
func (f ArtifactFormat) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the file extension (with dot) for the format
func (f ArtifactFormat) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	default:
		return ".bin"
	}
}

// CoverArtifact is the encoded result of compositing
type CoverArtifact struct {
	Data   []byte
	Format ArtifactFormat
}
