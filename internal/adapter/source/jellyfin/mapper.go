package jellyfin

import (
	"github.com/mmcdole/covergen/internal/domain"
)

// MapCollections converts virtual folders to collections, dropping entries
// without a name or an id
func MapCollections(folders []VirtualFolder, flavor Flavor) []domain.Collection {
	out := make([]domain.Collection, 0, len(folders))
	for _, f := range folders {
		id := f.ItemID
		if flavor == FlavorEmby {
			id = f.ID
		}
		if f.Name == "" || id == "" {
			continue
		}
		out = append(out, domain.Collection{
			ID:        id,
			Name:      f.Name,
			Type:      domain.CollectionType(f.CollectionType),
			Locations: f.Locations,
		})
	}
	return out
}

// MapItems converts API items to catalog items
func MapItems(items []Item) []domain.CatalogItem {
	out := make([]domain.CatalogItem, 0, len(items))
	for _, it := range items {
		out = append(out, MapItem(it))
	}
	return out
}

// MapItem lists every image the item advertises as a descriptor naming
// the entity that owns it
func MapItem(it Item) domain.CatalogItem {
	var imgs []domain.ImageDescriptor
	add := func(kind domain.ImageKind, owner, tag string) {
		if tag == "" {
			return
		}
		if owner == "" {
			owner = it.ID
		}
		imgs = append(imgs, domain.ImageDescriptor{Kind: kind, OwnerID: owner, Tag: tag})
	}

	// Music entries report their primary through PrimaryImageTag, which may
	// belong to another entity
	if it.PrimaryImageTag != "" {
		add(domain.ImageKindPrimary, it.PrimaryImageItemID, it.PrimaryImageTag)
	} else {
		add(domain.ImageKindPrimary, it.ID, it.ImageTags.Primary)
	}
	for _, tag := range it.BackdropImageTags {
		add(domain.ImageKindBackdrop, it.ID, tag)
	}
	for _, tag := range it.ParentBackdropImageTags {
		add(domain.ImageKindParentBackdrop, it.ParentBackdropItemID, tag)
	}
	add(domain.ImageKindAlbumPrimary, it.AlbumID, it.AlbumPrimaryImageTag)

	return domain.CatalogItem{
		ID:     it.ID,
		Name:   it.Name,
		Type:   domain.ItemType(it.Type),
		Images: imgs,
	}
}

// imagePath returns the image endpoint segment for a kind. Backdrops of any
// owner are served from Backdrop/0; album art is the album's Primary.
func imagePath(kind domain.ImageKind) string {
	switch kind {
	case domain.ImageKindBackdrop, domain.ImageKindParentBackdrop:
		return "Backdrop/0"
	default:
		return "Primary"
	}
}
