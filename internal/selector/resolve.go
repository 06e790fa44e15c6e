package selector

import "github.com/mmcdole/covergen/internal/domain"

// rule is one link of a priority chain. pick returns the descriptor that supplies
// the image; the locator and the source item id are both derived from it, so the
// two can never name different branches.
type rule struct {
	kind domain.ImageKind
}

func (r rule) pick(item domain.CatalogItem) (domain.ImageDescriptor, bool) {
	imgs := item.ImagesOf(r.kind)
	if len(imgs) == 0 {
		return domain.ImageDescriptor{}, false
	}
	return imgs[0], true
}

var (
	musicChain = []rule{
		{kind: domain.ImageKindParentBackdrop},
		{kind: domain.ImageKindPrimary},
		{kind: domain.ImageKindAlbumPrimary},
	}
	primaryFirstChain = []rule{
		{kind: domain.ImageKindPrimary},
		{kind: domain.ImageKindParentBackdrop},
		{kind: domain.ImageKindBackdrop},
	}
	backdropFirstChain = []rule{
		{kind: domain.ImageKindParentBackdrop},
		{kind: domain.ImageKindBackdrop},
		{kind: domain.ImageKindPrimary},
	}
)

func chainFor(t domain.ItemType, preferPrimary bool) []rule {
	switch {
	case t.IsMusic():
		return musicChain
	case preferPrimary:
		return primaryFirstChain
	default:
		return backdropFirstChain
	}
}

// Resolve walks the item's priority chain once and returns the locator of the image
// to render together with the id of the entity that owns it.
func Resolve(item domain.CatalogItem, preferPrimary bool) (domain.Selection, bool) {
	for _, r := range chainFor(item.Type, preferPrimary) {
		img, ok := r.pick(item)
		if !ok {
			continue
		}
		owner := img.OwnerID
		if owner == "" {
			owner = item.ID
		}
		return domain.Selection{
			Locator: domain.ImageLocator{
				OwnerID: owner,
				Kind:    img.Kind,
				Tag:     img.Tag,
			},
			SourceItemID: owner,
		}, true
	}
	return domain.Selection{}, false
}
