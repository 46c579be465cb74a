package domain

import (
	"bytes"
	"encoding/json"
	"sort"
)

// GalleryData is the view of all images partitioned by category. Each
// collection is ordered by Order ascending.
type GalleryData struct {
	Finished []GalleryImage `json:"finished"`
	WIP      []GalleryImage `json:"wip"`
}

// EmptyGallery returns a GalleryData with non-nil empty collections.
func EmptyGallery() GalleryData {
	return GalleryData{Finished: []GalleryImage{}, WIP: []GalleryImage{}}
}

// SortImages sorts in place by category, then order, then creation time, then id.
func SortImages(images []GalleryImage) {
	sort.SliceStable(images, func(i, j int) bool {
		a, b := images[i], images[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// Partition splits images into the two collections, keeping the relative
// order of the input. Images with an unknown category are dropped.
func Partition(images []GalleryImage) GalleryData {
	data := EmptyGallery()
	for _, img := range images {
		switch img.Category {
		case CategoryFinished:
			data.Finished = append(data.Finished, img)
		case CategoryWIP:
			data.WIP = append(data.WIP, img)
		}
	}
	return data
}

// Normalize replaces nil collections with empty ones.
func (d GalleryData) Normalize() GalleryData {
	if d.Finished == nil {
		d.Finished = []GalleryImage{}
	}
	if d.WIP == nil {
		d.WIP = []GalleryImage{}
	}
	return d
}

// Clone returns a deep copy so that callers cannot alias internal slices.
func (d GalleryData) Clone() GalleryData {
	out := GalleryData{
		Finished: make([]GalleryImage, len(d.Finished)),
		WIP:      make([]GalleryImage, len(d.WIP)),
	}
	copy(out.Finished, d.Finished)
	copy(out.WIP, d.WIP)
	return out
}

// All returns finished images followed by works in progress.
func (d GalleryData) All() []GalleryImage {
	out := make([]GalleryImage, 0, len(d.Finished)+len(d.WIP))
	out = append(out, d.Finished...)
	return append(out, d.WIP...)
}

// Len returns the total number of images.
func (d GalleryData) Len() int {
	return len(d.Finished) + len(d.WIP)
}

// Find looks an image up by id in both collections.
func (d GalleryData) Find(id string) (GalleryImage, bool) {
	for _, img := range d.All() {
		if img.ID == id {
			return img, true
		}
	}
	return GalleryImage{}, false
}

// Equal compares the serialized forms, so two values that would render the
// same are equal even if their slices differ in identity.
func (d GalleryData) Equal(o GalleryData) bool {
	a, errA := json.Marshal(d.Normalize())
	b, errB := json.Marshal(o.Normalize())
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// SameSequence reports whether both values hold the same ids in the same
// order in each collection.
func (d GalleryData) SameSequence(o GalleryData) bool {
	return sameIDs(d.Finished, o.Finished) && sameIDs(d.WIP, o.WIP)
}

func sameIDs(a, b []GalleryImage) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

// WithPatch merges the patch into the image with the given id. A category
// change moves the image to the end of the other collection so that the
// partition stays consistent. The second result is false when id is absent.
func (d GalleryData) WithPatch(id string, p ImagePatch) (GalleryData, bool) {
	out := d.Clone()
	for _, coll := range []*[]GalleryImage{&out.Finished, &out.WIP} {
		for i, img := range *coll {
			if img.ID != id {
				continue
			}
			updated := p.Apply(img)
			if updated.Category == img.Category {
				(*coll)[i] = updated
				return out, true
			}
			*coll = append((*coll)[:i], (*coll)[i+1:]...)
			return out.WithImage(updated), true
		}
	}
	return d, false
}

// Without removes the image with the given id from both collections.
func (d GalleryData) Without(id string) (GalleryData, bool) {
	out := GalleryData{
		Finished: make([]GalleryImage, 0, len(d.Finished)),
		WIP:      make([]GalleryImage, 0, len(d.WIP)),
	}
	found := false
	for _, img := range d.Finished {
		if img.ID == id {
			found = true
			continue
		}
		out.Finished = append(out.Finished, img)
	}
	for _, img := range d.WIP {
		if img.ID == id {
			found = true
			continue
		}
		out.WIP = append(out.WIP, img)
	}
	if !found {
		return d, false
	}
	return out, true
}

// WithImage appends img to the collection matching its category.
func (d GalleryData) WithImage(img GalleryImage) GalleryData {
	out := d.Clone()
	switch img.Category {
	case CategoryFinished:
		out.Finished = append(out.Finished, img)
	case CategoryWIP:
		out.WIP = append(out.WIP, img)
	}
	return out
}

// Replace swaps the image with id oldID for img, keeping its position when
// the category is unchanged.
func (d GalleryData) Replace(oldID string, img GalleryImage) (GalleryData, bool) {
	out := d.Clone()
	for _, coll := range []*[]GalleryImage{&out.Finished, &out.WIP} {
		for i := range *coll {
			if (*coll)[i].ID == oldID && (*coll)[i].Category == img.Category {
				(*coll)[i] = img
				return out, true
			}
		}
	}
	if trimmed, ok := out.Without(oldID); ok {
		return trimmed.WithImage(img), true
	}
	return d, false
}

// NextOrder returns max(order)+1 within the category, or 0 when empty.
func (d GalleryData) NextOrder(c Category) int {
	coll := d.Finished
	if c == CategoryWIP {
		coll = d.WIP
	}
	next := 0
	for _, img := range coll {
		if img.Order >= next {
			next = img.Order + 1
		}
	}
	return next
}

// Reordered partitions a full ordered list and rewrites each image's Order
// to its position inside its category.
func Reordered(images []GalleryImage) GalleryData {
	data := Partition(images)
	for i := range data.Finished {
		data.Finished[i].Order = i
	}
	for i := range data.WIP {
		data.WIP[i].Order = i
	}
	return data
}
