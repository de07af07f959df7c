package mathx

import (
	"cmp"
	"math"
	"slices"
)

// BinEntry is one rectangle handed to BinPack. Width and Height are inputs;
// Page, X and Y are filled in with the placement. Object is carried through
// untouched so callers can map placements back to their own data.
type BinEntry struct {
	Page   int
	X      uint32
	Y      uint32
	Width  uint32
	Height uint32
	Object any
}

// BinPackResult describes the pages produced by BinPack. Every page is a
// square of PageSize on each side.
type BinPackResult struct {
	PageCount uint32
	PageSize  uint32
}

type placement struct {
	page int
	x, y uint64
}

// BinPack places entries onto as few square, power-of-two sized pages as
// possible using shelf packing. It searches for the smallest page size at
// which all entries fit into pageCountHint pages (a hint of 0 is treated as
// 1), doubling the page size until they do. padding is kept between entries
// and around the page border.
//
// Entries are modified in place only when packing succeeds, which it always
// does once the page is large enough to hold everything on a single page.
func BinPack(entries []BinEntry, padding, pageCountHint uint32) BinPackResult {
	if len(entries) == 0 {
		return BinPackResult{PageCount: 1, PageSize: 1}
	}
	maxPages := max(int(pageCountHint), 1)
	pad := uint64(padding)

	order := make([]int, len(entries))
	var area, largest uint64
	for i, e := range entries {
		order[i] = i
		w, h := uint64(e.Width)+pad, uint64(e.Height)+pad
		area += w * h
		largest = max(largest, uint64(e.Width), uint64(e.Height))
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if c := cmp.Compare(entries[b].Height, entries[a].Height); c != 0 {
			return c
		}
		return cmp.Compare(entries[b].Width, entries[a].Width)
	})

	perPage := uint64(math.Ceil(math.Sqrt(float64(area) / float64(maxPages))))
	size := nextPowerOfTwo(max(largest+2*pad, perPage, 1))

	placements := make([]placement, len(entries))
	for {
		if pages, ok := shelfPack(entries, order, placements, size, pad, maxPages); ok {
			for i := range entries {
				entries[i].Page = placements[i].page
				entries[i].X = uint32(placements[i].x)
				entries[i].Y = uint32(placements[i].y)
			}
			return BinPackResult{PageCount: uint32(pages), PageSize: uint32(min(size, math.MaxUint32))}
		}
		size *= 2
	}
}

// shelfPack tries to fit every entry into at most maxPages pages of the
// given size, returning the number of pages used.
func shelfPack(entries []BinEntry, order []int, out []placement, size, pad uint64, maxPages int) (int, bool) {
	page := 0
	x, y, shelf := pad, pad, uint64(0)
	for _, idx := range order {
		w, h := uint64(entries[idx].Width), uint64(entries[idx].Height)
		if x+w+pad > size {
			y += shelf + pad
			x, shelf = pad, 0
		}
		if y+h+pad > size {
			page++
			if page >= maxPages {
				return 0, false
			}
			x, y, shelf = pad, pad, 0
		}
		if x+w+pad > size || y+h+pad > size {
			return 0, false
		}
		out[idx] = placement{page: page, x: x, y: y}
		x += w + pad
		shelf = max(shelf, h)
	}
	return page + 1, true
}

func nextPowerOfTwo(v uint64) uint64 {
	p := uint64(1)
	for p < v {
		p <<= 1
	}
	return p
}
