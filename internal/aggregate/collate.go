package aggregate

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// NameComparator は2つの名前を比較し、負・0・正を返す。
type NameComparator func(a, b string) int

// NewNameComparator はロケールに応じた照合順序で名前を比較する関数を返す。
// 返す関数はゴルーチンセーフではないため、集計1回ごとに生成する。
func NewNameComparator(tag language.Tag) NameComparator {
	c := collate.New(tag)
	return func(a, b string) int {
		return c.CompareString(a, b)
	}
}

// SortNames は名前を日本語の照合順序で並べ替える。
func SortNames(names []string) {
	cmp := NewNameComparator(language.Japanese)
	sort.SliceStable(names, func(i, j int) bool {
		return cmp(names[i], names[j]) < 0
	})
}
