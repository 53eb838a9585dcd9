package remotedoc_test

import (
	"fmt"

	"github.com/meigma/remotedoc"
	"github.com/meigma/remotedoc/filesource"
)

func Example() {
	src := filesource.New("hello\nworld")
	cache := remotedoc.New(src.Size(), src.Rev(), src.NumLines())

	line, err := cache.GetLine(src, 1)
	if err != nil {
		panic(err)
	}
	fmt.Println(line)

	// Edits made by the host are mirrored into the cache.
	d := remotedoc.SimpleEdit(remotedoc.Interval{Start: 0, End: 5}, "goodbye", src.Size())
	src.Apply(d)
	cache.Update(d, src.Size(), src.NumLines(), src.Rev())

	line, err = cache.GetLine(src, 0)
	if err != nil {
		panic(err)
	}
	fmt.Print(line)
	// Output:
	// world
	// goodbye
}

func ExampleStateCache() {
	src := filesource.New("let a = 1\nlet b = 2\nlet c = 3")
	cache := remotedoc.NewStateCache[int](src.Size(), src.Rev(), src.NumLines())

	// Record how many bindings are in scope at the start of each line.
	bindings := 0
	for lineNum := 0; lineNum < src.NumLines(); lineNum++ {
		if err := cache.Set(src, lineNum, bindings); err != nil {
			panic(err)
		}
		bindings++
	}

	state, _ := cache.Get(2)
	fmt.Println(state)
	// Output:
	// 2
}
