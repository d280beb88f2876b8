package ddsketch

import (
	"fmt"
)

func Example() {
	sketch, _ := NewCollapsingLowestDense(0.01, 2048)
	for i := 1; i <= 100; i++ {
		sketch.Accept(float64(i))
	}
	median, _ := sketch.Quantile(0.5)
	fmt.Println(sketch.Count())
	fmt.Println(median > 49.5 && median < 50.5)
	// Output:
	// 100
	// true
}
