package main

import "fmt"

func add(a, b int) int {
	return a + b
}

func sum(xs ...int) (n int) {
	for _, x := range xs {
		n += x
	}
	return n
}

func main() {
	x, y := 10, 20

	go func() {
		fmt.Println("thread 1", add(1, 2))
	}()

	go add(x, y)
	go add(x+5, y*2)
	go sum([]int{x, y}...)

	for {
		if add(x, y) > 0 {
			break
		}
	}
}
