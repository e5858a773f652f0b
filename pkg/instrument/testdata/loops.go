package main

import "fmt"

func main() {
	for i := 0; i < 5; i++ {
		fmt.Println(i)
	}

	x := 10
	for x = 0; x < 5; x++ {
		fmt.Println(x)
	}

	z := 0
	for {
		z++
		if z > 3 {
			break
		}
	}

	w := 0
	for w < 5 {
		w++
	}

	for k, v := range map[string]int{"a": 1} {
		fmt.Println(k, v)
	}
}
