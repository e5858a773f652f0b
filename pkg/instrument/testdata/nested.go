package main

func producer(out []int) {
	for i := range out {
		for j := 0; j < i; j++ {
			out[i] += j
		}
	}
}

func main() {
	buf := make([]int, 8)
	go producer(buf)
	work := func() {
		for len(buf) > 0 {
			buf = buf[1:]
		}
	}
	go work()
}
