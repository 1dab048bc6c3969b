package main

import "cafe-orders/internal/cmd"

func main() {
	cmd.Execute()
}
