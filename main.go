package main

import "tix/internal/app"

func main() {
	app.Main()
}
