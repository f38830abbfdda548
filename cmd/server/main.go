package main

import "sports-buddy-backend/cmd"

func main() {
	cmd.Run()
}
