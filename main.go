package main

import "github.com/chamavault/ms-go-mpesa/cmd"

func main() {
	cmd.Execute()
}
