package main

import "github.com/vibast-solutions/ms-go-billing-bff/cmd"

func main() {
	cmd.Execute()
}
