package main

import "github.com/burhanmukhtar/Molly-Pro/cmd/mailer/cmd"

func main() {
	cmd.Execute()
}
