package main

import "github.com/weighthabit/habitsync/cmd/habitsync/cmd"

func main() {
	cmd.Execute()
}
