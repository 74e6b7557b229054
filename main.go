package main

import "github.com/v1gneshkum4r21/face-clustering/cmd"

func main() {
	cmd.Execute()
}
