package main

import "ecg-quality/internal/cli"

func main() {
	cli.Execute()
}
