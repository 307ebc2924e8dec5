// Command ragctl is the operator CLI for the document index.
package main

import "docrag/internal/cli"

func main() {
	cli.Execute()
}
