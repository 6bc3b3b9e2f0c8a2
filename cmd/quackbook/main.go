// Command quackbook manages SQL notebooks and their portable archives.
package main

import "github.com/mesh-intelligence/quackbook/internal/cli"

func main() {
	cli.Execute()
}
