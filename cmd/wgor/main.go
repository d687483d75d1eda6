// Command wgor is the recursive site-mirroring CLI's entry point.
package main

import "github.com/nrahal/wgor/internal/cli"

func main() {
	cmd.Execute()
}
