// Command llcmap maps the pages of a huge-page buffer to the cores whose
// last-level cache slices hold them.
package main

import "github.com/sarchlab/llcmap/llcmap/cmd"

func main() {
	cmd.Execute()
}
