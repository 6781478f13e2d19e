// Hotspotctl is the operator CLI for the hotspot billing backend.
package main

import "github.com/mkutano/hotspot/cmd/hotspotctl/cmd"

func main() {
	cmd.Execute()
}
