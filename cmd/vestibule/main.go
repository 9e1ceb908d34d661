// Command vestibule is a single-binary multi-tenant edge server: it
// reverse-proxies App services and serves built-in encrypted WebDAV
// Dav services at virtual hostnames under one parent domain.
package main

import "github.com/nicolaspernoud/vestibule/cmd/vestibule/cmd"

func main() {
	cmd.Execute()
}
