// carbon CLI - HTTP mock and service virtualization server
package main

import "github.com/carbonmock/carbon/pkg/cli"

func main() {
	cli.Execute()
}
