// Nest pool ledger service and tooling.
package main

import (
	"github.com/MLY0813/NEST-Oracle-V3.5/nest-pool/cmd"
)

func main() {
	cmd.Execute()
}
