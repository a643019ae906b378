// This program is the wallet for the moon network. It manages a key file and
// builds, signs and submits spends to a node.
package main

import "github.com/ardanlabs/moon/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
