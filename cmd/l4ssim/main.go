// SPDX-License-Identifier: GPL-3.0

// Command l4ssim runs the DCTCP/PI²-DualQ discrete-event simulation and
// replays its concrete test scenarios.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
