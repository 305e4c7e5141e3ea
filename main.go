package main

import "errors"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, errRunHadErrors) {
			exitCode(1)
		}

		exitOnError(err)
	}
}
