// Command forecastctl seeds, trains and queries the expense forecasting model
// from the command line, using the same configuration as the server.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
