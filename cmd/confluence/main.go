// Command confluence runs the signal-confidence and position-sizing engine.
package main

import "log"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("[confluence] %v", err)
	}
}
