package main

import "os"

// @title Content Admin API
// @version 1.0.0
// @description Content hierarchy, staged artifact approval and manager assignments.
// @BasePath /api/v1
// @schemes http

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
