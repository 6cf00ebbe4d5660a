// Package main is the entry point for the seafile container bootstrap.
// It runs once per container start and exits 0 when the server is fully
// provisioned, or 1 on the first fatal step.
package main

func main() {
	Execute()
}
