package main

import "github.com/auditpump/auditpump/cmd"

func main() {
	cmd.Execute()
}
