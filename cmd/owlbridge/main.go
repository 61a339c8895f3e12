// Command owlbridge serves rustowl analysis over HTTP.
package main

import "github.com/owlbridge/owlbridge/cmd/owlbridge/cmd"

func main() {
	cmd.Execute()
}
