/*
Copyright © 2021 Karsten Borgwaldt
*/
package main

import "github.com/UjOwtuc/bdup/cmd"

func main() {
	cmd.Execute()
}
