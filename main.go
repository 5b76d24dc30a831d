/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "moviebot/cmd"

func main() {
	cmd.Execute()
}
