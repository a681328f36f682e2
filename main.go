/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/tomymiron/ETH-Global/cmd"

func main() {
	cmd.Execute()
}
