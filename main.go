package main

import "github.com/Norgate-AV/nodebuild/cmd"

func main() {
	cmd.Execute()
}
